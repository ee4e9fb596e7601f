package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/leaderreps/leaderreps/internal/models"
)

const jsonStoreVersion = 1

type userDocs struct {
	Current  json.RawMessage            `json:"current,omitempty"`
	Archives map[string]json.RawMessage `json:"archives"`
}

type jsonFile struct {
	Version int                  `json:"version"`
	Users   map[string]*userDocs `json:"users"`
}

// JSONStore keeps every document in a single JSON file. It suits a single
// local user and tests; concurrent processes are not coordinated.
type JSONStore struct {
	path string

	mu   sync.Mutex
	file *jsonFile
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return s.Load()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = &jsonFile{Version: jsonStoreVersion, Users: map[string]*userDocs{}}
	return s.save()
}

func (s *JSONStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run 'leaderreps init' first")
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	f := &jsonFile{}
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}
	if f.Version > jsonStoreVersion {
		return fmt.Errorf("storage version (%d) is newer than supported version (%d)", f.Version, jsonStoreVersion)
	}
	if f.Users == nil {
		f.Users = map[string]*userDocs{}
	}

	s.mu.Lock()
	s.file = f
	s.mu.Unlock()
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}

// save writes through a temp file so a crash never leaves a torn document.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace storage: %w", err)
	}
	return nil
}

func (s *JSONStore) user(userID string, create bool) (*userDocs, error) {
	if s.file == nil {
		return nil, ErrNotLoaded
	}
	u, ok := s.file.Users[userID]
	if !ok {
		if !create {
			return nil, ErrNotFound
		}
		u = &userDocs{Archives: map[string]json.RawMessage{}}
		s.file.Users[userID] = u
	}
	if u.Archives == nil {
		u.Archives = map[string]json.RawMessage{}
	}
	return u, nil
}

func (s *JSONStore) GetCurrent(_ context.Context, userID string) (models.DailyPracticeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID, false)
	if err != nil {
		return models.DailyPracticeRecord{}, err
	}
	if len(u.Current) == 0 {
		return models.DailyPracticeRecord{}, ErrNotFound
	}
	var rec models.DailyPracticeRecord
	if err := json.Unmarshal(u.Current, &rec); err != nil {
		return models.DailyPracticeRecord{}, fmt.Errorf("failed to decode current record: %w", err)
	}
	return rec, nil
}

func (s *JSONStore) SaveCurrent(_ context.Context, userID string, rec models.DailyPracticeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode current record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(userID, true)
	if err != nil {
		return err
	}
	u.Current = data
	return s.save()
}

func (s *JSONStore) MergeArchive(_ context.Context, userID string, archive models.DailyLogArchive) error {
	incoming, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(userID, true)
	if err != nil {
		return err
	}
	merged, err := mergeTopLevel(u.Archives[archive.Date], incoming)
	if err != nil {
		return err
	}
	u.Archives[archive.Date] = merged
	return s.save()
}

// mergeTopLevel overlays the top-level fields of incoming onto existing.
func mergeTopLevel(existing, incoming json.RawMessage) (json.RawMessage, error) {
	if len(existing) == 0 {
		return incoming, nil
	}
	base := map[string]json.RawMessage{}
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, fmt.Errorf("failed to decode stored archive: %w", err)
	}
	over := map[string]json.RawMessage{}
	if err := json.Unmarshal(incoming, &over); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}
	for k, v := range over {
		base[k] = v
	}
	return json.Marshal(base)
}

func (s *JSONStore) GetArchive(_ context.Context, userID, date string) (models.DailyLogArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID, false)
	if err != nil {
		return models.DailyLogArchive{}, err
	}
	raw, ok := u.Archives[date]
	if !ok {
		return models.DailyLogArchive{}, ErrNotFound
	}
	var a models.DailyLogArchive
	if err := json.Unmarshal(raw, &a); err != nil {
		return models.DailyLogArchive{}, fmt.Errorf("failed to decode archive %s: %w", date, err)
	}
	return a, nil
}

func (s *JSONStore) ListArchives(_ context.Context, userID, from, to string) ([]models.DailyLogArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.user(userID, false)
	if err == ErrNotFound {
		return []models.DailyLogArchive{}, nil
	}
	if err != nil {
		return nil, err
	}

	var dates []string
	for d := range u.Archives {
		if InRange(d, from, to) {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	out := make([]models.DailyLogArchive, 0, len(dates))
	for _, d := range dates {
		var a models.DailyLogArchive
		if err := json.Unmarshal(u.Archives[d], &a); err != nil {
			return nil, fmt.Errorf("failed to decode archive %s: %w", d, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// InRange reports whether date lies within the optional inclusive bounds.
func InRange(date, from, to string) bool {
	return (from == "" || date >= from) && (to == "" || date <= to)
}
