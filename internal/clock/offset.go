package clock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// OffsetStore persists the travel offset on this device. It is never synced.
type OffsetStore interface {
	LoadOffset() (time.Duration, error)
	SaveOffset(time.Duration) error
}

// FileOffsetStore keeps the offset as integer milliseconds in a small file.
type FileOffsetStore struct {
	path string
}

func NewFileOffsetStore(path string) *FileOffsetStore {
	return &FileOffsetStore{path: path}
}

func (s *FileOffsetStore) Path() string {
	return s.path
}

func (s *FileOffsetStore) LoadOffset() (time.Duration, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read offset: %w", err)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset in %s: %w", s.path, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// SaveOffset writes the offset; a zero offset removes the file.
func (s *FileOffsetStore) SaveOffset(d time.Duration) error {
	if d == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear offset: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	ms := strconv.FormatInt(d.Milliseconds(), 10)
	if err := os.WriteFile(s.path, []byte(ms+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write offset: %w", err)
	}
	return nil
}
