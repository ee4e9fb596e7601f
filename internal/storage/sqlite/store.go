// Package sqlite is the default local backend. Documents are stored as JSON
// text and archives are merged with SQLite's json_patch.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/migration"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/storage"
	"github.com/leaderreps/leaderreps/migrations"
)

type Store struct {
	path string
	db   *sql.DB
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) open() error {
	// WAL lets the watch dashboard read while the API process writes.
	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if _, err := s.runner().Apply(context.Background()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'leaderreps init' first")
	}
	if err := s.open(); err != nil {
		return err
	}
	return s.runner().Validate(context.Background())
}

// Migrate applies pending migrations to an existing database.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return 0, fmt.Errorf("storage not initialized, run 'leaderreps init' first")
	}
	if s.db == nil {
		if err := s.open(); err != nil {
			return 0, err
		}
	}
	return s.runner().Apply(ctx)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) runner() *migration.Runner {
	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		panic(fmt.Sprintf("embedded sqlite migrations missing: %v", err))
	}
	return migration.NewRunner(s.db, sub, migration.SQLite)
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying connection, nil before Init or Load.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

func (s *Store) GetCurrent(ctx context.Context, userID string) (models.DailyPracticeRecord, error) {
	var rec models.DailyPracticeRecord
	if s.db == nil {
		return rec, storage.ErrNotLoaded
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM daily_practice WHERE user_id = ? AND doc_name = ?`,
		userID, constants.CurrentDocName,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, storage.ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return rec, fmt.Errorf("failed to decode current record: %w", err)
	}
	return rec, nil
}

func (s *Store) SaveCurrent(ctx context.Context, userID string, rec models.DailyPracticeRecord) error {
	if s.db == nil {
		return storage.ErrNotLoaded
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode current record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_practice (user_id, doc_name, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, doc_name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		userID, constants.CurrentDocName, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) MergeArchive(ctx context.Context, userID string, archive models.DailyLogArchive) error {
	if s.db == nil {
		return storage.ErrNotLoaded
	}
	data, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_logs (user_id, date, data, archived_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			data = json_patch(daily_logs.data, excluded.data),
			archived_at = excluded.archived_at`,
		userID, archive.Date, string(data), archive.ArchivedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetArchive(ctx context.Context, userID, date string) (models.DailyLogArchive, error) {
	var a models.DailyLogArchive
	if s.db == nil {
		return a, storage.ErrNotLoaded
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM daily_logs WHERE user_id = ? AND date = ?`, userID, date,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return a, storage.ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return a, fmt.Errorf("failed to decode archive %s: %w", date, err)
	}
	return a, nil
}

func (s *Store) ListArchives(ctx context.Context, userID, from, to string) ([]models.DailyLogArchive, error) {
	if s.db == nil {
		return nil, storage.ErrNotLoaded
	}
	if to == "" {
		to = "9999-12-31"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, data FROM daily_logs
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.DailyLogArchive{}
	for rows.Next() {
		var date, data string
		if err := rows.Scan(&date, &data); err != nil {
			return nil, err
		}
		var a models.DailyLogArchive
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("failed to decode archive %s: %w", date, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
