// Package postgres is the shared backend. Documents are jsonb and archives
// are merged with the jsonb || operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/migration"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/storage"
	"github.com/leaderreps/leaderreps/migrations"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

type Store struct {
	connStr string
	db      *sql.DB
}

func New(connStr string) *Store {
	return &Store{connStr: withSearchPath(connStr)}
}

// withSearchPath pins the schema unless the caller chose one.
func withSearchPath(connStr string) string {
	if isURL(connStr) {
		u, err := url.Parse(connStr)
		if err != nil {
			logger.Warn("Failed to parse Postgres connection string", "error", err)
			return connStr
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.AppName)
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	if !hasDSNKey(connStr, "search_path") {
		return strings.TrimSpace(connStr) + " search_path=" + constants.AppName
	}
	return connStr
}

func isURL(connStr string) bool {
	return strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://")
}

// hasDSNKey reports whether a key=value DSN sets key (case-insensitive).
func hasDSNKey(connStr, key string) bool {
	for _, part := range strings.Fields(connStr) {
		k, _, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), key) {
			return true
		}
	}
	return false
}

func hasSSLMode(connStr string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for k := range u.Query() {
			if strings.EqualFold(k, "sslmode") {
				return true
			}
		}
	}
	return hasDSNKey(connStr, "sslmode")
}

// ValidateConnString checks that connStr is a usable URI or DSN and carries
// no password. Passwords belong in PGPASSFILE or the server's auth config.
func ValidateConnString(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if _, err := pq.NewConnector(connStr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}

	if isURL(connStr) {
		u, err := url.Parse(connStr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
		}
		if _, set := u.User.Password(); set {
			return ErrEmbeddedCredentials
		}
		if u.Host == "" && u.User == nil && (u.Path == "" || u.Path == "/") {
			return fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
		return nil
	}
	if hasDSNKey(connStr, "password") {
		return ErrEmbeddedCredentials
	}
	return nil
}

func (s *Store) connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.connStr) {
			return nil, fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (s *Store) Init() error {
	ctx := context.Background()
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(constants.AppName)); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.db = db

	if _, err := s.runner().Apply(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	db, err := s.connect(context.Background())
	if err != nil {
		return err
	}
	s.db = db
	return s.runner().Validate(context.Background())
}

// Migrate applies pending migrations.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if s.db == nil {
		db, err := s.connect(ctx)
		if err != nil {
			return 0, err
		}
		s.db = db
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
	sub, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		panic(fmt.Sprintf("embedded postgres migrations missing: %v", err))
	}
	return migration.NewRunner(s.db, sub, migration.Postgres)
}

// GetConfigPath returns a non-sensitive identifier instead of the connection string.
func (s *Store) GetConfigPath() string {
	return "postgresql"
}

func (s *Store) GetCurrent(ctx context.Context, userID string) (models.DailyPracticeRecord, error) {
	var rec models.DailyPracticeRecord
	if s.db == nil {
		return rec, storage.ErrNotLoaded
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM daily_practice WHERE user_id = $1 AND doc_name = $2`,
		userID, constants.CurrentDocName,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, storage.ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
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
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (user_id, doc_name) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		userID, constants.CurrentDocName, string(data),
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
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (user_id, date) DO UPDATE SET
			data = daily_logs.data || EXCLUDED.data,
			archived_at = EXCLUDED.archived_at`,
		userID, archive.Date, string(data), archive.ArchivedAt.UTC(),
	)
	return err
}

func (s *Store) GetArchive(ctx context.Context, userID, date string) (models.DailyLogArchive, error) {
	var a models.DailyLogArchive
	if s.db == nil {
		return a, storage.ErrNotLoaded
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM daily_logs WHERE user_id = $1 AND date = $2`, userID, date,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return a, storage.ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("failed to decode archive %s: %w", date, err)
	}
	return a, nil
}

func (s *Store) ListArchives(ctx context.Context, userID, from, to string) ([]models.DailyLogArchive, error) {
	if s.db == nil {
		return nil, storage.ErrNotLoaded
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, data FROM daily_logs
		WHERE user_id = $1
		  AND ($2 = '' OR date >= $2)
		  AND ($3 = '' OR date <= $3)
		ORDER BY date`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.DailyLogArchive{}
	for rows.Next() {
		var date string
		var data []byte
		if err := rows.Scan(&date, &data); err != nil {
			return nil, err
		}
		var a models.DailyLogArchive
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to decode archive %s: %w", date, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
