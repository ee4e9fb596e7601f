// Package storage defines the document store behind the daily practice
// record and its per-day archives.
package storage

import (
	"context"
	"errors"

	"github.com/leaderreps/leaderreps/internal/models"
)

var (
	// ErrNotFound is returned when a user has no document at the requested key.
	ErrNotFound = errors.New("document not found")
	// ErrNotLoaded is returned when a provider is used before Init or Load.
	ErrNotLoaded = errors.New("storage not loaded")
)

// Provider stores one live record per user plus write-once archives keyed
// by date. Writes to different documents are independent; there are no
// multi-document transactions.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Live record at daily_practice/current
	GetCurrent(ctx context.Context, userID string) (models.DailyPracticeRecord, error)
	SaveCurrent(ctx context.Context, userID string, rec models.DailyPracticeRecord) error

	// Archives at daily_logs/<date>
	MergeArchive(ctx context.Context, userID string, archive models.DailyLogArchive) error
	GetArchive(ctx context.Context, userID, date string) (models.DailyLogArchive, error)
	// ListArchives returns archives with from <= date <= to, oldest first.
	// Empty bounds are open.
	ListArchives(ctx context.Context, userID, from, to string) ([]models.DailyLogArchive, error)

	// Utils
	GetConfigPath() string
}

// Migrator is implemented by backends with a versioned schema.
type Migrator interface {
	Migrate(ctx context.Context) (int, error)
}
