package storage

import (
	"context"
	"sync"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/models"
)

// Change describes a successful write.
type Change struct {
	UserID string
	Doc    string // constants.CurrentDocName or an archive date
	Date   string // date field of the written document
}

// Watcher decorates a Provider and broadcasts every successful write to
// its subscribers. Slow subscribers miss changes rather than block writers.
type Watcher struct {
	Provider

	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
}

func NewWatcher(p Provider) *Watcher {
	return &Watcher{Provider: p, subs: map[int]chan Change{}}
}

// Subscribe returns a channel of changes and a function that closes it.
func (w *Watcher) Subscribe() (<-chan Change, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	ch := make(chan Change, 16)
	w.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
			close(ch)
		})
	}
}

func (w *Watcher) publish(c Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (w *Watcher) SaveCurrent(ctx context.Context, userID string, rec models.DailyPracticeRecord) error {
	if err := w.Provider.SaveCurrent(ctx, userID, rec); err != nil {
		return err
	}
	w.publish(Change{UserID: userID, Doc: constants.CurrentDocName, Date: rec.Date})
	return nil
}

func (w *Watcher) MergeArchive(ctx context.Context, userID string, archive models.DailyLogArchive) error {
	if err := w.Provider.MergeArchive(ctx, userID, archive); err != nil {
		return err
	}
	w.publish(Change{UserID: userID, Doc: archive.Date, Date: archive.Date})
	return nil
}
