// Package transition notices when the clock's date has moved past the live
// record's date and drives the rollover engine: lazily on every load, on a
// midnight timer while running, and once per crossed boundary after a
// forward time-travel jump.
package transition

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/leaderreps/leaderreps/internal/clock"
	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/errors"
	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/rollover"
	"github.com/leaderreps/leaderreps/internal/storage"
	"github.com/leaderreps/leaderreps/internal/streak"
	"github.com/leaderreps/leaderreps/internal/utils"
)

type State int

const (
	Idle State = iota
	RollingOver
)

func (s State) String() string {
	if s == RollingOver {
		return "rolling-over"
	}
	return "idle"
}

// Store is the part of storage.Provider the detector reads and writes.
type Store interface {
	GetCurrent(ctx context.Context, userID string) (models.DailyPracticeRecord, error)
	SaveCurrent(ctx context.Context, userID string, rec models.DailyPracticeRecord) error
}

// Roller performs a single rollover.
type Roller interface {
	Rollover(ctx context.Context, userID string, rec models.DailyPracticeRecord, oldDate, newDate string, source constants.RolloverSource) (models.DailyPracticeRecord, error)
}

// Clock is the simulated clock.
type Clock interface {
	Now() time.Time
	Today() string
	Location() *time.Location
	Subscribe() (<-chan clock.Event, func())
}

// Update is published whenever the live record changes.
type Update struct {
	Record models.DailyPracticeRecord
	Streak models.StreakState
	// Rollover is set when the change was a rollover.
	Rollover *Transition
}

// Transition describes one completed rollover.
type Transition struct {
	From   string                   `json:"from"`
	To     string                   `json:"to"`
	Source constants.RolloverSource `json:"source"`
}

type Option func(*Detector)

// WithAfter replaces time.After for the midnight timer.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(d *Detector) { d.after = after }
}

// WithChanges feeds live store changes into Run, so writes made by another
// process trigger the lazy check.
func WithChanges(changes <-chan storage.Change) Option {
	return func(d *Detector) { d.changes = changes }
}

type Detector struct {
	userID  string
	store   Store
	roller  Roller
	clock   Clock
	after   func(time.Duration) <-chan time.Time
	changes <-chan storage.Change

	// mu serializes rollovers within this process. Other processes are
	// tolerated through the engine's date-keyed idempotence.
	mu      sync.Mutex
	state   State
	current *models.DailyPracticeRecord

	subMu  sync.Mutex
	subs   map[int]chan Update
	nextID int
}

func New(userID string, store Store, roller Roller, clk Clock, opts ...Option) *Detector {
	d := &Detector{
		userID: userID,
		store:  store,
		roller: roller,
		clock:  clk,
		after:  time.After,
		subs:   map[int]chan Update{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Load reads the live record, creating it on the first session, and rolls
// it over if its date is behind the clock.
func (d *Detector) Load(ctx context.Context) (models.DailyPracticeRecord, error) {
	return d.check(ctx, constants.SourceLazyClient)
}

// CheckAndRollover re-reads the live record and rolls it over if needed.
func (d *Detector) CheckAndRollover(ctx context.Context, source constants.RolloverSource) (models.DailyPracticeRecord, error) {
	return d.check(ctx, source)
}

func (d *Detector) check(ctx context.Context, source constants.RolloverSource) (models.DailyPracticeRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.read(ctx)
	if err != nil {
		errors.Report(err, "user", d.userID, "source", source)
		return rec, err
	}
	today := d.clock.Today()

	switch {
	case rec.Date == today:
		d.setCurrent(rec, nil)
		return rec, nil
	case rec.Date > today:
		// Backward travel: the record stays ahead until the clock catches up.
		logger.Debug("Record is ahead of the clock", "user", d.userID, "date", rec.Date, "today", today)
		d.setCurrent(rec, nil)
		return rec, nil
	}
	return d.roll(ctx, rec, rec.Date, today, source)
}

// read loads the live record and repairs a missing date.
func (d *Detector) read(ctx context.Context) (models.DailyPracticeRecord, error) {
	today := d.clock.Today()

	rec, err := d.store.GetCurrent(ctx, d.userID)
	if stderrors.Is(err, storage.ErrNotFound) {
		rec = models.NewDailyPracticeRecord(today)
		rec.LastUpdated = d.clock.Now().UTC().Format(time.RFC3339)
		if err := d.store.SaveCurrent(ctx, d.userID, rec); err != nil {
			return rec, errors.Transient("create current record", err)
		}
		logger.Info("Created daily practice record", "user", d.userID, "date", today)
		return rec, nil
	}
	if err != nil {
		return rec, errors.Transient("read current record", err)
	}

	if rec.Date != "" {
		if _, err := utils.ParseDate(rec.Date); err == nil {
			return rec, nil
		}
	}

	if date, ok := dateFromLastUpdated(rec.LastUpdated, d.clock.Location()); ok {
		errors.Report(errors.DataShape("current record date", fmt.Errorf("missing date, using lastUpdated %s", date)), "user", d.userID)
		rec.Date = date
	} else {
		// Nothing to go on: treat the record as today's.
		errors.Report(errors.DataShape("current record date", fmt.Errorf("missing date, stamping %s", today)), "user", d.userID)
		rec.Date = today
	}
	if err := d.store.SaveCurrent(ctx, d.userID, rec); err != nil {
		return rec, errors.Transient("repair current record", err)
	}
	return rec, nil
}

func dateFromLastUpdated(s string, loc *time.Location) (string, bool) {
	if s == "" {
		return "", false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return utils.DateKey(t, loc), true
	}
	if len(s) >= len(constants.DateFormat) {
		if _, err := utils.ParseDate(s[:len(constants.DateFormat)]); err == nil {
			return s[:len(constants.DateFormat)], true
		}
	}
	return "", false
}

// roll must be called with mu held.
func (d *Detector) roll(ctx context.Context, rec models.DailyPracticeRecord, from, to string, source constants.RolloverSource) (models.DailyPracticeRecord, error) {
	d.state = RollingOver
	defer func() { d.state = Idle }()

	next, err := d.roller.Rollover(ctx, d.userID, rec, from, to, source)
	if err != nil {
		errors.Report(err, "user", d.userID, "from", from, "to", to, "source", source)
		return rec, err
	}
	d.setCurrent(next, &Transition{From: from, To: to, Source: source})
	return next, nil
}

// HandleTravel processes the boundaries of one forward jump in order,
// one rollover per boundary. It stops at the first failure; the next
// trigger resumes from the record's stored date.
func (d *Detector) HandleTravel(ctx context.Context, bounds []clock.Boundary) (models.DailyPracticeRecord, error) {
	if len(bounds) == 0 {
		return d.check(ctx, constants.SourceLazyClient)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.read(ctx)
	if err != nil {
		errors.Report(err, "user", d.userID, "source", constants.SourceTimeTravel)
		return rec, err
	}
	for _, b := range bounds {
		if rec.Date >= b.To {
			continue
		}
		rec, err = d.roll(ctx, rec, rec.Date, b.To, constants.SourceTimeTravel)
		if err != nil {
			return rec, err
		}
	}
	d.setCurrent(rec, nil)
	return rec, nil
}

// Mutate applies fn to the up-to-date live record and saves it. The live
// scorecard is recomputed before the write. StreakCount only ever moves
// up: it is raised to the computed streak and never lowered, and rollover
// carries it forward unchanged.
func (d *Detector) Mutate(ctx context.Context, fn func(*models.DailyPracticeRecord) error) (models.DailyPracticeRecord, error) {
	if _, err := d.check(ctx, constants.SourceLazyClient); err != nil {
		return models.DailyPracticeRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec := d.current.Clone()
	if err := fn(&rec); err != nil {
		return rec, err
	}
	rec.Scorecard = rollover.ComputeScorecard(rec)
	if n := d.streakFor(rec).CurrentStreak; n > rec.StreakCount {
		rec.StreakCount = n
	}
	rec.LastUpdated = d.clock.Now().UTC().Format(time.RFC3339)

	if err := d.store.SaveCurrent(ctx, d.userID, rec); err != nil {
		err = errors.Transient("save current record", err)
		errors.Report(err, "user", d.userID)
		return rec, err
	}
	d.setCurrent(rec, nil)
	return rec, nil
}

// GetCurrentRecord returns the last loaded record without touching the store.
func (d *Detector) GetCurrentRecord() (models.DailyPracticeRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return models.DailyPracticeRecord{}, false
	}
	return d.current.Clone(), true
}

// GetStreak computes the streak of the last loaded record against today.
func (d *Detector) GetStreak() models.StreakState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return models.StreakState{}
	}
	return d.streakFor(*d.current)
}

func (d *Detector) streakFor(rec models.DailyPracticeRecord) models.StreakState {
	today := d.clock.Today()
	return streak.Calculate(rec.RepsHistory, today, rec.Date == today && rec.HasCompletedRepToday())
}

// setCurrent must be called with mu held.
func (d *Detector) setCurrent(rec models.DailyPracticeRecord, t *Transition) {
	c := rec.Clone()
	d.current = &c
	d.publish(Update{Record: rec.Clone(), Streak: d.streakFor(rec), Rollover: t})
}

// Subscribe returns a channel of updates and a function that closes it.
// Slow subscribers miss updates and should re-query GetCurrentRecord.
func (d *Detector) Subscribe() (<-chan Update, func()) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	id := d.nextID
	d.nextID++
	ch := make(chan Update, 16)
	d.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subMu.Lock()
			delete(d.subs, id)
			d.subMu.Unlock()
			close(ch)
		})
	}
}

func (d *Detector) publish(u Update) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Run loads the record and then keeps it current until ctx is done:
// rolling over at every midnight of the simulated clock, after every
// clock change and whenever another writer changes the record.
func (d *Detector) Run(ctx context.Context) error {
	if _, err := d.Load(ctx); err != nil {
		logger.Debug("Initial load failed, will retry at next trigger", "user", d.userID, "error", err)
	}

	events, cancel := d.clock.Subscribe()
	defer cancel()

	for {
		now := d.clock.Now()
		delay := utils.NextMidnight(now, d.clock.Location()).Sub(now)
		logger.Debug("Scheduled midnight check", "user", d.userID, "in", delay.Round(time.Second))
		timer := d.after(delay)

	reschedule:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case <-timer:
				_, _ = d.check(ctx, constants.SourceMidnight)
				break reschedule

			case e, ok := <-events:
				if !ok {
					return nil
				}
				if e.Forward() {
					_, _ = d.HandleTravel(ctx, e.Boundaries)
				} else {
					_, _ = d.check(ctx, constants.SourceLazyClient)
				}
				break reschedule

			case c, ok := <-d.changes:
				if !ok {
					d.changes = nil
					continue
				}
				if c.UserID != d.userID || c.Doc != constants.CurrentDocName {
					continue
				}
				if cur, ok := d.GetCurrentRecord(); ok && cur.Date == c.Date && cur.Date == d.clock.Today() {
					continue
				}
				_, _ = d.check(ctx, constants.SourceLazyClient)
			}
		}
	}
}
