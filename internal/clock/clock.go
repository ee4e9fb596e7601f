// Package clock supplies "now" for the whole application, optionally
// shifted by a simulated time-travel offset. Dependents must re-query
// Now and Today after every Event rather than caching them.
package clock

import (
	"errors"
	"sync"
	"time"

	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/utils"
)

var ErrInvalidInstant = errors.New("invalid travel target")

// Boundary is one crossed calendar-date boundary, From -> To.
type Boundary struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type EventKind string

const (
	EventTravel EventKind = "travel"
	EventReset  EventKind = "reset"
)

// Event is broadcast after every offset change.
type Event struct {
	Kind       EventKind     `json:"kind"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	Offset     time.Duration `json:"offset"`
	Boundaries []Boundary    `json:"boundaries"`
}

// Forward reports whether the change moved the date forward.
func (e Event) Forward() bool {
	return len(e.Boundaries) > 0
}

type Option func(*Clock)

// WithNow replaces the wall clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.wall = now }
}

type Clock struct {
	loc   *time.Location
	store OffsetStore
	wall  func() time.Time

	mu     sync.RWMutex
	offset time.Duration

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates a clock pinned to loc. A nil store keeps the offset in
// memory only. A stored offset that cannot be read is ignored.
func New(loc *time.Location, store OffsetStore, opts ...Option) *Clock {
	c := &Clock{
		loc:   loc,
		store: store,
		wall:  time.Now,
		subs:  map[int]chan Event{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if store != nil {
		offset, err := store.LoadOffset()
		if err != nil {
			logger.Warn("Ignoring stored time-travel offset", "error", err)
		} else {
			c.offset = offset
		}
	}
	if c.offset != 0 {
		logger.Info("Time travel active", "offset", c.offset, "today", c.Today())
	}
	return c
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the wall clock shifted by the offset, in the pinned zone.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wall().Add(c.offset).In(c.loc)
}

// Today returns the date key of Now.
func (c *Clock) Today() string {
	return utils.DateKey(c.Now(), c.loc)
}

func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Traveling reports whether an offset is active.
func (c *Clock) Traveling() bool {
	return c.Offset() != 0
}

// TravelTo shifts the clock so that Now equals target and returns the
// date boundaries crossed. Backward travel crosses none.
func (c *Clock) TravelTo(target time.Time) ([]Boundary, error) {
	if target.IsZero() {
		return nil, ErrInvalidInstant
	}
	return c.set(EventTravel, func(wall time.Time) time.Duration { return target.Sub(wall) }), nil
}

// TravelDays moves the clock n calendar days from the simulated now.
func (c *Clock) TravelDays(n int) ([]Boundary, error) {
	return c.TravelTo(c.Now().AddDate(0, 0, n))
}

// Reset returns to real time. Resetting from the past crosses boundaries
// like any forward jump.
func (c *Clock) Reset() []Boundary {
	return c.set(EventReset, func(time.Time) time.Duration { return 0 })
}

func (c *Clock) set(kind EventKind, offsetFor func(wall time.Time) time.Duration) []Boundary {
	c.mu.Lock()
	wall := c.wall()
	before := wall.Add(c.offset)
	c.offset = offsetFor(wall)
	after := wall.Add(c.offset)
	offset := c.offset
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveOffset(offset); err != nil {
			logger.Warn("Time-travel offset kept in memory only", "error", err)
		}
	}

	from, to := utils.DateKey(before, c.loc), utils.DateKey(after, c.loc)
	bounds := Boundaries(from, to)
	logger.Info("Clock changed", "kind", kind, "from", from, "to", to, "offset", offset, "boundaries", len(bounds))

	c.publish(Event{Kind: kind, From: from, To: to, Offset: offset, Boundaries: bounds})
	return bounds
}

// Boundaries lists every date boundary between from and to in order. It
// returns nil unless to is after from.
func Boundaries(from, to string) []Boundary {
	days, err := utils.DaysBetween(from, to)
	if err != nil || days <= 0 {
		return nil
	}
	out := make([]Boundary, 0, days)
	cur := from
	for i := 0; i < days; i++ {
		next, err := utils.AddDays(cur, 1)
		if err != nil {
			return out
		}
		out = append(out, Boundary{From: cur, To: next})
		cur = next
	}
	return out
}

// Subscribe returns a channel of clock events and a function that closes it.
func (c *Clock) Subscribe() (<-chan Event, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan Event, 8)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Clock) publish(e Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- e:
		default:
			logger.Warn("Dropped clock event for slow subscriber", "kind", e.Kind)
		}
	}
}
