// Package tui is the live dashboard of the watch command.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/leaderreps/leaderreps/internal/clock"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/transition"
	"github.com/leaderreps/leaderreps/internal/tui/components/history"
	"github.com/leaderreps/leaderreps/internal/tui/components/today"
)

type SessionState int

const (
	StateToday SessionState = iota
	StateStreak
	StateHistory
)

var tabTitles = []string{"Today", "Streak", "History"}

// Detector is the part of the day-transition detector the dashboard drives.
type Detector interface {
	Load(ctx context.Context) (models.DailyPracticeRecord, error)
	Mutate(ctx context.Context, fn func(*models.DailyPracticeRecord) error) (models.DailyPracticeRecord, error)
	HandleTravel(ctx context.Context, bounds []clock.Boundary) (models.DailyPracticeRecord, error)
	GetStreak() models.StreakState
}

type Clock interface {
	Now() time.Time
	Today() string
	Offset() time.Duration
	Traveling() bool
	TravelDays(n int) ([]clock.Boundary, error)
	Reset() []clock.Boundary
}

type Archives interface {
	ListArchives(ctx context.Context, userID, from, to string) ([]models.DailyLogArchive, error)
}

type (
	updateMsg   transition.Update
	closedMsg   struct{}
	archivesMsg []models.DailyLogArchive
	errMsg      struct{ err error }
	tickMsg     time.Time
)

type Model struct {
	ctx      context.Context
	userID   string
	detector Detector
	clock    Clock
	archives Archives
	updates  <-chan transition.Update

	beforeTravel func(ctx context.Context) error

	state        SessionState
	keys         KeyMap
	help         help.Model
	todayModel   today.Model
	historyModel history.Model

	record     *models.DailyPracticeRecord
	streak     models.StreakState
	lastChange *transition.Transition
	now        time.Time
	err        error
	quitting   bool
	width      int
	height     int
}

type Option func(*Model)

// WithBeforeTravel runs hook before the travel and reset keys move the
// clock. A failing hook leaves the clock where it was.
func WithBeforeTravel(hook func(ctx context.Context) error) Option {
	return func(m *Model) { m.beforeTravel = hook }
}

// NewModel builds the dashboard. updates is a detector subscription owned
// by the caller.
func NewModel(ctx context.Context, userID string, d Detector, clk Clock, archives Archives, updates <-chan transition.Update, opts ...Option) Model {
	m := Model{
		ctx:          ctx,
		userID:       userID,
		detector:     d,
		clock:        clk,
		archives:     archives,
		updates:      updates,
		state:        StateToday,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		todayModel:   today.New(0, 0),
		historyModel: history.New(nil, 0, 0),
		now:          clk.Now(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	if m.state == StateToday {
		keys = append(keys, m.keys.ToggleWin)
	}
	return append(keys, m.keys.Forward, m.keys.Reset)
}

func (m Model) FullHelp() [][]key.Binding {
	return m.keys.FullHelp()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitForUpdate(), m.loadArchives(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		rec, err := m.detector.Load(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return updateMsg{Record: rec, Streak: m.detector.GetStreak()}
	}
}

func (m Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return closedMsg{}
		}
		return updateMsg(u)
	}
}

func (m Model) loadArchives() tea.Cmd {
	return func() tea.Msg {
		list, err := m.archives.ListArchives(m.ctx, m.userID, "", "")
		if err != nil {
			return errMsg{err}
		}
		return archivesMsg(list)
	}
}

func (m Model) toggleWin(slot int) tea.Cmd {
	return func() tea.Msg {
		_, err := m.detector.Mutate(m.ctx, func(rec *models.DailyPracticeRecord) error {
			if slot >= len(rec.MorningWins) || rec.MorningWins[slot].IsEmpty() {
				return nil
			}
			rec.MorningWins[slot].Completed = !rec.MorningWins[slot].Completed
			return nil
		})
		if err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// travel moves the clock and runs the rollover batch before refreshing.
func (m Model) travel(change func() ([]clock.Boundary, error)) tea.Cmd {
	return func() tea.Msg {
		if m.beforeTravel != nil {
			if err := m.beforeTravel(m.ctx); err != nil {
				return errMsg{err}
			}
		}
		bounds, err := change()
		if err != nil {
			return errMsg{err}
		}
		if _, err := m.detector.HandleTravel(m.ctx, bounds); err != nil {
			return errMsg{err}
		}
		return m.loadArchives()()
	}
}
