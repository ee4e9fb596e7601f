package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/leaderreps/leaderreps/internal/constants"
)

// RepStatus is the state of a commitment or of the daily target rep.
type RepStatus string

const (
	RepPending   RepStatus = "Pending"
	RepCommitted RepStatus = "Committed"
)

// MorningWin is one of the up-to-three "win the day" slots.
type MorningWin struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Completed   bool   `json:"completed"`
	Saved       bool   `json:"saved"`
	CarriedOver bool   `json:"carriedOver"`
}

// IsEmpty reports whether the slot is an unused placeholder.
func (w MorningWin) IsEmpty() bool {
	return strings.TrimSpace(w.Text) == ""
}

// Task is an ad-hoc item for the day. Tasks never survive a rollover.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// EveningReflection is the end-of-day journal.
type EveningReflection struct {
	Good        string          `json:"good"`
	Better      string          `json:"better"`
	Best        string          `json:"best"`
	Habits      map[string]bool `json:"habits"`
	CompletedAt *time.Time      `json:"completedAt"`
}

// HasContent reports whether any reflection prompt was answered.
func (r EveningReflection) HasContent() bool {
	return r.Good != "" || r.Better != "" || r.Best != ""
}

// Commitment is an active daily rep.
type Commitment struct {
	ID        string    `json:"id"`
	Status    RepStatus `json:"status"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScoreComponent is a done/total pair.
type ScoreComponent struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

func (c ScoreComponent) String() string {
	return fmt.Sprintf("%d/%d", c.Done, c.Total)
}

// Scorecard is the live, multi-component score for the current day.
type Scorecard struct {
	Reps ScoreComponent `json:"reps"`
	Win  ScoreComponent `json:"win"`
}

// Total sums both components.
func (s Scorecard) Total() ScoreComponent {
	return ScoreComponent{Done: s.Reps.Done + s.Win.Done, Total: s.Reps.Total + s.Win.Total}
}

// WinEntry is one row of the append-only wins locker.
type WinEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Date      string    `json:"date"`
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
}

// ScorecardEntry is the finalized scorecard of a past day.
type ScorecardEntry struct {
	Date      string    `json:"date"`
	Score     string    `json:"score"`
	RepsScore string    `json:"repsScore"`
	WinsScore string    `json:"winsScore"`
	Timestamp time.Time `json:"timestamp"`
}

// ReflectionEntry is the snapshot of a past day's evening reflection.
type ReflectionEntry struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Good        string          `json:"good"`
	Better      string          `json:"better"`
	Best        string          `json:"best"`
	Habits      map[string]bool `json:"habits,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// RepItem identifies a completed rep inside a history entry.
type RepItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RepsHistoryEntry is the per-day rep tally used for streaks.
type RepsHistoryEntry struct {
	Date           string    `json:"date"`
	CompletedCount int       `json:"completedCount"`
	TotalCount     int       `json:"totalCount"`
	Items          []RepItem `json:"items"`
	Timestamp      time.Time `json:"timestamp"`
}

// DailyPracticeRecord is the single live "current" document of a user.
// Its Date field is the authoritative version discriminator.
type DailyPracticeRecord struct {
	Date                 string             `json:"date"`
	LastUpdated          string             `json:"lastUpdated,omitempty"`
	MorningWins          []MorningWin       `json:"morningWins"`
	OtherTasks           []Task             `json:"otherTasks"`
	EveningReflection    EveningReflection  `json:"eveningReflection"`
	ActiveCommitments    []Commitment       `json:"activeCommitments"`
	DailyTargetRepStatus RepStatus          `json:"dailyTargetRepStatus"`
	StreakCount          int                `json:"streakCount"`
	StreakCoins          int                `json:"streakCoins"`
	Scorecard            Scorecard          `json:"scorecard"`
	WinsList             []WinEntry         `json:"winsList"`
	ScorecardHistory     []ScorecardEntry   `json:"scorecardHistory"`
	ReflectionHistory    []ReflectionEntry  `json:"reflectionHistory"`
	RepsHistory          []RepsHistoryEntry `json:"repsHistory"`
}

// NewDailyPracticeRecord returns the defaults used on a user's first session.
func NewDailyPracticeRecord(date string) DailyPracticeRecord {
	return DailyPracticeRecord{
		Date:                 date,
		MorningWins:          PadWins(nil, date),
		OtherTasks:           []Task{},
		EveningReflection:    EmptyReflection(),
		ActiveCommitments:    []Commitment{},
		DailyTargetRepStatus: RepPending,
		WinsList:             []WinEntry{},
		ScorecardHistory:     []ScorecardEntry{},
		ReflectionHistory:    []ReflectionEntry{},
		RepsHistory:          []RepsHistoryEntry{},
	}
}

// EmptyReflection returns a cleared evening reflection.
func EmptyReflection() EveningReflection {
	return EveningReflection{Habits: map[string]bool{}}
}

// PlaceholderWinID is the deterministic id of an empty win slot.
func PlaceholderWinID(date string, slot int) string {
	return fmt.Sprintf("win-%s-%d", date, slot)
}

// PadWins truncates or pads wins to exactly MorningWinSlots entries.
func PadWins(wins []MorningWin, date string) []MorningWin {
	out := make([]MorningWin, 0, constants.MorningWinSlots)
	for _, w := range wins {
		if len(out) == constants.MorningWinSlots {
			break
		}
		out = append(out, w)
	}
	for i := len(out); i < constants.MorningWinSlots; i++ {
		out = append(out, MorningWin{ID: PlaceholderWinID(date, i)})
	}
	return out
}

// HasCompletedRepToday reports whether any active commitment was completed
// on the live record. It counts exactly what rollover writes to repsHistory.
func (r DailyPracticeRecord) HasCompletedRepToday() bool {
	for _, c := range r.ActiveCommitments {
		if c.Status == RepCommitted {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so pure computations never alias the caller's slices.
func (r DailyPracticeRecord) Clone() DailyPracticeRecord {
	c := r
	c.MorningWins = append([]MorningWin(nil), r.MorningWins...)
	c.OtherTasks = append([]Task(nil), r.OtherTasks...)
	c.ActiveCommitments = append([]Commitment(nil), r.ActiveCommitments...)
	c.WinsList = append([]WinEntry(nil), r.WinsList...)
	c.ScorecardHistory = append([]ScorecardEntry(nil), r.ScorecardHistory...)
	c.ReflectionHistory = append([]ReflectionEntry(nil), r.ReflectionHistory...)
	c.RepsHistory = append([]RepsHistoryEntry(nil), r.RepsHistory...)
	c.EveningReflection.Habits = copyHabits(r.EveningReflection.Habits)
	return c
}

func copyHabits(h map[string]bool) map[string]bool {
	if h == nil {
		return nil
	}
	out := make(map[string]bool, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// DailyLogArchive is the immutable snapshot of a past day.
type DailyLogArchive struct {
	DailyPracticeRecord
	ArchivedAt     time.Time                `json:"archivedAt"`
	RolloverSource constants.RolloverSource `json:"rolloverSource"`
}
