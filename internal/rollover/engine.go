// Package rollover turns yesterday's live record into an archive snapshot
// and a fresh record for the new day.
package rollover

import (
	"context"
	"fmt"
	"time"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/errors"
	"github.com/leaderreps/leaderreps/internal/history"
	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/utils"
)

// Store is the part of the document store the engine writes to.
type Store interface {
	MergeArchive(ctx context.Context, userID string, archive models.DailyLogArchive) error
	SaveCurrent(ctx context.Context, userID string, rec models.DailyPracticeRecord) error
}

// Result is the output of a rollover computation.
type Result struct {
	Archive models.DailyLogArchive
	Next    models.DailyPracticeRecord
}

// Engine performs rollovers against a Store.
type Engine struct {
	store  Store
	policy constants.CommitmentPolicy
	now    func() time.Time
}

// New creates an engine. now supplies timestamps and should be the
// simulated clock so that archives line up with the travelled date.
func New(store Store, policy constants.CommitmentPolicy, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, policy: policy, now: now}
}

// Policy returns the commitment policy in effect.
func (e *Engine) Policy() constants.CommitmentPolicy {
	return e.policy
}

// Rollover archives rec under oldDate and writes the new-day record.
//
// The archive and current writes are independent single-document writes.
// If either fails the current record keeps a stale date and the next
// trigger retries the whole rollover; every history write is keyed by
// date, so retries do not duplicate entries (winsList excepted).
func (e *Engine) Rollover(ctx context.Context, userID string, rec models.DailyPracticeRecord, oldDate, newDate string, source constants.RolloverSource) (models.DailyPracticeRecord, error) {
	if rec.Date == newDate {
		logger.Debug("Rollover already applied", "user", userID, "date", newDate)
		return rec, nil
	}

	res, err := Compute(rec, oldDate, newDate, e.policy, e.now(), source)
	if err != nil {
		return rec, err
	}

	if err := e.store.MergeArchive(ctx, userID, res.Archive); err != nil {
		return rec, errors.Transient(fmt.Sprintf("archive %s", oldDate), err)
	}
	if err := e.store.SaveCurrent(ctx, userID, res.Next); err != nil {
		return rec, errors.Transient(fmt.Sprintf("save current %s", newDate), err)
	}

	logger.Info("Rollover complete",
		"user", userID,
		"from", oldDate,
		"to", newDate,
		"source", source,
		"policy", e.policy,
		"carriedWins", countCarried(res.Next.MorningWins),
	)
	return res.Next, nil
}

// Compute is the pure part of a rollover. Given the same inputs it always
// returns the same result.
func Compute(rec models.DailyPracticeRecord, oldDate, newDate string, policy constants.CommitmentPolicy, now time.Time, source constants.RolloverSource) (Result, error) {
	days, err := utils.DaysBetween(oldDate, newDate)
	if err != nil {
		return Result{}, errors.DataShape("rollover dates", err)
	}
	if days <= 0 {
		return Result{}, fmt.Errorf("rollover must move forward: %s -> %s", oldDate, newDate)
	}

	src := rec.Clone()
	src.Date = oldDate

	archive := models.DailyLogArchive{
		DailyPracticeRecord: src.Clone(),
		ArchivedAt:          now,
		RolloverSource:      source,
	}

	scorecard := ComputeScorecard(src)
	next := src.Clone()
	next.Date = newDate
	next.LastUpdated = now.UTC().Format(time.RFC3339)

	next.MorningWins = models.PadWins(carryWins(src.MorningWins), newDate)
	next.WinsList = append(next.WinsList, completedWins(src.MorningWins, oldDate, now)...)

	next.OtherTasks = []models.Task{}
	next.EveningReflection = models.EmptyReflection()
	next.ActiveCommitments = carryCommitments(policy, src.ActiveCommitments)
	next.DailyTargetRepStatus = models.RepPending
	next.Scorecard = models.Scorecard{}

	next.RepsHistory = history.Upsert(
		history.Normalize(src.RepsHistory, repsKey),
		repsEntry(src.ActiveCommitments, oldDate, now),
		repsKey,
	)
	next.ScorecardHistory = history.Upsert(
		history.Normalize(src.ScorecardHistory, scorecardKey),
		models.ScorecardEntry{
			Date:      oldDate,
			Score:     scorecard.Total().String(),
			RepsScore: scorecard.Reps.String(),
			WinsScore: scorecard.Win.String(),
			Timestamp: now,
		},
		scorecardKey,
	)
	next.ReflectionHistory = history.Normalize(src.ReflectionHistory, reflectionKey)
	if r := src.EveningReflection; r.HasContent() {
		next.ReflectionHistory = history.Upsert(next.ReflectionHistory, models.ReflectionEntry{
			ID:          "ref-" + oldDate,
			Date:        oldDate,
			Good:        r.Good,
			Better:      r.Better,
			Best:        r.Best,
			Habits:      r.Habits,
			CompletedAt: r.CompletedAt,
			Timestamp:   now,
		}, reflectionKey)
	}

	return Result{Archive: archive, Next: next}, nil
}

func carryWins(wins []models.MorningWin) []models.MorningWin {
	var carried []models.MorningWin
	for _, w := range wins {
		if w.Completed || w.IsEmpty() {
			continue
		}
		w.Completed = false
		w.Saved = true
		w.CarriedOver = true
		carried = append(carried, w)
	}
	return carried
}

// completedWins feeds the append-only wins locker. Re-running a rollover
// with the same input appends the same wins again; this is a known
// limitation of the locker, which is never deduplicated.
func completedWins(wins []models.MorningWin, date string, now time.Time) []models.WinEntry {
	var out []models.WinEntry
	for i, w := range wins {
		if !w.Completed || w.IsEmpty() {
			continue
		}
		id := w.ID
		if id == "" {
			id = fmt.Sprintf("win-%s-%d", date, i)
		}
		out = append(out, models.WinEntry{ID: id, Text: w.Text, Date: date, Completed: true, Timestamp: now})
	}
	return out
}

func repsEntry(cs []models.Commitment, date string, now time.Time) models.RepsHistoryEntry {
	entry := models.RepsHistoryEntry{Date: date, TotalCount: len(cs), Items: []models.RepItem{}, Timestamp: now}
	for _, c := range cs {
		if c.Status == models.RepCommitted {
			entry.CompletedCount++
			entry.Items = append(entry.Items, models.RepItem{ID: c.ID, Text: c.Text})
		}
	}
	return entry
}

func countCarried(wins []models.MorningWin) int {
	n := 0
	for _, w := range wins {
		if w.CarriedOver {
			n++
		}
	}
	return n
}

func repsKey(e models.RepsHistoryEntry) string      { return e.Date }
func scorecardKey(e models.ScorecardEntry) string   { return e.Date }
func reflectionKey(e models.ReflectionEntry) string { return e.Date }
