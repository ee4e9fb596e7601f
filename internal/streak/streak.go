// Package streak computes rep streaks over eligible (non-weekend,
// non-holiday) days.
package streak

import (
	"sort"
	"time"

	"github.com/leaderreps/leaderreps/internal/calendar"
	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/errors"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/utils"
)

// Calculate derives the streak state from a user's reps history.
//
// today is the caller's current date key. hasCompletedRepToday covers the
// live record, whose entry is only written to history at rollover.
// Entries with a missing or malformed date are ignored.
func Calculate(history []models.RepsHistoryEntry, today string, hasCompletedRepToday bool) models.StreakState {
	active := make(map[string]time.Time, len(history)+1)
	for _, entry := range history {
		if entry.CompletedCount <= 0 {
			continue
		}
		d, err := utils.ParseDate(entry.Date)
		if err != nil {
			continue
		}
		active[utils.FormatDate(d)] = d
	}

	todayDate, todayErr := utils.ParseDate(today)
	if todayErr != nil {
		errors.Report(errors.DataShape("streak today", todayErr))
	} else if hasCompletedRepToday {
		active[utils.FormatDate(todayDate)] = todayDate
	}

	if len(active) == 0 {
		return models.StreakState{}
	}

	dates := make([]time.Time, 0, len(active))
	for _, d := range active {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	state := models.StreakState{
		LongestStreak:  longest(dates),
		LastActiveDate: utils.FormatDate(dates[len(dates)-1]),
	}
	if todayErr == nil {
		state.CurrentStreak = current(active, todayDate)
	}
	if state.CurrentStreak > state.LongestStreak {
		state.LongestStreak = state.CurrentStreak
	}
	return state
}

// current walks backward from today one eligible day at a time.
func current(active map[string]time.Time, today time.Time) int {
	check := today
	if calendar.IsExcluded(today) {
		prev, err := calendar.PreviousEligibleDate(today)
		if err != nil {
			errors.Report(err, "date", utils.FormatDate(today))
		}
		check = prev
	}

	count := 0
	for count <= constants.CurrentStreakWalkLimit {
		_, isActive := active[utils.FormatDate(check)]
		if !isActive && !calendar.IsExcluded(check) {
			break
		}
		if isActive {
			count++
		}
		prev, err := calendar.PreviousEligibleDate(check)
		if err != nil {
			errors.Report(err, "date", utils.FormatDate(check))
			break
		}
		check = prev
	}
	return count
}

// longest scans ascending active dates; two dates are consecutive when the
// next eligible day after the earlier one is the later one.
func longest(dates []time.Time) int {
	best, run := 0, 0
	for i, d := range dates {
		if i > 0 && consecutive(dates[i-1], d) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func consecutive(prev, next time.Time) bool {
	expected, err := calendar.NextEligibleDate(prev)
	if err != nil {
		errors.Report(err, "date", utils.FormatDate(prev))
		return false
	}
	return expected.Equal(next)
}
