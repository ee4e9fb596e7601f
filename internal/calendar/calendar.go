// Package calendar decides which civil dates count toward streaks.
//
// A date is excluded when it falls on a weekend or on one of the nine
// recognized US holidays. Floating holidays are computed per year; only the
// fixed-date holidays are tabulated. All dates are civil dates at midnight
// UTC (see utils.ParseDate).
package calendar

import (
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/errors"
	"github.com/leaderreps/leaderreps/internal/utils"
)

// ErrScanBoundExceeded means a linear date scan never found an eligible day.
// With the holiday set above this can only happen through a logic bug.
var ErrScanBoundExceeded = stderrors.New("eligible-date scan exceeded iteration bound")

// Holiday is a named excluded date.
type Holiday struct {
	Date time.Time
	Name string
}

type fixedHoliday struct {
	month time.Month
	day   int
	name  string
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1, "New Year's Day"},
	{time.July, 4, "Independence Day"},
	{time.December, 25, "Christmas Day"},
}

var (
	cacheMu sync.RWMutex
	cache   = map[int]map[string]string{}
)

// NthWeekdayOfMonth returns the n-th (1-based) occurrence of wd in the month.
func NthWeekdayOfMonth(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := utils.CivilDate(year, month, 1)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// LastWeekdayOfMonth returns the last occurrence of wd in the month.
func LastWeekdayOfMonth(year int, month time.Month, wd time.Weekday) time.Time {
	last := utils.CivilDate(year, month+1, 0)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// Holidays returns the recognized holidays of year in chronological order.
func Holidays(year int) []Holiday {
	thanksgiving := NthWeekdayOfMonth(year, time.November, time.Thursday, 4)

	hs := make([]Holiday, 0, 9)
	for _, f := range fixedHolidays {
		hs = append(hs, Holiday{Date: utils.CivilDate(year, f.month, f.day), Name: f.name})
	}
	hs = append(hs,
		Holiday{NthWeekdayOfMonth(year, time.January, time.Monday, 3), "Martin Luther King Jr. Day"},
		Holiday{NthWeekdayOfMonth(year, time.February, time.Monday, 3), "Presidents Day"},
		Holiday{LastWeekdayOfMonth(year, time.May, time.Monday), "Memorial Day"},
		Holiday{NthWeekdayOfMonth(year, time.September, time.Monday, 1), "Labor Day"},
		Holiday{thanksgiving, "Thanksgiving"},
		Holiday{thanksgiving.AddDate(0, 0, 1), "Day after Thanksgiving"},
	)
	sort.Slice(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
	return hs
}

func holidaySet(year int) map[string]string {
	cacheMu.RLock()
	set, ok := cache[year]
	cacheMu.RUnlock()
	if ok {
		return set
	}

	set = make(map[string]string, 9)
	for _, h := range Holidays(year) {
		set[utils.FormatDate(h.Date)] = h.Name
	}

	cacheMu.Lock()
	cache[year] = set
	cacheMu.Unlock()
	return set
}

// HolidayName returns the holiday observed on d, if any.
func HolidayName(d time.Time) (string, bool) {
	name, ok := holidaySet(d.Year())[utils.FormatDate(d)]
	return name, ok
}

// IsWeekend reports whether d is a Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether d is a recognized holiday.
func IsHoliday(d time.Time) bool {
	_, ok := HolidayName(d)
	return ok
}

// IsExcluded reports whether d is skipped by streak accounting.
func IsExcluded(d time.Time) bool {
	return IsWeekend(d) || IsHoliday(d)
}

// IsExcludedKey is IsExcluded for a YYYY-MM-DD key.
func IsExcludedKey(dateStr string) (bool, error) {
	d, err := utils.ParseDate(dateStr)
	if err != nil {
		return false, err
	}
	return IsExcluded(d), nil
}

// PreviousEligibleDate returns the latest date strictly before d that is not
// excluded. If the bounded scan fails it returns the last date checked along
// with a consistency error.
func PreviousEligibleDate(d time.Time) (time.Time, error) {
	return scan(d, -1, constants.PreviousEligibleScanLimit)
}

// NextEligibleDate returns the earliest date strictly after d that is not
// excluded, with the same failure contract as PreviousEligibleDate.
func NextEligibleDate(d time.Time) (time.Time, error) {
	return scan(d, 1, constants.NextEligibleScanLimit)
}

func scan(d time.Time, step, limit int) (time.Time, error) {
	cand := d
	for i := 0; i < limit; i++ {
		cand = cand.AddDate(0, 0, step)
		if !IsExcluded(cand) {
			return cand, nil
		}
	}
	return cand, errors.Consistency(
		fmt.Sprintf("eligible scan from %s", utils.FormatDate(d)),
		ErrScanBoundExceeded,
	)
}
