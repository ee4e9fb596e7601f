package utils

import (
	"fmt"
	"time"

	"github.com/leaderreps/leaderreps/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" it returns the system's local timezone, and an
// empty name falls back to the default cohort timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	switch timezone {
	case "Local":
		return time.Local, nil
	case "":
		timezone = constants.DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// DateKey returns the YYYY-MM-DD key of t as observed in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(constants.DateFormat)
}

// ParseDate parses a YYYY-MM-DD key into a civil date at midnight UTC.
// Civil dates are kept in UTC so day arithmetic never sees a DST gap.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", dateStr, err)
	}
	return t, nil
}

// FormatDate formats a civil date as a YYYY-MM-DD key.
func FormatDate(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// CivilDate builds a civil date at midnight UTC.
func CivilDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a date key by n days.
func AddDays(dateStr string, n int) (string, error) {
	t, err := ParseDate(dateStr)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// DaysBetween returns the signed number of calendar days from one key to another.
func DaysBetween(from, to string) (int, error) {
	f, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours() / 24), nil
}

// NextMidnight returns the first instant of the day after now, in loc.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// ParseInstant accepts RFC3339, "YYYY-MM-DD HH:MM" or a bare date key, the
// latter two interpreted in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(constants.DateFormat+" "+constants.TimeFormat, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(constants.DateFormat, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid instant %q (expected RFC3339, YYYY-MM-DD HH:MM or YYYY-MM-DD)", s)
}
