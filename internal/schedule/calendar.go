package schedule

import (
	"fmt"
	"strings"
	"time"
)

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return day, nil
}

// Compose joins a date and a time of day into an instant in loc.
func Compose(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}

// Week is the Sunday through Saturday window containing a given day.
type Week struct {
	Start time.Time
	End   time.Time
}

// WeekOf returns the Sunday–Saturday week containing now, in loc.
// Start is Sunday 00:00 and End is Saturday 00:00 of the same week.
func WeekOf(now time.Time, loc *time.Location) Week {
	local := now.In(loc)
	sunday := time.Date(local.Year(), local.Month(), local.Day()-int(local.Weekday()), 0, 0, 0, 0, loc)
	return Week{
		Start: sunday,
		End:   sunday.AddDate(0, 0, 6),
	}
}

// Dates returns the first and last day of the week as YYYY-MM-DD.
func (w Week) Dates() (string, string) {
	return w.Start.Format(DateLayout), w.End.Format(DateLayout)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}
