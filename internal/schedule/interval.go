// Package schedule holds the pure time-of-day arithmetic used by reservations.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DateLayout is the wire format of reservation dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the wire format of reservation times of day.
	ClockLayout = "15:04"

	minutesPerDay = 24 * 60
)

var (
	// ErrInvalidClock is returned for a time of day that is not HH:MM.
	ErrInvalidClock = errors.New("invalid time of day")
	// ErrInvalidDate is returned for a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
)

// Interval is a half-open [Start, End) range of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// ParseClock converts "HH:MM" into minutes since midnight.
// Postgres TIME output ("HH:MM:SS") is accepted when the seconds are zero.
func ParseClock(value string) (int, error) {
	value = strings.TrimSpace(value)
	if strings.Count(value, ":") == 2 && strings.HasSuffix(value, ":00") {
		value = strings.TrimSuffix(value, ":00")
	}
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseInterval parses a pair of HH:MM bounds.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

// Overlaps reports whether a and b share any instant. An interval ending
// exactly when the other begins does not overlap it.
func Overlaps(a, b Interval) bool {
	return !(a.End <= b.Start || b.End <= a.Start)
}

// ClocksOverlap is Overlaps over HH:MM strings.
func ClocksOverlap(start1, end1, start2, end2 string) (bool, error) {
	a, err := ParseInterval(start1, end1)
	if err != nil {
		return false, err
	}
	b, err := ParseInterval(start2, end2)
	if err != nil {
		return false, err
	}
	return Overlaps(a, b), nil
}
