package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the storage format of a booking date.
	DateLayout = "2006-01-02"
	// ClockLayout is the storage format of a time of day.
	ClockLayout = "15:04"

	minutesPerDay = 24 * 60
)

// ParseClock parses "HH:MM" into minutes after midnight.
// "24:00" is accepted and denotes the end of the day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}

	if minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a "YYYY-MM-DD" calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return d, nil
}

// At returns the instant of the given wall clock on date in loc. It is built from
// wall-clock fields so daylight-saving days keep their local hours.
func At(date string, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	if m == minutesPerDay {
		return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, d.Location()), nil
	}
	return time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, d.Location()), nil
}

// Overlaps is the half-open interval test: [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// ValidateInterval checks a same-day [start, end) window given as "HH:MM".
// It returns the parsed minutes.
func ValidateInterval(start, end string) (startMin, endMin int, err error) {
	startMin, err = ParseClock(start)
	if err != nil {
		return 0, 0, fmt.Errorf("start_time: %w", err)
	}
	endMin, err = ParseClock(end)
	if err != nil {
		return 0, 0, fmt.Errorf("end_time: %w", err)
	}
	if startMin >= minutesPerDay {
		return 0, 0, fmt.Errorf("start_time must be before 24:00")
	}
	if startMin == endMin {
		return 0, 0, fmt.Errorf("zero-length interval %s-%s", start, end)
	}
	if endMin < startMin {
		return 0, 0, fmt.Errorf("end_time %s must be after start_time %s on the same day", end, start)
	}
	return startMin, endMin, nil
}
