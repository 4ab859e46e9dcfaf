package util

import (
	"strconv"
	"strings"
	"time"
)

// ParseClock parses an "HH:MM" time of day. Hours may be written with one digit.
// Returns ok=false for anything that is not a valid 24h clock reading.
func ParseClock(s string) (hour, minute int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	if len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	// Atoi accepts a leading sign; a clock does not.
	if parts[0][0] == '+' || parts[0][0] == '-' || parts[1][0] == '+' || parts[1][0] == '-' {
		return 0, 0, false
	}
	return h, m, true
}

// ClockOn places hour:minute on the calendar day of ref, in ref's location, with zero seconds.
func ClockOn(ref time.Time, hour, minute int) time.Time {
	y, mo, d := ref.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, ref.Location())
}

// FormatClock renders t as "HH:MM".
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// AbsDuration returns |d|.
func AbsDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
