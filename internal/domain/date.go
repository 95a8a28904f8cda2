package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateStamp returns the YYYY-MM-DD stamp of t's civil date.
func DateStamp(t time.Time) string {
	return t.Format(DateLayout)
}

// StreakDays returns the number of whole days between lastSober (YYYY-MM-DD)
// and now's civil date, clamped to zero. A malformed, missing or future date
// reads as 0 — a corrupt stored date must never break notification delivery.
func StreakDays(lastSober string, now time.Time) int {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(lastSober), now.Location())
	if err != nil {
		return 0
	}
	days := daysBetween(d, now)
	if days < 0 {
		return 0
	}
	return days
}

// daysBetween counts civil-date days from 'from' to 'to'. Both are reduced to
// UTC midnights of their local date components so DST shifts cannot skew the
// count by an hour.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// ParseClock parses HH:MM into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

// FormatMinutes returns HH:MM for minutes since midnight.
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// SlotTimeOn returns the occurrence of a time of day (minutes since midnight)
// on the civil date of base, in base's location.
func SlotTimeOn(base time.Time, mins int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), mins/60, mins%60, 0, 0, base.Location())
}

// NextMidnight returns the first instant of the next civil day after now.
func NextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
