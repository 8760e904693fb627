// Package recurrence computes the next occurrence of a recurring
// reminder. Next is always fed the just-completed occurrence's original
// scheduled time, never the actual firing time, so a late execution does
// not shift every later occurrence (no drift accumulation).
package recurrence

import (
	"strconv"
	"strings"
	"time"
)

// Next returns the instant of the occurrence following current for the
// given pattern. It reports false for unrecognized patterns, which ends
// the recurrence chain.
//
// Supported patterns: daily, weekly, monthly, yearly,
// "every N hour(s)", "every N minute(s)".
func Next(current time.Time, pattern string) (time.Time, bool) {
	p := strings.ToLower(strings.TrimSpace(pattern))

	switch {
	case p == "daily":
		return current.AddDate(0, 0, 1), true
	case p == "weekly":
		return current.AddDate(0, 0, 7), true
	case p == "monthly":
		return nextMonth(current), true
	case p == "yearly":
		return nextYear(current), true
	case strings.HasPrefix(p, "every ") && strings.Contains(p, "hour"):
		if n, ok := intervalCount(p); ok {
			return current.Add(time.Duration(n) * time.Hour), true
		}
		return time.Time{}, false
	case strings.HasPrefix(p, "every ") && strings.Contains(p, "minute"):
		if n, ok := intervalCount(p); ok {
			return current.Add(time.Duration(n) * time.Minute), true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// nextMonth advances one calendar month, keeping the day of month. When
// the target month is shorter than the current day (Jan 31 → February),
// it falls back to a flat +30 days instead of letting the date normalize
// into the month after.
func nextMonth(current time.Time) time.Time {
	year, month, day := current.Date()
	targetYear, targetMonth := year, month+1
	if targetMonth > time.December {
		targetMonth = time.January
		targetYear++
	}
	if day > daysIn(targetYear, targetMonth) {
		return current.AddDate(0, 0, 30)
	}
	return time.Date(targetYear, targetMonth, day,
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(),
		current.Location())
}

// nextYear keeps the same month and day in the following year. A Feb 29
// source date is clamped to Feb 28, which keeps the anniversary inside
// February rather than normalizing to Mar 1.
func nextYear(current time.Time) time.Time {
	year, month, day := current.Date()
	if month == time.February && day == 29 {
		day = 28
	}
	return time.Date(year+1, month, day,
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(),
		current.Location())
}

// intervalCount pulls N out of "every N hour(s)/minute(s)". N is the
// second whitespace-separated field.
func intervalCount(pattern string) (int, bool) {
	fields := strings.Fields(pattern)
	if len(fields) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
