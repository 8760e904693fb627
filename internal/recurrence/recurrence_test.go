package recurrence

import (
	"testing"
	"time"
)

func ts(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	cases := []struct {
		name    string
		current time.Time
		pattern string
		want    time.Time
		ok      bool
	}{
		{"daily", ts(2025, 3, 10, 9, 0), "daily", ts(2025, 3, 11, 9, 0), true},
		{"weekly", ts(2025, 3, 10, 9, 0), "weekly", ts(2025, 3, 17, 9, 0), true},
		{"monthly", ts(2025, 3, 10, 9, 0), "monthly", ts(2025, 4, 10, 9, 0), true},
		{"monthly across year", ts(2025, 12, 5, 9, 0), "monthly", ts(2026, 1, 5, 9, 0), true},
		{"monthly short target month falls back 30 days", ts(2025, 1, 31, 9, 0), "monthly", ts(2025, 3, 2, 9, 0), true},
		{"yearly", ts(2025, 3, 10, 9, 0), "yearly", ts(2026, 3, 10, 9, 0), true},
		{"yearly feb 29 clamps to feb 28", ts(2024, 2, 29, 9, 0), "yearly", ts(2025, 2, 28, 9, 0), true},
		{"every 2 hours", ts(2025, 3, 10, 9, 0), "every 2 hours", ts(2025, 3, 10, 11, 0), true},
		{"every 1 hour", ts(2025, 3, 10, 9, 0), "every 1 hour", ts(2025, 3, 10, 10, 0), true},
		{"every 45 minutes", ts(2025, 3, 10, 9, 0), "every 45 minutes", ts(2025, 3, 10, 9, 45), true},
		{"case insensitive", ts(2025, 3, 10, 9, 0), "Daily", ts(2025, 3, 11, 9, 0), true},
		{"unknown pattern", ts(2025, 3, 10, 9, 0), "fortnightly", time.Time{}, false},
		{"every without count", ts(2025, 3, 10, 9, 0), "every hour", time.Time{}, false},
		{"every with garbage count", ts(2025, 3, 10, 9, 0), "every x hours", time.Time{}, false},
		{"empty pattern", ts(2025, 3, 10, 9, 0), "", time.Time{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Next(tc.current, tc.pattern)
			if ok != tc.ok {
				t.Fatalf("Next(%v, %q) ok = %v, want %v", tc.current, tc.pattern, ok, tc.ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Errorf("Next(%v, %q) = %v, want %v", tc.current, tc.pattern, got, tc.want)
			}
		})
	}
}

func TestNextPreservesTimeOfDay(t *testing.T) {
	current := time.Date(2025, 6, 15, 22, 45, 30, 0, time.UTC)
	got, ok := Next(current, "monthly")
	if !ok {
		t.Fatal("Next failed")
	}
	if got.Hour() != 22 || got.Minute() != 45 || got.Second() != 30 {
		t.Errorf("time of day changed: got %v", got)
	}
}
