// Package period computes canonical UTC window boundaries for gains
// periods. All arithmetic happens in UTC so boundaries line up with the
// timestamps the store persists, regardless of server locale.
package period

import (
	"fmt"
	"strings"
	"time"

	"osrs-tracker/internal/domain"
)

// endOfDayOffset is the last representable instant of a day at
// millisecond precision, matching the stored timestamp granularity.
const endOfDayOffset = 24*time.Hour - time.Millisecond

// Parse maps a request string onto a Period. Unrecognized values are
// rejected rather than silently defaulted so that player and group
// endpoints behave identically.
func Parse(s string) (domain.Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return domain.PeriodDaily, nil
	case "weekly":
		return domain.PeriodWeekly, nil
	case "monthly":
		return domain.PeriodMonthly, nil
	default:
		return "", fmt.Errorf("invalid period %q: must be daily, weekly or monthly", s)
	}
}

// Bounds returns the inclusive [start, end] window containing ref for
// the given period. Pure and total for any valid time.
func Bounds(p domain.Period, ref time.Time) (start, end time.Time) {
	switch p {
	case domain.PeriodWeekly:
		return weekBounds(ref)
	case domain.PeriodMonthly:
		return monthBounds(ref)
	default:
		return dayBounds(ref)
	}
}

// DateKey formats a period start as the YYYY-MM-DD idempotency key used
// to address gain records.
func DateKey(start time.Time) string {
	return start.UTC().Format("2006-01-02")
}

func dayBounds(ref time.Time) (time.Time, time.Time) {
	ref = ref.UTC()
	start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(endOfDayOffset)
}

func weekBounds(ref time.Time) (time.Time, time.Time) {
	ref = ref.UTC()
	// Weeks start Monday. Sunday (weekday 0) belongs to the week that
	// began six days earlier.
	back := int(ref.Weekday()) - 1
	if ref.Weekday() == time.Sunday {
		back = 6
	}
	monday := ref.AddDate(0, 0, -back)
	start := time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6).Add(endOfDayOffset)
	return start, end
}

func monthBounds(ref time.Time) (time.Time, time.Time) {
	ref = ref.UTC()
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month is the last day of this one.
	end := time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Millisecond)
	return start, end
}
