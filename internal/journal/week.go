package journal

import (
	"fmt"
	"time"
)

// WeekID derives the week identifier for a date, e.g. "2024-W12".
// It uses ISO 8601 week numbering (Monday-start weeks, ISO year), so
// Dec 31 and Jan 1 falling in the same week share one identifier.
func WeekID(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// DayKey derives the calendar-day identifier for a date, e.g. "2024-03-20".
// Distinct days always produce distinct keys.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDayKey converts a day key back into its date (midnight UTC).
func ParseDayKey(dayKey string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", dayKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", dayKey, err)
	}
	return t, nil
}

// WeekIDForDayKey derives the owning week identifier of a day key.
// An entry's weekId/dayKey pair must agree with this derivation.
func WeekIDForDayKey(dayKey string) (string, error) {
	t, err := ParseDayKey(dayKey)
	if err != nil {
		return "", err
	}
	return WeekID(t), nil
}

// StartOfWeek returns the Monday of the week containing t, at the
// same clock time.
func StartOfWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // Sunday belongs to the preceding Monday
	}
	return t.AddDate(0, 0, 1-wd)
}

// AddWeeks moves a date by n whole weeks. Navigating ±1 week always
// changes the derived week identifier by exactly one step.
func AddWeeks(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, 7*n)
}

// WeekRangeDisplay renders the Monday-to-Sunday span of the week
// containing t, e.g. "Mar 18 - Mar 24, 2024".
func WeekRangeDisplay(t time.Time) string {
	start := StartOfWeek(t)
	end := start.AddDate(0, 0, 6)
	return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
}

// WeekBucket groups a week's entries by day key. Days appear in
// first-seen order of the underlying flat list.
type WeekBucket struct {
	Days    []string
	Entries map[string][]Entry
}

// GroupEntries reconstructs a week bucket from the flat list the
// store returns, preserving entry order within each day.
func GroupEntries(entries []Entry) WeekBucket {
	b := WeekBucket{Entries: make(map[string][]Entry)}
	for _, e := range entries {
		if _, seen := b.Entries[e.DayKey]; !seen {
			b.Days = append(b.Days, e.DayKey)
		}
		b.Entries[e.DayKey] = append(b.Entries[e.DayKey], e)
	}
	return b
}

// Day returns the ordered entries for one day of the bucket.
func (b WeekBucket) Day(dayKey string) []Entry {
	return b.Entries[dayKey]
}

// Len returns the total number of entries across all days.
func (b WeekBucket) Len() int {
	n := 0
	for _, es := range b.Entries {
		n += len(es)
	}
	return n
}
