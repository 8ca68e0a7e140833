package collaboration

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Limit on dates per schedule-change request.
const MaxDatesPerRequest = 3

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday resolves a stored weekday name ("Wednesday") to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("invalid weekday: %q", name)
	}
	return day, nil
}

// ProjectedEndDate walks forward from endDate one day at a time, counting
// occurrences of the recurring weekday, and returns the date of the count-th
// occurrence after endDate. Extending the engagement to that date adds
// exactly one session per missed date, preserving the total session count.
func ProjectedEndDate(endDate time.Time, day time.Weekday, count int) time.Time {
	d := endDate
	for count > 0 {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == day {
			count--
		}
	}
	return d
}

// SessionDates lists every occurrence of the recurring weekday within
// [start, end], inclusive.
func SessionDates(start, end time.Time, day time.Weekday) []time.Time {
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == day {
			dates = append(dates, d)
		}
	}
	return dates
}

// FirstOccurrence returns the first occurrence of day on or after start.
func FirstOccurrence(start time.Time, day time.Weekday) time.Time {
	d := start
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// ScheduleSpan computes the start and end dates of an engagement running for
// sessions weekly occurrences of day, beginning on or after requested.
func ScheduleSpan(requested time.Time, day time.Weekday, sessions int) (time.Time, time.Time) {
	first := FirstOccurrence(requested, day)
	return first, first.AddDate(0, 0, 7*(sessions-1))
}

// TruncateToDay drops the time-of-day component.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

var (
	errNoDates       = errors.New("at least one date is required")
	errTooManyDates  = fmt.Errorf("at most %d dates may be submitted per request", MaxDatesPerRequest)
	errDuplicateDate = errors.New("duplicate date in request")
)

// validateProposalDates applies the shared rules for unavailability and slot
// change submissions: every date must fall on the recurring weekday, must not
// be in the past, must lie within [start, end], and must not already be
// covered by an approved unavailable date. Any violation rejects the whole
// batch.
func validateProposalDates(dates []time.Time, day time.Weekday, start, end, today time.Time, taken map[string]bool) error {
	if len(dates) == 0 {
		return errNoDates
	}
	if len(dates) > MaxDatesPerRequest {
		return errTooManyDates
	}

	// ISO date strings order lexically, which sidesteps location mismatches
	// between parsed dates and stored timestamps.
	startKey := start.Format(DateLayout)
	endKey := end.Format(DateLayout)
	todayKey := today.Format(DateLayout)

	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		key := d.Format(DateLayout)
		if seen[key] {
			return errDuplicateDate
		}
		seen[key] = true

		if d.Weekday() != day {
			return fmt.Errorf("%s does not fall on the session day (%s)", key, day)
		}
		if key < todayKey {
			return fmt.Errorf("%s is in the past", key)
		}
		if key < startKey || key > endKey {
			return fmt.Errorf("%s is outside the collaboration period", key)
		}
		if taken[key] {
			return fmt.Errorf("%s is already marked unavailable", key)
		}
	}
	return nil
}
