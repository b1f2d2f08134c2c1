// Package availability reduces recurring weekly windows, date exceptions and
// busy time into the ordered set of bookable intervals for a date range.
package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"
)

// Inputs is the snapshot the resolver works from. Busy carries manual and
// calendar-derived blocks alike; Committed carries the windows of requests
// already APPROVED or PROPOSED_TIME, which are treated as implicit busy
// blocks padded by the configured buffer.
type Inputs struct {
	Windows    []model.AvailabilityWindow
	Exceptions []model.AvailabilityException
	Busy       []interval.Span
	Committed  []interval.Span
	Settings   model.BookingSettings
}

// Resolve computes the free intervals for every date from fromDate through
// toDate (inclusive, interpreted in the business timezone). The result is
// ordered, non-overlapping and deterministic for unchanged inputs.
func Resolve(in Inputs, fromDate, toDate time.Time) ([]interval.Span, error) {
	loc := in.Settings.Location()

	base, err := baseHours(in, fromDate, toDate, loc)
	if err != nil {
		return nil, err
	}

	busy := make([]interval.Span, 0, len(in.Busy)+len(in.Committed))
	busy = append(busy, in.Busy...)
	buffer := time.Duration(in.Settings.BufferMinutes) * time.Minute
	for _, c := range in.Committed {
		busy = append(busy, interval.Span{Start: c.Start.Add(-buffer), End: c.End.Add(buffer)})
	}

	return interval.SubtractAll(base, busy), nil
}

// FilterForBrowsing applies the slot-list-only constraints: minimum length,
// minimum notice and booking horizon. Validation of a specific candidate
// interval deliberately skips these.
func FilterForBrowsing(spans []interval.Span, minLength time.Duration, now time.Time, settings model.BookingSettings) []interval.Span {
	loc := settings.Location()
	earliest := now.Add(time.Duration(settings.MinNoticeHours) * time.Hour)
	horizon := time.Time{}
	if settings.MaxDaysOut > 0 {
		horizon = startOfDay(now.In(loc)).AddDate(0, 0, settings.MaxDaysOut+1)
	}

	out := make([]interval.Span, 0, len(spans))
	for _, sp := range spans {
		if sp.Duration() < minLength {
			continue
		}
		if sp.Start.Before(earliest) {
			continue
		}
		if !horizon.IsZero() && !sp.Start.Before(horizon) {
			continue
		}
		out = append(out, sp)
	}
	return out
}

// baseHours runs step 1: per-date hours from exceptions or merged windows.
func baseHours(in Inputs, fromDate, toDate time.Time, loc *time.Location) ([]interval.Span, error) {
	byDate := effectiveExceptions(in.Exceptions)

	byWeekday := map[int][]model.AvailabilityWindow{}
	for _, w := range in.Windows {
		if !w.Enabled {
			continue
		}
		byWeekday[w.DayOfWeek] = append(byWeekday[w.DayOfWeek], w)
	}

	var out []interval.Span
	start := startOfDay(fromDate.In(loc))
	end := startOfDay(toDate.In(loc))
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dateStr := day.Format(model.DateFormat)

		if exc, ok := byDate[dateStr]; ok {
			switch exc.Kind {
			case model.ExceptionClosed:
				continue
			case model.ExceptionCustomHours:
				sp, err := clockSpan(day, exc.StartTime, exc.EndTime, loc)
				if err != nil {
					return nil, fmt.Errorf("exception %s: %w", exc.ID, err)
				}
				out = append(out, sp)
				continue
			}
		}

		var daySpans []interval.Span
		for _, w := range byWeekday[int(day.Weekday())] {
			sp, err := clockSpan(day, w.StartTime, w.EndTime, loc)
			if err != nil {
				return nil, fmt.Errorf("window %s: %w", w.ID, err)
			}
			daySpans = append(daySpans, sp)
		}
		out = append(out, interval.Merge(daySpans)...)
	}
	return out, nil
}

// effectiveExceptions picks a single winner per date: the most recently
// created row, falling back to the lexically greatest id on an exact
// CreatedAt tie. The source system left this implicit; here it is fixed.
func effectiveExceptions(excs []model.AvailabilityException) map[string]model.AvailabilityException {
	byDate := map[string]model.AvailabilityException{}
	sorted := make([]model.AvailabilityException, len(excs))
	copy(sorted, excs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	for _, e := range sorted {
		byDate[e.Date] = e // later rows win
	}
	return byDate
}

func clockSpan(day time.Time, startClock, endClock string, loc *time.Location) (interval.Span, error) {
	start, err := atClock(day, startClock, loc)
	if err != nil {
		return interval.Span{}, err
	}
	end, err := atClock(day, endClock, loc)
	if err != nil {
		return interval.Span{}, err
	}
	return interval.New(start, end)
}

func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(model.ClockFormat, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock value %q", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
