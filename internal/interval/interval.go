package interval

import (
	"fmt"
	"sort"
	"time"
)

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a Span and validates Start < End.
func New(start, end time.Time) (Span, error) {
	if !start.Before(end) {
		return Span{}, fmt.Errorf("interval start %s must be before end %s", start, end)
	}
	return Span{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// IsZero reports whether the span is empty.
func (s Span) IsZero() bool {
	return s.Start.IsZero() && s.End.IsZero()
}

// Overlaps reports whether two half-open spans intersect.
// Touching endpoints (a.End == b.Start) do not overlap.
func (s Span) Overlaps(other Span) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// Contains reports whether other lies fully inside s.
func (s Span) Contains(other Span) bool {
	return !other.Start.Before(s.Start) && !other.End.After(s.End)
}

// Subtract removes other from s, yielding zero, one or two remainders.
func (s Span) Subtract(other Span) []Span {
	if !s.Overlaps(other) {
		return []Span{s}
	}
	var out []Span
	if s.Start.Before(other.Start) {
		out = append(out, Span{Start: s.Start, End: other.Start})
	}
	if other.End.Before(s.End) {
		out = append(out, Span{Start: other.End, End: s.End})
	}
	return out
}

// Merge sorts spans and coalesces overlapping or touching neighbours.
// The input slice is not modified.
func Merge(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := []Span{sorted[0]}
	for _, sp := range sorted[1:] {
		last := &out[len(out)-1]
		if !sp.Start.After(last.End) {
			if sp.End.After(last.End) {
				last.End = sp.End
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// SubtractAll removes every span in busy from each span in free and
// returns the ordered remainders.
func SubtractAll(free, busy []Span) []Span {
	if len(busy) == 0 {
		return Merge(free)
	}
	current := Merge(free)
	for _, b := range busy {
		var next []Span
		for _, f := range current {
			next = append(next, f.Subtract(b)...)
		}
		current = next
	}
	return current
}

// ContainedInAny reports whether candidate fits fully inside one of spans.
func ContainedInAny(candidate Span, spans []Span) bool {
	for _, sp := range spans {
		if sp.Contains(candidate) {
			return true
		}
	}
	return false
}
