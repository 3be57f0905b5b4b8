package schedule

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
// [a.Start,a.End) overlaps [b.Start,b.End) iff a.Start < b.End && b.Start < a.End.
// Touching endpoints (back-to-back bookings) do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func OverlapsAny(start, end time.Time, busy []Interval) bool {
	_, ok := FirstOverlap(start, end, busy)
	return ok
}

// FirstOverlap returns the first busy interval that collides with
// [start,end), so callers can report what is blocking the request.
func FirstOverlap(start, end time.Time, busy []Interval) (Interval, bool) {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return b, true
		}
	}
	return Interval{}, false
}
