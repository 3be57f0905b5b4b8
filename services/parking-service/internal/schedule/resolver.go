package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slotpark/slotpark/services/parking-service/internal/model"
)

// Verdict reasons.
const (
	ReasonBlackout = "blackout"
	ReasonNoWindow = "no_matching_window"
)

// SlotSchedule is the availability data carried by one slot.
type SlotSchedule struct {
	Windows     []model.Window
	Blackouts   []model.Blackout
	QuickActive bool
	QuickUntil  *time.Time
}

// HasGrants reports whether the slot restricts bookings to granted
// periods. A slot with no windows and no quick posting is continuously
// bookable (blackouts still apply).
func (s SlotSchedule) HasGrants() bool {
	return len(s.Windows) > 0 || s.QuickActive || s.QuickUntil != nil
}

type Verdict struct {
	Available bool
	Reason    string
	Blackout  *Interval // set when Reason == ReasonBlackout
}

// Resolver answers whether a requested interval falls inside a slot's
// granted availability. All clock matching happens in the community's
// local timezone.
type Resolver struct {
	loc *time.Location
}

func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// Evaluate checks [start,end) against the slot's schedule, in order:
// blackouts, then quick availability, then recurring windows. Quick
// availability must cover the whole interval and cannot start in the
// past; its expiry is checked directly so a lagging sweep never grants
// stale availability. Requests spanning local midnight are split per
// day and every piece must match some window.
func (r *Resolver) Evaluate(s SlotSchedule, start, end, now time.Time) Verdict {
	for _, b := range s.Blackouts {
		if start.Before(b.EndTime) && b.StartTime.Before(end) {
			bi := Interval{Start: b.StartTime, End: b.EndTime}
			return Verdict{Available: false, Reason: ReasonBlackout, Blackout: &bi}
		}
	}

	if !s.HasGrants() {
		return Verdict{Available: true}
	}

	if s.QuickActive && s.QuickUntil != nil && !s.QuickUntil.Before(end) && !start.Before(now) {
		return Verdict{Available: true}
	}

	if len(s.Windows) > 0 && r.windowsCover(s.Windows, start, end) {
		return Verdict{Available: true}
	}

	return Verdict{Available: false, Reason: ReasonNoWindow}
}

func (r *Resolver) windowsCover(windows []model.Window, start, end time.Time) bool {
	for _, seg := range r.splitDays(start, end) {
		matched := false
		for _, w := range windows {
			if r.windowCovers(w, seg.Start, seg.End) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// splitDays cuts [start,end) at each local midnight. DST-safe: the next
// midnight is computed via the calendar, not by adding 24h.
func (r *Resolver) splitDays(start, end time.Time) []Interval {
	var segs []Interval
	t := start
	for t.Before(end) {
		y, m, d := t.In(r.loc).Date()
		dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, r.loc)
		segEnd := dayEnd
		if end.Before(dayEnd) {
			segEnd = end
		}
		segs = append(segs, Interval{Start: t, End: segEnd})
		t = segEnd
	}
	return segs
}

// windowCovers reports whether one window grants the whole segment.
// The segment never crosses local midnight; its end may be exactly the
// next midnight, which counts as second 86400 of the segment's day.
func (r *Resolver) windowCovers(w model.Window, segStart, segEnd time.Time) bool {
	local := segStart.In(r.loc)

	if len(w.Weekdays) > 0 {
		if !containsWeekday(w.Weekdays, int(local.Weekday())) {
			return false
		}
	} else if w.StartDate != nil && w.EndDate != nil {
		// date columns come back as plain dates; key them by calendar
		// day so the scan location does not matter
		day := dateKey(local)
		if day < dateKey(*w.StartDate) || day > dateKey(*w.EndDate) {
			return false
		}
	} else {
		return false
	}

	winStart, err := ParseClock(w.StartClock)
	if err != nil {
		return false
	}
	winEnd, err := ParseClock(w.EndClock)
	if err != nil {
		return false
	}

	startSec := secondsOfDay(local)
	endSec := secondsOfDay(segEnd.In(r.loc))
	if endSec == 0 {
		// segment ends exactly at the next midnight
		endSec = 24 * 3600
	}
	return winStart*60 <= startSec && endSec <= winEnd*60
}

func containsWeekday(days []int, d int) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// ParseClock converts "HH:MM" into minutes since midnight. "24:00" is
// allowed so a window can run to end of day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("clock %q must be HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("clock %q must be HH:MM", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}
