package schedule

import (
	"testing"
	"time"

	"github.com/slotpark/slotpark/services/parking-service/internal/model"
)

func TestEvaluate_NoGrantData(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)
	start := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC)

	v := r.Evaluate(SlotSchedule{}, start, end, now)
	if !v.Available {
		t.Fatalf("expected slot without windows or quick posting to be continuously bookable, got reason %q", v.Reason)
	}
}

func TestEvaluate_BlackoutOnlySlot(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)
	s := SlotSchedule{
		Blackouts: []model.Blackout{{
			SlotID:    "slot-1",
			StartTime: time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC),
		}},
	}

	v := r.Evaluate(s, time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC), now)
	if v.Available {
		t.Fatal("expected blackout to block the request")
	}
	if v.Reason != ReasonBlackout || v.Blackout == nil {
		t.Fatalf("expected blackout verdict with interval, got reason %q blackout %v", v.Reason, v.Blackout)
	}

	v = r.Evaluate(s, time.Date(2026, 1, 29, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 29, 11, 0, 0, 0, time.UTC), now)
	if !v.Available {
		t.Fatalf("expected request outside the blackout to pass, got reason %q", v.Reason)
	}
}

func TestEvaluate_BlackoutBeatsWindow(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2025, 12, 20, 8, 0, 0, 0, time.UTC)
	s := SlotSchedule{
		Windows: []model.Window{{
			SlotID:     "slot-1",
			Weekdays:   []int{4}, // Thursday
			StartClock: "08:00",
			EndClock:   "20:00",
		}},
		Blackouts: []model.Blackout{{
			SlotID:    "slot-1",
			StartTime: time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2025, 12, 27, 0, 0, 0, 0, time.UTC),
		}},
	}

	// 2025-12-25 is a Thursday inside the window, but the blackout wins.
	v := r.Evaluate(s, time.Date(2025, 12, 25, 9, 0, 0, 0, time.UTC), time.Date(2025, 12, 25, 11, 0, 0, 0, time.UTC), now)
	if v.Available || v.Reason != ReasonBlackout {
		t.Fatalf("expected blackout to beat the recurring window, got available=%v reason %q", v.Available, v.Reason)
	}

	// The following Thursday is clear.
	v = r.Evaluate(s, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), now)
	if !v.Available {
		t.Fatalf("expected next Thursday to be bookable, got reason %q", v.Reason)
	}
}

func TestEvaluate_QuickAvailability(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2026, 1, 28, 8, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 28, 18, 0, 0, 0, time.UTC)
	s := SlotSchedule{QuickActive: true, QuickUntil: &until}

	v := r.Evaluate(s, time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC), now)
	if !v.Available {
		t.Fatalf("expected quick posting to grant the interval, got reason %q", v.Reason)
	}

	// End past the posting's expiry is not granted.
	v = r.Evaluate(s, time.Date(2026, 1, 28, 17, 0, 0, 0, time.UTC), time.Date(2026, 1, 28, 19, 0, 0, 0, time.UTC), now)
	if v.Available {
		t.Fatal("expected request ending after quick_until to be denied")
	}

	// Quick grants never apply to starts in the past.
	v = r.Evaluate(s, time.Date(2026, 1, 28, 7, 0, 0, 0, time.UTC), time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), now)
	if v.Available {
		t.Fatal("expected request starting before now to be denied")
	}
}

func TestEvaluate_QuickExpiryIgnoresStaleFlag(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2026, 1, 28, 8, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 27, 18, 0, 0, 0, time.UTC)
	// Sweep has not run yet: flag still set, expiry already past.
	s := SlotSchedule{QuickActive: true, QuickUntil: &until}

	v := r.Evaluate(s, time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC), now)
	if v.Available {
		t.Fatal("expected expired quick posting to grant nothing")
	}
	if v.Reason != ReasonNoWindow {
		t.Fatalf("expected no_matching_window, got %q", v.Reason)
	}
}

func TestEvaluate_WeekdayWindow(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC)
	s := SlotSchedule{
		Windows: []model.Window{{
			SlotID:     "slot-1",
			Weekdays:   []int{1, 3}, // Monday, Wednesday
			StartClock: "09:00",
			EndClock:   "17:00",
		}},
	}

	// 2026-01-26 is a Monday.
	v := r.Evaluate(s, time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC), time.Date(2026, 1, 26, 12, 0, 0, 0, time.UTC), now)
	if !v.Available {
		t.Fatalf("expected Monday request inside the window to pass, got reason %q", v.Reason)
	}

	// Tuesday is not granted.
	v = r.Evaluate(s, time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC), time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC), now)
	if v.Available || v.Reason != ReasonNoWindow {
		t.Fatalf("expected Tuesday to be denied with no_matching_window, got available=%v reason %q", v.Available, v.Reason)
	}

	// Starting before the window's clock is not a full containment.
	v = r.Evaluate(s, time.Date(2026, 1, 26, 8, 30, 0, 0, time.UTC), time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC), now)
	if v.Available {
		t.Fatal("expected request starting before 09:00 to be denied")
	}
}

func TestEvaluate_DateRangeWindow(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	from := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	s := SlotSchedule{
		Windows: []model.Window{{
			SlotID:     "slot-1",
			StartDate:  &from,
			EndDate:    &to,
			StartClock: "00:00",
			EndClock:   "24:00",
		}},
	}

	v := r.Evaluate(s, time.Date(2025, 12, 25, 9, 0, 0, 0, time.UTC), time.Date(2025, 12, 25, 18, 0, 0, 0, time.UTC), now)
	if !v.Available {
		t.Fatalf("expected date inside the range to pass, got reason %q", v.Reason)
	}

	// Past the inclusive end date.
	v = r.Evaluate(s, time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC), now)
	if v.Available {
		t.Fatal("expected date after the range to be denied")
	}
}

func TestEvaluate_OvernightNeedsBothDays(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)
	friday := model.Window{
		SlotID:     "slot-1",
		Weekdays:   []int{5},
		StartClock: "18:00",
		EndClock:   "24:00",
	}
	// 2026-01-30 is a Friday; the request runs into Saturday morning.
	start := time.Date(2026, 1, 30, 20, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 2, 0, 0, 0, time.UTC)

	v := r.Evaluate(SlotSchedule{Windows: []model.Window{friday}}, start, end, now)
	if v.Available {
		t.Fatal("expected overnight request to fail without a Saturday window")
	}

	saturday := model.Window{
		SlotID:     "slot-1",
		Weekdays:   []int{6},
		StartClock: "00:00",
		EndClock:   "06:00",
	}
	v = r.Evaluate(SlotSchedule{Windows: []model.Window{friday, saturday}}, start, end, now)
	if !v.Available {
		t.Fatalf("expected both segments to be covered, got reason %q", v.Reason)
	}
}

func TestEvaluate_MultiDaySpan(t *testing.T) {
	r := NewResolver(time.UTC)
	now := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	from := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC)
	s := SlotSchedule{
		Windows: []model.Window{{
			SlotID:     "slot-1",
			StartDate:  &from,
			EndDate:    &to,
			StartClock: "00:00",
			EndClock:   "24:00",
		}},
	}

	// Three full days, all inside the granted range.
	v := r.Evaluate(s, time.Date(2025, 12, 23, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC), now)
	if !v.Available {
		t.Fatalf("expected multi-day request inside the range to pass, got reason %q", v.Reason)
	}

	// The last day falls outside the range, so the whole request fails.
	v = r.Evaluate(s, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC), now)
	if v.Available {
		t.Fatal("expected request running past the range to be denied")
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"24:00", 1440, true},
		{"24:01", 0, false},
		{"25:00", 0, false},
		{"9am", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := ParseClock(c.in)
		if c.ok && (err != nil || got != c.minutes) {
			t.Fatalf("ParseClock(%q): expected %d, got %d err %v", c.in, c.minutes, got, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseClock(%q): expected error", c.in)
		}
	}
}
