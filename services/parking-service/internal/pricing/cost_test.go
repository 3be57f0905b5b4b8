package pricing

import (
	"testing"
	"time"
)

func TestCost_ShortBookingIsHourly(t *testing.T) {
	start := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	daily := 400.0

	got := Cost(50, &daily, start, end)
	if got != 100.00 {
		t.Fatalf("expected 100.00 for 2h at 50/h, got %.2f", got)
	}
}

func TestCost_LongBookingTakesCheaperRate(t *testing.T) {
	start := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Hour)
	daily := 400.0

	// 30h hourly would be 1500; pro-rated daily is 400*30/24 = 500.
	got := Cost(50, &daily, start, end)
	if got != 500.00 {
		t.Fatalf("expected 500.00 for 30h at 50/h daily 400, got %.2f", got)
	}

	// An expensive daily rate never makes the booking cost more than hourly.
	pricey := 2000.0
	got = Cost(50, &pricey, start, end)
	if got != 1500.00 {
		t.Fatalf("expected hourly total 1500.00 to win, got %.2f", got)
	}
}

func TestCost_NoDailyRateFallsBackToHourly(t *testing.T) {
	start := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	got := Cost(10, nil, start, end)
	if got != 480.00 {
		t.Fatalf("expected 480.00 for 48h at 10/h without a daily rate, got %.2f", got)
	}
}

func TestCost_RoundsHalfUpToCents(t *testing.T) {
	start := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Minute)

	// 0.25h * 12.50 = 3.125 -> the half cent rounds up.
	got := Cost(12.50, nil, start, end)
	if got != 3.13 {
		t.Fatalf("expected 3.125 to round up to 3.13, got %.2f", got)
	}
}

// Crossing the 24h threshold the pro-rated daily rate can undercut the
// hourly total, so monotonicity is checked per billing regime.
func TestCost_MonotoneWithinRegime(t *testing.T) {
	start := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	daily := 400.0

	prev := 0.0
	for h := 1; h < 24; h++ {
		got := Cost(50, &daily, start, start.Add(time.Duration(h)*time.Hour))
		if got < prev {
			t.Fatalf("hourly cost decreased from %.2f to %.2f at %dh", prev, got, h)
		}
		prev = got
	}

	prev = 0.0
	for h := 24; h <= 96; h++ {
		got := Cost(50, &daily, start, start.Add(time.Duration(h)*time.Hour))
		if got < prev {
			t.Fatalf("daily-regime cost decreased from %.2f to %.2f at %dh", prev, got, h)
		}
		prev = got
	}
}
