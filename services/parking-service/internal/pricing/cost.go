package pricing

import (
	"math"
	"time"
)

// Cost computes the charge for occupying a slot over [start,end).
// Bookings under 24 hours are billed hourly. Longer bookings take the
// cheaper of the pro-rated daily rate and the straight hourly total, so
// a long stay never costs more than its hourly equivalent. The result
// is rounded half-up to cents.
func Cost(hourlyRate float64, dailyRate *float64, start, end time.Time) float64 {
	hours := end.Sub(start).Hours()
	if hours <= 0 {
		return 0
	}

	hourly := hourlyRate * hours
	if hours < 24 || dailyRate == nil {
		return round2(hourly)
	}

	daily := *dailyRate * hours / 24
	return round2(math.Min(daily, hourly))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
