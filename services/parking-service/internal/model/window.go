package model

import "time"

// Window is a recurring availability grant on a slot. Exactly one of the
// two shapes is set: a weekday set (0=Sunday .. 6=Saturday) or an
// inclusive calendar date range. Clocks are community-local "HH:MM";
// EndClock may be "24:00" to reach midnight.
type Window struct {
	ID         string
	SlotID     string
	Weekdays   []int
	StartDate  *time.Time
	EndDate    *time.Time
	StartClock string
	EndClock   string
	CreatedAt  time.Time
}

// Blackout is an absolute no-booking interval on a slot. Blackouts beat
// every grant, including quick availability.
type Blackout struct {
	ID        string
	SlotID    string
	StartTime time.Time
	EndTime   time.Time
	Reason    string
	CreatedAt time.Time
}
