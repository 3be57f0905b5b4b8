package model

import "time"

// Booking statuses. Confirmed is the only status that blocks a slot's
// timeline; every transition out of confirmed is terminal.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
	BookingStatusNoShow    = "no_show"
)

// Payment statuses recorded on a booking. Processing the payment itself
// happens outside this system.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusWaived  = "waived"
)

type Booking struct {
	ID                 string
	SlotID             string
	ResidentID         string
	BookedByID         string // differs from ResidentID when an admin books on behalf
	StartTime          time.Time
	EndTime            time.Time
	Status             string
	TotalAmount        *float64
	HourlyRateSnapshot *float64
	PaymentStatus      string
	Notes              string
	CancelledAt        *time.Time
	CancelReason       string
	CreatedAt          time.Time
}

func ValidBookingStatus(s string) bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow:
		return true
	}
	return false
}
