package model

import "time"

// Slot types.
const (
	SlotTypeCovered   = "covered"
	SlotTypeUncovered = "uncovered"
	SlotTypeVisitor   = "visitor"
)

// Slot statuses. Only available slots admit bookings.
const (
	SlotStatusAvailable   = "available"
	SlotStatusMaintenance = "maintenance"
	SlotStatusReserved    = "reserved"
)

type Slot struct {
	ID              string
	Number          string
	Type            string
	Status          string
	OwnerResidentID *string // nil means shared/visitor slot
	ListedForRent   bool
	QuickAvailable  bool
	QuickUntil      *time.Time
	QuickPostedAt   *time.Time
	HourlyRate      *float64
	DailyRate       *float64
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func ValidSlotType(s string) bool {
	switch s {
	case SlotTypeCovered, SlotTypeUncovered, SlotTypeVisitor:
		return true
	}
	return false
}

func ValidSlotStatus(s string) bool {
	switch s {
	case SlotStatusAvailable, SlotStatusMaintenance, SlotStatusReserved:
		return true
	}
	return false
}
