package outbox

import (
	"encoding/json"
	"time"

	"github.com/slotpark/slotpark/services/parking-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventBookingConfirmed = "parking.booking.confirmed.v1"
	EventBookingCancelled = "parking.booking.cancelled.v1"
	EventQuickPostExpired = "parking.quickpost.expired.v1"
)

type bookingPayload struct {
	BookingID   string   `json:"booking_id"`
	SlotID      string   `json:"slot_id"`
	ResidentID  string   `json:"resident_id"`
	BookedByID  string   `json:"booked_by_id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	TotalAmount *float64 `json:"total_amount,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	OccurredAt  string   `json:"occurred_at"`
}

func BookingConfirmed(b *model.Booking, at time.Time) (Event, error) {
	payload, err := json.Marshal(bookingPayload{
		BookingID:   b.ID,
		SlotID:      b.SlotID,
		ResidentID:  b.ResidentID,
		BookedByID:  b.BookedByID,
		StartTime:   b.StartTime.Format(time.RFC3339),
		EndTime:     b.EndTime.Format(time.RFC3339),
		TotalAmount: b.TotalAmount,
		OccurredAt:  at.Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     EventBookingConfirmed,
		Payload:       payload,
	}, nil
}

func BookingCancelled(b *model.Booking, at time.Time) (Event, error) {
	payload, err := json.Marshal(bookingPayload{
		BookingID:  b.ID,
		SlotID:     b.SlotID,
		ResidentID: b.ResidentID,
		BookedByID: b.BookedByID,
		StartTime:  b.StartTime.Format(time.RFC3339),
		EndTime:    b.EndTime.Format(time.RFC3339),
		Reason:     b.CancelReason,
		OccurredAt: at.Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     EventBookingCancelled,
		Payload:       payload,
	}, nil
}

type sweepPayload struct {
	SlotIDs []string `json:"slot_ids"`
	Count   int      `json:"count"`
	SweptAt string   `json:"swept_at"`
}

// QuickPostExpired records one sweep run that cleared at least one slot.
func QuickPostExpired(slotIDs []string, at time.Time) (Event, error) {
	payload, err := json.Marshal(sweepPayload{
		SlotIDs: slotIDs,
		Count:   len(slotIDs),
		SweptAt: at.Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	aggregateID := ""
	if len(slotIDs) > 0 {
		aggregateID = slotIDs[0]
	}
	return Event{
		AggregateType: "slot",
		AggregateID:   aggregateID,
		EventType:     EventQuickPostExpired,
		Payload:       payload,
	}, nil
}
