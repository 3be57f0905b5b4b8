package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/slotpark/slotpark/services/parking-service/internal/model"
)

func TestBookingConfirmedEventShape(t *testing.T) {
	amount := 12.5
	b := &model.Booking{
		ID:          "b-1",
		SlotID:      "s-1",
		ResidentID:  "r-1",
		BookedByID:  "r-1",
		StartTime:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
		TotalAmount: &amount,
	}
	at := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	evt, err := BookingConfirmed(b, at)
	if err != nil {
		t.Fatalf("BookingConfirmed failed: %v", err)
	}
	if evt.EventType != EventBookingConfirmed {
		t.Fatalf("expected event type %s, got %s", EventBookingConfirmed, evt.EventType)
	}
	if evt.AggregateType != "booking" || evt.AggregateID != "b-1" {
		t.Fatalf("expected booking aggregate b-1, got %s %s", evt.AggregateType, evt.AggregateID)
	}

	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload["booking_id"] != "b-1" || payload["slot_id"] != "s-1" || payload["resident_id"] != "r-1" {
		t.Fatalf("unexpected identifiers in payload: %v", payload)
	}
	if payload["start_time"] != "2026-03-01T09:00:00Z" || payload["occurred_at"] != "2026-03-01T08:30:00Z" {
		t.Fatalf("expected RFC3339 timestamps, got %v", payload)
	}
	if payload["total_amount"] != 12.5 {
		t.Fatalf("expected total_amount 12.5, got %v", payload["total_amount"])
	}
	if _, ok := payload["reason"]; ok {
		t.Fatal("confirmed event must not carry a cancellation reason")
	}
}

func TestBookingCancelledCarriesReason(t *testing.T) {
	b := &model.Booking{
		ID:           "b-2",
		SlotID:       "s-1",
		ResidentID:   "r-1",
		BookedByID:   "r-1",
		StartTime:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		CancelReason: "plans changed",
	}

	evt, err := BookingCancelled(b, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BookingCancelled failed: %v", err)
	}
	if evt.EventType != EventBookingCancelled {
		t.Fatalf("expected event type %s, got %s", EventBookingCancelled, evt.EventType)
	}

	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload["reason"] != "plans changed" {
		t.Fatalf("expected cancellation reason, got %v", payload["reason"])
	}
	if _, ok := payload["total_amount"]; ok {
		t.Fatal("unpriced booking must omit total_amount")
	}
}

func TestQuickPostExpiredShape(t *testing.T) {
	at := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	evt, err := QuickPostExpired([]string{"s-1", "s-2"}, at)
	if err != nil {
		t.Fatalf("QuickPostExpired failed: %v", err)
	}
	if evt.EventType != EventQuickPostExpired {
		t.Fatalf("expected event type %s, got %s", EventQuickPostExpired, evt.EventType)
	}
	if evt.AggregateType != "slot" || evt.AggregateID != "s-1" {
		t.Fatalf("expected slot aggregate keyed by first id, got %s %s", evt.AggregateType, evt.AggregateID)
	}

	var payload struct {
		SlotIDs []string `json:"slot_ids"`
		Count   int      `json:"count"`
		SweptAt string   `json:"swept_at"`
	}
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.Count != 2 || len(payload.SlotIDs) != 2 || payload.SlotIDs[1] != "s-2" {
		t.Fatalf("unexpected sweep payload: %+v", payload)
	}
	if payload.SweptAt != "2026-03-01T06:00:00Z" {
		t.Fatalf("expected RFC3339 swept_at, got %s", payload.SweptAt)
	}
}
