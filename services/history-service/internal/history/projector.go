package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotpark/slotpark/libs/kafkax"
)

// Topic names match the event types parking-service publishes.
const (
	TopicBookingConfirmed = "parking.booking.confirmed.v1"
	TopicBookingCancelled = "parking.booking.cancelled.v1"
	TopicQuickPostExpired = "parking.quickpost.expired.v1"
)

// Store is the projector's write side.
type Store interface {
	InsertMany(ctx context.Context, entries []Entry) error
}

// Projector turns parking domain events into audit log rows. Malformed
// payloads are logged and dropped; retrying them cannot succeed.
type Projector struct {
	store  Store
	logger *slog.Logger
}

func NewProjector(store Store, logger *slog.Logger) *Projector {
	return &Projector{store: store, logger: logger}
}

func (p *Projector) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case TopicBookingConfirmed, TopicBookingCancelled:
		return p.projectBooking(ctx, msg)
	case TopicQuickPostExpired:
		return p.projectSweep(ctx, msg)
	default:
		p.logger.Warn("unexpected topic", "topic", msg.Topic)
		return nil
	}
}

type bookingEventPayload struct {
	BookingID  string `json:"booking_id"`
	SlotID     string `json:"slot_id"`
	ResidentID string `json:"resident_id"`
	OccurredAt string `json:"occurred_at"`
}

func (p *Projector) projectBooking(ctx context.Context, msg kafka.Message) error {
	var payload bookingEventPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		p.logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if payload.BookingID == "" || payload.SlotID == "" {
		p.logger.Error("missing required event fields", "topic", msg.Topic)
		return nil
	}
	occurredAt, err := time.Parse(time.RFC3339, payload.OccurredAt)
	if err != nil {
		p.logger.Error("invalid occurred_at", "err", err, "topic", msg.Topic)
		return nil
	}

	meta := kafkax.ExtractEventMeta(msg)
	return p.store.InsertMany(ctx, []Entry{{
		EventID:    meta.EventID,
		EventType:  msg.Topic,
		BookingID:  payload.BookingID,
		SlotID:     payload.SlotID,
		ResidentID: payload.ResidentID,
		OccurredAt: occurredAt,
		Payload:    msg.Value,
	}})
}

type sweepEventPayload struct {
	SlotIDs []string `json:"slot_ids"`
	SweptAt string   `json:"swept_at"`
}

// projectSweep fans one sweep event out into a row per cleared slot so
// each slot timeline shows its own expiry.
func (p *Projector) projectSweep(ctx context.Context, msg kafka.Message) error {
	var payload sweepEventPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		p.logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if len(payload.SlotIDs) == 0 {
		p.logger.Error("missing required event fields", "topic", msg.Topic)
		return nil
	}
	sweptAt, err := time.Parse(time.RFC3339, payload.SweptAt)
	if err != nil {
		p.logger.Error("invalid swept_at", "err", err, "topic", msg.Topic)
		return nil
	}

	meta := kafkax.ExtractEventMeta(msg)
	entries := make([]Entry, 0, len(payload.SlotIDs))
	for _, slotID := range payload.SlotIDs {
		if slotID == "" {
			continue
		}
		entries = append(entries, Entry{
			EventID:    meta.EventID,
			EventType:  msg.Topic,
			SlotID:     slotID,
			OccurredAt: sweptAt,
			Payload:    msg.Value,
		})
	}
	return p.store.InsertMany(ctx, entries)
}
