package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotpark/slotpark/libs/db"
)

// Entry is one row of the booking audit log. Sweep events carry no
// booking or resident, only the slot they cleared.
type Entry struct {
	EventID    string
	EventType  string
	BookingID  string
	SlotID     string
	ResidentID string
	OccurredAt time.Time
	Payload    []byte
	RecordedAt time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `event_id, event_type, COALESCE(booking_id, ''), slot_id,
	COALESCE(resident_id, ''), occurred_at, payload, recorded_at`

// InsertMany writes all rows of one event in a single transaction, so a
// sweep touching several slots is either fully recorded or not at all.
func (r *Repository) InsertMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, e := range entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO booking_audit_log (event_id, event_type, booking_id, slot_id, resident_id, occurred_at, payload)
			VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7)
		`, e.EventID, e.EventType, e.BookingID, e.SlotID, e.ResidentID, e.OccurredAt, e.Payload)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListBookings returns audit entries newest first, optionally narrowed
// to one resident and/or one slot.
func (r *Repository) ListBookings(ctx context.Context, residentID, slotID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM booking_audit_log
		WHERE ($1 = '' OR resident_id = $1)
			AND ($2 = '' OR slot_id = $2)
		ORDER BY occurred_at DESC, recorded_at DESC
		LIMIT $3
	`, residentID, slotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListBySlot returns the full event timeline of one slot, bookings and
// sweep expiries alike.
func (r *Repository) ListBySlot(ctx context.Context, slotID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM booking_audit_log
		WHERE slot_id = $1
		ORDER BY occurred_at DESC, recorded_at DESC
		LIMIT $2
	`, slotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EventID, &e.EventType, &e.BookingID, &e.SlotID,
			&e.ResidentID, &e.OccurredAt, &e.Payload, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}
