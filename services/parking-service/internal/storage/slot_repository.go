package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotpark/slotpark/libs/db"
	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
	"github.com/slotpark/slotpark/services/parking-service/internal/model"
	"github.com/slotpark/slotpark/services/parking-service/internal/outbox"
)

type SlotRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewSlotRepository(pool *db.Pool, outboxRepo *outbox.Repository) *SlotRepository {
	return &SlotRepository{pool: pool, outboxRepo: outboxRepo}
}

const slotColumns = `id, number, type, status, owner_resident_id, listed_for_rent,
	quick_available, quick_until, quick_posted_at, hourly_rate, daily_rate,
	COALESCE(notes, ''), created_at, updated_at`

func (r *SlotRepository) GetSlot(ctx context.Context, id string) (*model.Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM parking_slots
		WHERE id = $1
	`, id)
	s, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrSlotNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListSlots returns slots filtered by status and/or listing. Empty
// status means any; listedOnly narrows to marketplace listings.
func (r *SlotRepository) ListSlots(ctx context.Context, status string, listedOnly bool, limit int) ([]model.Slot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM parking_slots
		WHERE ($1 = '' OR status = $1)
			AND (NOT $2 OR listed_for_rent)
		ORDER BY number ASC
		LIMIT $3
	`, status, listedOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

func (r *SlotRepository) ListSlotsByOwner(ctx context.Context, ownerResidentID string, limit int) ([]model.Slot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM parking_slots
		WHERE owner_resident_id = $1
		ORDER BY number ASC
		LIMIT $2
	`, ownerResidentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

func (r *SlotRepository) CreateSlot(ctx context.Context, s *model.Slot) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO parking_slots
			(number, type, status, owner_resident_id, listed_for_rent, hourly_rate, daily_rate, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, s.Number, s.Type, s.Status, s.OwnerResidentID, s.ListedForRent, s.HourlyRate, s.DailyRate, s.Notes).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateSlot overwrites the owner-editable fields.
func (r *SlotRepository) UpdateSlot(ctx context.Context, s *model.Slot) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE parking_slots
		SET status = $2,
			listed_for_rent = $3,
			hourly_rate = $4,
			daily_rate = $5,
			notes = $6,
			updated_at = now()
		WHERE id = $1
	`, s.ID, s.Status, s.ListedForRent, s.HourlyRate, s.DailyRate, s.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrSlotNotFound
	}
	return nil
}

// SetQuickPost marks the slot available now until the given expiry and
// lists it on the marketplace.
func (r *SlotRepository) SetQuickPost(ctx context.Context, slotID string, until time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE parking_slots
		SET quick_available = TRUE,
			quick_until = $2,
			quick_posted_at = now(),
			listed_for_rent = TRUE,
			updated_at = now()
		WHERE id = $1
	`, slotID, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrSlotNotFound
	}
	return nil
}

// ClearQuickPost withdraws an active posting. The expiry timestamp is
// kept so the slot does not silently fall back to continuous
// availability.
func (r *SlotRepository) ClearQuickPost(ctx context.Context, slotID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE parking_slots
		SET quick_available = FALSE,
			updated_at = now()
		WHERE id = $1
	`, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrSlotNotFound
	}
	return nil
}

// SweepExpiredQuick clears postings past their expiry and records the
// outcome as an outbox event, all in one transaction.
func (r *SlotRepository) SweepExpiredQuick(ctx context.Context, now time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids, err := r.SweepExpiredQuickTx(ctx, tx, now)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		evt, err := outbox.QuickPostExpired(ids, now)
		if err != nil {
			return 0, err
		}
		if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// SweepExpiredQuickTx is the sweep body for callers that manage their
// own transaction (the maintenance worker). The expiry timestamp stays
// on the row; only the active flag and the listing are cleared.
func (r *SlotRepository) SweepExpiredQuickTx(ctx context.Context, tx pgx.Tx, now time.Time) ([]string, error) {
	rows, err := tx.Query(ctx, `
		UPDATE parking_slots
		SET quick_available = FALSE,
			listed_for_rent = FALSE,
			updated_at = now()
		WHERE quick_available = TRUE AND quick_until < $1
		RETURNING id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(
		&s.ID,
		&s.Number,
		&s.Type,
		&s.Status,
		&s.OwnerResidentID,
		&s.ListedForRent,
		&s.QuickAvailable,
		&s.QuickUntil,
		&s.QuickPostedAt,
		&s.HourlyRate,
		&s.DailyRate,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
