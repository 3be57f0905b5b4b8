package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slotpark/slotpark/libs/db"
	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
	"github.com/slotpark/slotpark/services/parking-service/internal/model"
	"github.com/slotpark/slotpark/services/parking-service/internal/outbox"
	"github.com/slotpark/slotpark/services/parking-service/internal/schedule"
)

// BookingRepository persists bookings. The bookings table carries an
// exclusion constraint over (slot_id, tstzrange(start_time, end_time))
// for confirmed rows, so an insert that lost a race fails with SQLSTATE
// 23P01 no matter what the pre-checks saw.
type BookingRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outboxRepo: outboxRepo}
}

type idempotencyRecord struct {
	ResidentID     string
	IdempotencyKey string
	BookingID      string
}

const bookingColumns = `id, slot_id, resident_id, booked_by_id, start_time, end_time, status,
	total_amount, hourly_rate_snapshot, payment_status, COALESCE(notes, ''),
	cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func (r *BookingRepository) FindByIdempotencyKey(ctx context.Context, residentID, key string) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = (
			SELECT booking_id
			FROM booking_idempotency_keys
			WHERE resident_id = $1 AND idempotency_key = $2
		)
	`, residentID, key)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (r *BookingRepository) ListConfirmedIntervals(ctx context.Context, slotID string, from, to time.Time) ([]schedule.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE slot_id = $1
			AND status = 'confirmed'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, slotID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []schedule.Interval
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return intervals, nil
}

// CreateConfirmed inserts the booking, its outbox event and the
// idempotency finalization in one transaction. With a non-empty idemKey
// the key row is locked first; a concurrent retry blocks on that lock
// and then replays the stored booking instead of inserting a duplicate.
func (r *BookingRepository) CreateConfirmed(ctx context.Context, b *model.Booking, idemKey string) (*model.Booking, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idemKey != "" {
		rec, err := r.lockIdempotencyKey(ctx, tx, b.ResidentID, idemKey)
		if err != nil {
			return nil, false, err
		}
		if rec.BookingID != "" {
			stored, err := r.getBookingTx(ctx, tx, rec.BookingID)
			if err != nil {
				return nil, false, err
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, false, err
			}
			return stored, true, nil
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings
			(id, slot_id, resident_id, booked_by_id, start_time, end_time, status,
			total_amount, hourly_rate_snapshot, payment_status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, b.ID, b.SlotID, b.ResidentID, b.BookedByID, b.StartTime, b.EndTime, b.Status,
		b.TotalAmount, b.HourlyRateSnapshot, b.PaymentStatus, b.Notes, b.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return nil, false, fmt.Errorf("%w: %v", booking.ErrOverlapRace, err)
		}
		return nil, false, err
	}

	evt, err := outbox.BookingConfirmed(b, b.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return nil, false, err
	}

	if idemKey != "" {
		if err := r.finalizeIdempotency(ctx, tx, b.ResidentID, idemKey, b.ID); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return b, false, nil
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// MarkCancelled flips a confirmed booking to cancelled and writes the
// cancellation event in the same transaction. The status guard in the
// WHERE clause makes concurrent transitions lose cleanly.
func (r *BookingRepository) MarkCancelled(ctx context.Context, id, reason string, at time.Time) (*model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = $3,
			cancellation_reason = $2
		WHERE id = $1 AND status = 'confirmed'
		RETURNING `+bookingColumns+`
	`, id, reason, at)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrNotConfirmed
		}
		return nil, err
	}

	evt, err := outbox.BookingCancelled(b, at)
	if err != nil {
		return nil, err
	}
	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BookingRepository) ListByResident(ctx context.Context, residentID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE resident_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, residentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) ListBySlot(ctx context.Context, slotID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE slot_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, slotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// CompleteFinishedTx marks confirmed bookings whose end time is behind
// now as completed. Used by the maintenance worker inside its own
// transaction.
func (r *BookingRepository) CompleteFinishedTx(ctx context.Context, tx pgx.Tx, now time.Time) (int, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'completed'
		WHERE status = 'confirmed' AND end_time < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func (r *BookingRepository) lockIdempotencyKey(ctx context.Context, tx pgx.Tx, residentID, key string) (idempotencyRecord, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, residentID, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return idempotencyRecord{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (resident_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (resident_id, idempotency_key) DO NOTHING
	`, residentID, key)
	if err != nil {
		return idempotencyRecord{}, err
	}

	return r.selectIdempotencyForUpdate(ctx, tx, residentID, key)
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, residentID, key string) (idempotencyRecord, error) {
	var rec idempotencyRecord
	err := tx.QueryRow(ctx, `
		SELECT resident_id, idempotency_key, COALESCE(booking_id::text, '')
		FROM booking_idempotency_keys
		WHERE resident_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, residentID, key).Scan(&rec.ResidentID, &rec.IdempotencyKey, &rec.BookingID)
	if err != nil {
		return idempotencyRecord{}, err
	}
	return rec, nil
}

func (r *BookingRepository) finalizeIdempotency(ctx context.Context, tx pgx.Tx, residentID, key, bookingID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3,
			updated_at = now()
		WHERE resident_id = $1 AND idempotency_key = $2
	`, residentID, key, bookingID)
	return err
}

func (r *BookingRepository) getBookingTx(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.ResidentID,
		&b.BookedByID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.TotalAmount,
		&b.HourlyRateSnapshot,
		&b.PaymentStatus,
		&b.Notes,
		&b.CancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}
