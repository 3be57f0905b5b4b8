package storage

import (
	"context"

	"github.com/slotpark/slotpark/libs/db"
	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
	"github.com/slotpark/slotpark/services/parking-service/internal/model"
)

type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) ListWindows(ctx context.Context, slotID string) ([]model.Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_id, weekdays, start_date, end_date, start_clock, end_clock, created_at
		FROM availability_windows
		WHERE slot_id = $1
		ORDER BY created_at ASC
	`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []model.Window
	for rows.Next() {
		var w model.Window
		var weekdays []int32
		if err := rows.Scan(&w.ID, &w.SlotID, &weekdays, &w.StartDate, &w.EndDate, &w.StartClock, &w.EndClock, &w.CreatedAt); err != nil {
			return nil, err
		}
		for _, d := range weekdays {
			w.Weekdays = append(w.Weekdays, int(d))
		}
		windows = append(windows, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return windows, nil
}

func (r *ScheduleRepository) CreateWindow(ctx context.Context, w *model.Window) (string, error) {
	weekdays := make([]int32, 0, len(w.Weekdays))
	for _, d := range w.Weekdays {
		weekdays = append(weekdays, int32(d))
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO availability_windows (slot_id, weekdays, start_date, end_date, start_clock, end_clock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, w.SlotID, weekdays, w.StartDate, w.EndDate, w.StartClock, w.EndClock).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ScheduleRepository) DeleteWindow(ctx context.Context, slotID, windowID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_windows
		WHERE id = $1 AND slot_id = $2
	`, windowID, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrWindowNotFound
	}
	return nil
}

func (r *ScheduleRepository) ListBlackouts(ctx context.Context, slotID string) ([]model.Blackout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_id, start_time, end_time, COALESCE(reason, ''), created_at
		FROM blackout_periods
		WHERE slot_id = $1
		ORDER BY start_time ASC
	`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blackouts []model.Blackout
	for rows.Next() {
		var b model.Blackout
		if err := rows.Scan(&b.ID, &b.SlotID, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		blackouts = append(blackouts, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blackouts, nil
}

func (r *ScheduleRepository) CreateBlackout(ctx context.Context, b *model.Blackout) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO blackout_periods (slot_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, b.SlotID, b.StartTime, b.EndTime, b.Reason).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ScheduleRepository) DeleteBlackout(ctx context.Context, slotID, blackoutID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blackout_periods
		WHERE id = $1 AND slot_id = $2
	`, blackoutID, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrBlackoutNotFound
	}
	return nil
}
