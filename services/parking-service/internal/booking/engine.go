package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/slotpark/slotpark/services/parking-service/internal/model"
	"github.com/slotpark/slotpark/services/parking-service/internal/pricing"
	"github.com/slotpark/slotpark/services/parking-service/internal/schedule"
)

// SlotStore, ScheduleStore and BookingStore are the persistence surface
// the engine needs. parking-service wires them to Postgres repositories;
// tests use in-memory fakes.
type SlotStore interface {
	GetSlot(ctx context.Context, id string) (*model.Slot, error)
	SweepExpiredQuick(ctx context.Context, now time.Time) (int, error)
}

type ScheduleStore interface {
	ListWindows(ctx context.Context, slotID string) ([]model.Window, error)
	ListBlackouts(ctx context.Context, slotID string) ([]model.Blackout, error)
}

type BookingStore interface {
	// FindByIdempotencyKey returns the booking a finalized key points at,
	// or nil when the key is unknown.
	FindByIdempotencyKey(ctx context.Context, residentID, key string) (*model.Booking, error)
	ListConfirmedIntervals(ctx context.Context, slotID string, from, to time.Time) ([]schedule.Interval, error)
	// CreateConfirmed persists the booking together with its outbox event
	// in one transaction. With a non-empty idemKey the key row is claimed
	// under lock; if an earlier attempt already finalized the key, the
	// stored booking is returned with replayed=true and nothing is written.
	CreateConfirmed(ctx context.Context, b *model.Booking, idemKey string) (*model.Booking, bool, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	// MarkCancelled flips a confirmed booking to cancelled and records the
	// outbox event. Returns ErrNotConfirmed when the booking moved to
	// another status first.
	MarkCancelled(ctx context.Context, id, reason string, at time.Time) (*model.Booking, error)
}

// Identity is the resolved caller of an engine operation. The gateway
// authenticates; the engine only needs who and whether they administer.
type Identity struct {
	ResidentID string
	Admin      bool
}

type AdmissionRequest struct {
	SlotID         string
	Requester      Identity
	BookFor        string // admin-only: book on behalf of this resident
	Start          time.Time
	End            time.Time
	Notes          string
	IdempotencyKey string
}

type AdmissionResult struct {
	Booking  *model.Booking
	Replayed bool
}

type CancelRequest struct {
	BookingID string
	Requester Identity
	Reason    string
}

type CostQuote struct {
	Amount     float64
	HourlyRate float64
	DailyRate  *float64
}

// Engine decides whether booking requests are admitted and owns the
// status transitions out of confirmed that residents can trigger.
type Engine struct {
	rules     Rules
	resolver  *schedule.Resolver
	slots     SlotStore
	schedules ScheduleStore
	bookings  BookingStore
	logger    *slog.Logger

	now func() time.Time
}

func NewEngine(rules Rules, resolver *schedule.Resolver, slots SlotStore, schedules ScheduleStore, bookings BookingStore, logger *slog.Logger) *Engine {
	return &Engine{
		rules:     rules,
		resolver:  resolver,
		slots:     slots,
		schedules: schedules,
		bookings:  bookings,
		logger:    logger,
		now:       time.Now,
	}
}

// CanRequest decides whether a resident may book a slot. Shared slots
// (no owner) are open to everyone; owned slots only to their owner.
// Time plays no part here.
func CanRequest(slot *model.Slot, residentID string) (bool, string) {
	if slot.OwnerResidentID == nil || *slot.OwnerResidentID == residentID {
		return true, ""
	}
	return false, "reserved for another resident"
}

// Admit runs the admission checks in a fixed order and persists the
// booking when every check passes. The first failing check wins and
// nothing is written. Admins skip the ownership check but remain bound
// by duration, horizon and overlap rules.
func (e *Engine) Admit(ctx context.Context, req AdmissionRequest) (*AdmissionResult, *Rejection, error) {
	beneficiary := req.Requester.ResidentID
	if req.BookFor != "" && req.BookFor != req.Requester.ResidentID {
		if !req.Requester.Admin {
			return nil, reject(CodeInvalidInput, "only admins can book on behalf of another resident"), nil
		}
		beneficiary = req.BookFor
	}
	if beneficiary == "" {
		return nil, reject(CodeInvalidInput, "requester is required"), nil
	}

	if req.IdempotencyKey != "" {
		prior, err := e.bookings.FindByIdempotencyKey(ctx, beneficiary, req.IdempotencyKey)
		if err != nil {
			return nil, nil, err
		}
		if prior != nil {
			return &AdmissionResult{Booking: prior, Replayed: true}, nil, nil
		}
	}

	now := e.now()

	if rej := checkShape(req.Start, req.End); rej != nil {
		return nil, rej, nil
	}
	if rej := e.checkDuration(req.Start, req.End); rej != nil {
		return nil, rej, nil
	}
	if rej := e.checkHorizon(req.Start, now); rej != nil {
		return nil, rej, nil
	}

	slot, err := e.slots.GetSlot(ctx, req.SlotID)
	if err != nil {
		return nil, nil, err
	}
	if slot.Status != model.SlotStatusAvailable {
		return nil, reject(CodeSlotNotAvailable, fmt.Sprintf("slot is not bookable (status %s)", slot.Status)), nil
	}

	if !req.Requester.Admin {
		if ok, reason := CanRequest(slot, beneficiary); !ok {
			return nil, reject(CodeOwnershipDenied, reason), nil
		}
	}

	sched, err := e.scheduleFor(ctx, slot)
	if err != nil {
		return nil, nil, err
	}
	if v := e.resolver.Evaluate(sched, req.Start, req.End, now); !v.Available {
		return nil, availabilityRejection(v), nil
	}

	busy, err := e.bookings.ListConfirmedIntervals(ctx, slot.ID, req.Start, req.End)
	if err != nil {
		return nil, nil, err
	}
	if conflict, found := schedule.FirstOverlap(req.Start, req.End, busy); found {
		return nil, reject(CodeSchedulingConflict, conflictMessage(conflict)), nil
	}

	b := &model.Booking{
		ID:            uuid.NewString(),
		SlotID:        slot.ID,
		ResidentID:    beneficiary,
		BookedByID:    req.Requester.ResidentID,
		StartTime:     req.Start,
		EndTime:       req.End,
		Status:        model.BookingStatusConfirmed,
		PaymentStatus: model.PaymentStatusWaived,
		Notes:         req.Notes,
		CreatedAt:     now,
	}
	if slot.HourlyRate != nil && !ownsSlot(slot, beneficiary) {
		amount := pricing.Cost(*slot.HourlyRate, slot.DailyRate, req.Start, req.End)
		rate := *slot.HourlyRate
		b.TotalAmount = &amount
		b.HourlyRateSnapshot = &rate
		b.PaymentStatus = model.PaymentStatusPending
	}

	created, replayed, err := e.bookings.CreateConfirmed(ctx, b, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, ErrOverlapRace) {
			e.logger.Warn("admission lost overlap race", "slot_id", slot.ID)
			return nil, nil, &NotFinalizedError{Race: true, Err: err}
		}
		return nil, nil, &NotFinalizedError{Err: err}
	}

	if !replayed {
		e.logger.Info("booking admitted",
			"booking_id", created.ID,
			"slot_id", created.SlotID,
			"resident_id", created.ResidentID,
		)
	}
	return &AdmissionResult{Booking: created, Replayed: replayed}, nil, nil
}

// Cancel moves a confirmed booking to cancelled. Residents may only
// cancel their own bookings and only until the grace period after the
// start has passed; admins may cancel any booking at any time.
// Cancelling an already-cancelled booking succeeds without change.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (*model.Booking, *Rejection, error) {
	b, err := e.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, nil, err
	}

	if b.Status == model.BookingStatusCancelled {
		return b, nil, nil
	}
	if b.Status != model.BookingStatusConfirmed {
		return nil, reject(CodeCancelInvalidStatus, fmt.Sprintf("booking is %s and cannot be cancelled", b.Status)), nil
	}
	if !req.Requester.Admin && req.Requester.ResidentID != b.ResidentID {
		return nil, reject(CodeCancelDenied, "only the booking's resident or an admin may cancel it"), nil
	}

	now := e.now()
	if !req.Requester.Admin {
		deadline := b.StartTime.Add(time.Duration(e.rules.CancelGraceHours * float64(time.Hour)))
		if now.After(deadline) {
			return nil, rejectBound(CodeCancelGraceExpired,
				fmt.Sprintf("cancellations are only allowed within %gh of the booking's start", e.rules.CancelGraceHours),
				"cancellation_grace_hours", e.rules.CancelGraceHours), nil
		}
	}

	cancelled, err := e.bookings.MarkCancelled(ctx, b.ID, req.Reason, now)
	if err != nil {
		if errors.Is(err, ErrNotConfirmed) {
			fresh, ferr := e.bookings.GetBooking(ctx, b.ID)
			if ferr != nil {
				return nil, nil, ferr
			}
			if fresh.Status == model.BookingStatusCancelled {
				return fresh, nil, nil
			}
			return nil, reject(CodeCancelInvalidStatus, fmt.Sprintf("booking is %s and cannot be cancelled", fresh.Status)), nil
		}
		return nil, nil, err
	}

	e.logger.Info("booking cancelled", "booking_id", cancelled.ID, "slot_id", cancelled.SlotID)
	return cancelled, nil, nil
}

// CheckAvailability reports whether a booking over [start,end) would
// find the slot open: lifecycle status, granted availability and
// existing confirmed bookings are all consulted. Ownership and duration
// rules are not; those depend on who asks.
func (e *Engine) CheckAvailability(ctx context.Context, slotID string, start, end time.Time) (bool, *Rejection, error) {
	if rej := checkShape(start, end); rej != nil {
		return false, rej, nil
	}
	slot, err := e.slots.GetSlot(ctx, slotID)
	if err != nil {
		return false, nil, err
	}
	if slot.Status != model.SlotStatusAvailable {
		return false, reject(CodeSlotNotAvailable, fmt.Sprintf("slot is not bookable (status %s)", slot.Status)), nil
	}
	sched, err := e.scheduleFor(ctx, slot)
	if err != nil {
		return false, nil, err
	}
	if v := e.resolver.Evaluate(sched, start, end, e.now()); !v.Available {
		return false, availabilityRejection(v), nil
	}
	busy, err := e.bookings.ListConfirmedIntervals(ctx, slotID, start, end)
	if err != nil {
		return false, nil, err
	}
	if conflict, found := schedule.FirstOverlap(start, end, busy); found {
		return false, reject(CodeSchedulingConflict, conflictMessage(conflict)), nil
	}
	return true, nil, nil
}

// Quote prices a prospective booking without admitting it. Slots without
// an hourly rate are not on the marketplace and cannot be quoted.
func (e *Engine) Quote(ctx context.Context, slotID string, start, end time.Time) (*CostQuote, *Rejection, error) {
	if rej := checkShape(start, end); rej != nil {
		return nil, rej, nil
	}
	slot, err := e.slots.GetSlot(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}
	if slot.HourlyRate == nil {
		return nil, reject(CodeNotListed, "slot has no marketplace rates"), nil
	}
	return &CostQuote{
		Amount:     pricing.Cost(*slot.HourlyRate, slot.DailyRate, start, end),
		HourlyRate: *slot.HourlyRate,
		DailyRate:  slot.DailyRate,
	}, nil, nil
}

// SweepExpiredQuickPostings clears quick postings whose expiry is behind
// now. Idempotent; safe on any cadence.
func (e *Engine) SweepExpiredQuickPostings(ctx context.Context, now time.Time) (int, error) {
	count, err := e.slots.SweepExpiredQuick(ctx, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		e.logger.Info("cleared expired quick postings", "count", count)
	}
	return count, nil
}

func (e *Engine) scheduleFor(ctx context.Context, slot *model.Slot) (schedule.SlotSchedule, error) {
	windows, err := e.schedules.ListWindows(ctx, slot.ID)
	if err != nil {
		return schedule.SlotSchedule{}, err
	}
	blackouts, err := e.schedules.ListBlackouts(ctx, slot.ID)
	if err != nil {
		return schedule.SlotSchedule{}, err
	}
	return schedule.SlotSchedule{
		Windows:     windows,
		Blackouts:   blackouts,
		QuickActive: slot.QuickAvailable,
		QuickUntil:  slot.QuickUntil,
	}, nil
}

func checkShape(start, end time.Time) *Rejection {
	if !end.After(start) {
		return reject(CodeBadShape, "end_time must be after start_time")
	}
	return nil
}

func (e *Engine) checkDuration(start, end time.Time) *Rejection {
	hours := end.Sub(start).Hours()
	if hours < e.rules.MinDurationHours {
		return rejectBound(CodeDurationTooShort,
			fmt.Sprintf("booking of %gh is shorter than the %gh minimum", hours, e.rules.MinDurationHours),
			"min_duration_hours", e.rules.MinDurationHours)
	}
	if hours > e.rules.MaxDurationHours {
		return rejectBound(CodeDurationTooLong,
			fmt.Sprintf("booking of %gh exceeds the %gh maximum", hours, e.rules.MaxDurationHours),
			"max_duration_hours", e.rules.MaxDurationHours)
	}
	return nil
}

func (e *Engine) checkHorizon(start, now time.Time) *Rejection {
	horizon := now.Add(time.Duration(e.rules.MaxAdvanceDays) * 24 * time.Hour)
	if start.After(horizon) {
		return rejectBound(CodeAdvanceHorizon,
			fmt.Sprintf("start time is more than %d days ahead", e.rules.MaxAdvanceDays),
			"max_advance_days", float64(e.rules.MaxAdvanceDays))
	}
	return nil
}

func conflictMessage(conflict schedule.Interval) string {
	return fmt.Sprintf("slot is already booked from %s to %s",
		conflict.Start.Format(time.RFC3339), conflict.End.Format(time.RFC3339))
}

func availabilityRejection(v schedule.Verdict) *Rejection {
	if v.Reason == schedule.ReasonBlackout && v.Blackout != nil {
		return &Rejection{
			Code: CodeAvailabilityDenied,
			Message: fmt.Sprintf("slot is blacked out from %s to %s",
				v.Blackout.Start.Format(time.RFC3339), v.Blackout.End.Format(time.RFC3339)),
			Rule: v.Reason,
		}
	}
	return &Rejection{
		Code:    CodeAvailabilityDenied,
		Message: "requested time is outside the slot's availability",
		Rule:    v.Reason,
	}
}

func ownsSlot(slot *model.Slot, residentID string) bool {
	return slot.OwnerResidentID != nil && *slot.OwnerResidentID == residentID
}
