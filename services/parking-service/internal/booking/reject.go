package booking

import (
	"errors"
	"fmt"
)

// Rejection codes. Every policy "no" carries one of these so callers can
// render a specific message or retry with adjusted parameters.
const (
	CodeBadShape            = "bad_shape"
	CodeDurationTooShort    = "duration_too_short"
	CodeDurationTooLong     = "duration_too_long"
	CodeAdvanceHorizon      = "advance_horizon_exceeded"
	CodeSlotNotAvailable    = "slot_not_available"
	CodeOwnershipDenied     = "ownership_denied"
	CodeAvailabilityDenied  = "availability_denied"
	CodeSchedulingConflict  = "scheduling_conflict"
	CodeNotListed           = "not_listed"
	CodeCancelDenied        = "cancel_denied"
	CodeCancelGraceExpired  = "cancel_grace_expired"
	CodeCancelInvalidStatus = "cancel_invalid_status"
	CodeInvalidInput        = "invalid_input"
)

// Rejection is a policy decision, not an error: the engine reserves
// errors for store failures. Rule and Limit name the configured bound
// when one applies.
type Rejection struct {
	Code    string
	Message string
	Rule    string
	Limit   float64
}

func reject(code, message string) *Rejection {
	return &Rejection{Code: code, Message: message}
}

func rejectBound(code, message, rule string, limit float64) *Rejection {
	return &Rejection{Code: code, Message: message, Rule: rule, Limit: limit}
}

// Sentinel errors mapped by the storage layer onto driver failures.
var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrWindowNotFound   = errors.New("availability window not found")
	ErrBlackoutNotFound = errors.New("blackout period not found")
	ErrOverlapRace      = errors.New("overlapping confirmed booking")
	ErrNotConfirmed     = errors.New("booking is not confirmed")
)

// NotFinalizedError reports that every admission check passed but the
// booking could not be durably recorded. Callers should retry. Race is
// true when a concurrent admission claimed the slot's timeline between
// the conflict check and the insert.
type NotFinalizedError struct {
	Race bool
	Err  error
}

func (e *NotFinalizedError) Error() string {
	if e.Race {
		return fmt.Sprintf("booking not finalized: lost overlap race: %v", e.Err)
	}
	return fmt.Sprintf("booking not finalized: %v", e.Err)
}

func (e *NotFinalizedError) Unwrap() error { return e.Err }
