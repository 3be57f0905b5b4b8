package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
)

type errorBody struct {
	Error string  `json:"error"`
	Code  string  `json:"code"`
	Rule  string  `json:"rule,omitempty"`
	Limit float64 `json:"limit,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func rejectionStatus(code string) int {
	switch code {
	case booking.CodeBadShape, booking.CodeInvalidInput:
		return http.StatusBadRequest
	case booking.CodeOwnershipDenied, booking.CodeCancelDenied:
		return http.StatusForbidden
	case booking.CodeSchedulingConflict, booking.CodeCancelInvalidStatus:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeRejection(w http.ResponseWriter, rej *booking.Rejection) {
	writeJSON(w, rejectionStatus(rej.Code), errorBody{
		Error: rej.Message,
		Code:  rej.Code,
		Rule:  rej.Rule,
		Limit: rej.Limit,
	})
}

// writeEngineError maps the non-rejection error paths: missing
// aggregates to 404, a lost admission race to 409 with a retry hint,
// and store failures to 503 so the client keeps its idempotency key
// and tries again.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, booking.ErrWindowNotFound),
		errors.Is(err, booking.ErrBlackoutNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
		return
	}

	var nf *booking.NotFinalizedError
	if errors.As(err, &nf) {
		if nf.Race {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusConflict, errorBody{Error: "a concurrent booking won this interval; retry for the next one", Code: "not_finalized"})
			return
		}
		logger.Error(msg, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "booking could not be finalized; retry with the same idempotency key", Code: "not_finalized"})
		return
	}

	logger.Error(msg, "err", err)
	http.Error(w, msg, http.StatusInternalServerError)
}
