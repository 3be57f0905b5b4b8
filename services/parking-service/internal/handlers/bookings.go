package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
	"github.com/slotpark/slotpark/services/parking-service/internal/model"
)

type BookingStore interface {
	ListByResident(ctx context.Context, residentID string, limit int) ([]model.Booking, error)
	ListBySlot(ctx context.Context, slotID string, limit int) ([]model.Booking, error)
}

type BookingHandler struct {
	engine *booking.Engine
	store  BookingStore
	slots  SlotStore
	logger *slog.Logger
}

func NewBookingHandler(engine *booking.Engine, store BookingStore, slots SlotStore, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		engine: engine,
		store:  store,
		slots:  slots,
		logger: logger,
	}
}

type createBookingRequest struct {
	SlotID    string `json:"slot_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Notes     string `json:"notes"`
	BookFor   string `json:"book_for"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type bookingItem struct {
	BookingID          string   `json:"booking_id"`
	SlotID             string   `json:"slot_id"`
	ResidentID         string   `json:"resident_id"`
	BookedByID         string   `json:"booked_by_id"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	Status             string   `json:"status"`
	TotalAmount        *float64 `json:"total_amount,omitempty"`
	HourlyRateSnapshot *float64 `json:"hourly_rate_snapshot,omitempty"`
	PaymentStatus      string   `json:"payment_status,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	CancelledAt        string   `json:"cancelled_at,omitempty"`
	CancelReason       string   `json:"cancel_reason,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

func bookingToItem(b *model.Booking) bookingItem {
	item := bookingItem{
		BookingID:          b.ID,
		SlotID:             b.SlotID,
		ResidentID:         b.ResidentID,
		BookedByID:         b.BookedByID,
		StartTime:          b.StartTime.UTC().Format(time.RFC3339),
		EndTime:            b.EndTime.UTC().Format(time.RFC3339),
		Status:             b.Status,
		TotalAmount:        b.TotalAmount,
		HourlyRateSnapshot: b.HourlyRateSnapshot,
		PaymentStatus:      b.PaymentStatus,
		Notes:              b.Notes,
		CancelReason:       b.CancelReason,
		CreatedAt:          b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.BookFor = strings.TrimSpace(req.BookFor)
	if req.SlotID == "" {
		http.Error(w, "slot_id required", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}

	res, rej, err := h.engine.Admit(r.Context(), booking.AdmissionRequest{
		SlotID:         req.SlotID,
		Requester:      id,
		BookFor:        req.BookFor,
		Start:          start.UTC(),
		End:            end.UTC(),
		Notes:          strings.TrimSpace(req.Notes),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to create booking")
		return
	}
	if rej != nil {
		writeRejection(w, rej)
		return
	}

	// A replayed admission returns the stored booking with the same
	// status the original attempt got.
	writeJSON(w, http.StatusCreated, bookingToItem(res.Booking))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		items []model.Booking
		err   error
	)
	if slotID := strings.TrimSpace(r.URL.Query().Get("slot_id")); slotID != "" {
		if !h.canViewSlotTimeline(w, r, id, slotID) {
			return
		}
		items, err = h.store.ListBySlot(r.Context(), slotID, limit)
	} else {
		items, err = h.store.ListByResident(r.Context(), id.ResidentID, limit)
	}
	if err != nil {
		h.logger.Error("failed to list bookings", "err", err)
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	resp := make([]bookingItem, 0, len(items))
	for i := range items {
		resp = append(resp, bookingToItem(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// The per-slot timeline exposes other residents' bookings, so it is
// limited to the slot owner and admins.
func (h *BookingHandler) canViewSlotTimeline(w http.ResponseWriter, r *http.Request, id booking.Identity, slotID string) bool {
	slot, err := h.slots.GetSlot(r.Context(), slotID)
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to load slot")
		return false
	}
	if !id.Admin && (slot.OwnerResidentID == nil || *slot.OwnerResidentID != id.ResidentID) {
		http.Error(w, "slot timeline is restricted to the owner", http.StatusForbidden)
		return false
	}
	return true
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	b, rej, err := h.engine.Cancel(r.Context(), booking.CancelRequest{
		BookingID: req.BookingID,
		Requester: id,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to cancel booking")
		return
	}
	if rej != nil {
		writeRejection(w, rej)
		return
	}
	writeJSON(w, http.StatusOK, bookingToItem(b))
}
