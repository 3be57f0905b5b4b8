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

type SlotStore interface {
	GetSlot(ctx context.Context, id string) (*model.Slot, error)
	ListSlots(ctx context.Context, status string, listedOnly bool, limit int) ([]model.Slot, error)
	ListSlotsByOwner(ctx context.Context, ownerResidentID string, limit int) ([]model.Slot, error)
	CreateSlot(ctx context.Context, s *model.Slot) (string, error)
	UpdateSlot(ctx context.Context, s *model.Slot) error
	SetQuickPost(ctx context.Context, slotID string, until time.Time) error
	ClearQuickPost(ctx context.Context, slotID string) error
}

type SlotHandler struct {
	engine *booking.Engine
	store  SlotStore
	logger *slog.Logger
}

func NewSlotHandler(engine *booking.Engine, store SlotStore, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{
		engine: engine,
		store:  store,
		logger: logger,
	}
}

type slotItem struct {
	SlotID          string   `json:"slot_id"`
	Number          string   `json:"number"`
	Type            string   `json:"type"`
	Status          string   `json:"status"`
	OwnerResidentID string   `json:"owner_resident_id,omitempty"`
	ListedForRent   bool     `json:"listed_for_rent"`
	QuickAvailable  bool     `json:"quick_available"`
	QuickUntil      string   `json:"quick_until,omitempty"`
	HourlyRate      *float64 `json:"hourly_rate,omitempty"`
	DailyRate       *float64 `json:"daily_rate,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

func slotToItem(s *model.Slot) slotItem {
	item := slotItem{
		SlotID:         s.ID,
		Number:         s.Number,
		Type:           s.Type,
		Status:         s.Status,
		ListedForRent:  s.ListedForRent,
		QuickAvailable: s.QuickAvailable,
		HourlyRate:     s.HourlyRate,
		DailyRate:      s.DailyRate,
		Notes:          s.Notes,
		CreatedAt:      s.CreatedAt.UTC().Format(time.RFC3339),
	}
	if s.OwnerResidentID != nil {
		item.OwnerResidentID = *s.OwnerResidentID
	}
	if s.QuickUntil != nil {
		item.QuickUntil = s.QuickUntil.UTC().Format(time.RFC3339)
	}
	return item
}

// Owned slots are managed by their owner or an admin; shared slots
// (no owner) only by admins.
func requireSlotManager(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store SlotStore, id booking.Identity, slotID string) (*model.Slot, bool) {
	slot, err := store.GetSlot(r.Context(), slotID)
	if err != nil {
		writeEngineError(w, logger, err, "failed to load slot")
		return nil, false
	}
	if !id.Admin && (slot.OwnerResidentID == nil || *slot.OwnerResidentID != id.ResidentID) {
		http.Error(w, "slot management is restricted to the owner", http.StatusForbidden)
		return nil, false
	}
	return slot, true
}

func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		slots []model.Slot
		err   error
	)
	if strings.TrimSpace(r.URL.Query().Get("mine")) == "true" {
		slots, err = h.store.ListSlotsByOwner(r.Context(), id.ResidentID, limit)
	} else {
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		if status != "" && !model.ValidSlotStatus(status) {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		listedOnly := strings.TrimSpace(r.URL.Query().Get("listed")) == "true"
		slots, err = h.store.ListSlots(r.Context(), status, listedOnly, limit)
	}
	if err != nil {
		h.logger.Error("failed to list slots", "err", err)
		http.Error(w, "failed to list slots", http.StatusInternalServerError)
		return
	}

	resp := make([]slotItem, 0, len(slots))
	for i := range slots {
		resp = append(resp, slotToItem(&slots[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createSlotRequest struct {
	Number          string   `json:"number"`
	Type            string   `json:"type"`
	OwnerResidentID string   `json:"owner_resident_id"`
	ListedForRent   bool     `json:"listed_for_rent"`
	HourlyRate      *float64 `json:"hourly_rate"`
	DailyRate       *float64 `json:"daily_rate"`
	Notes           string   `json:"notes"`
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Number = strings.TrimSpace(req.Number)
	req.Type = strings.TrimSpace(req.Type)
	req.OwnerResidentID = strings.TrimSpace(req.OwnerResidentID)
	if req.Number == "" {
		http.Error(w, "number required", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = model.SlotTypeUncovered
	}
	if !model.ValidSlotType(req.Type) {
		http.Error(w, "invalid type", http.StatusBadRequest)
		return
	}
	if !validRates(req.HourlyRate, req.DailyRate) {
		http.Error(w, "invalid hourly_rate/daily_rate", http.StatusBadRequest)
		return
	}

	owner := req.OwnerResidentID
	if !id.Admin {
		if owner != "" && owner != id.ResidentID {
			http.Error(w, "only admins can assign slot owners", http.StatusForbidden)
			return
		}
		owner = id.ResidentID
	}

	slot := &model.Slot{
		Number:        req.Number,
		Type:          req.Type,
		Status:        model.SlotStatusAvailable,
		ListedForRent: req.ListedForRent,
		HourlyRate:    req.HourlyRate,
		DailyRate:     req.DailyRate,
		Notes:         strings.TrimSpace(req.Notes),
	}
	if owner != "" {
		slot.OwnerResidentID = &owner
	}

	slotID, err := h.store.CreateSlot(r.Context(), slot)
	if err != nil {
		h.logger.Error("failed to create slot", "err", err)
		http.Error(w, "failed to create slot", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"slot_id": slotID})
}

type updateSlotRequest struct {
	SlotID        string   `json:"slot_id"`
	Status        *string  `json:"status"`
	ListedForRent *bool    `json:"listed_for_rent"`
	HourlyRate    *float64 `json:"hourly_rate"`
	DailyRate     *float64 `json:"daily_rate"`
	Notes         *string  `json:"notes"`
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	if req.SlotID == "" {
		http.Error(w, "slot_id required", http.StatusBadRequest)
		return
	}

	slot, ok := requireSlotManager(w, r, h.logger, h.store, id, req.SlotID)
	if !ok {
		return
	}

	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !model.ValidSlotStatus(status) {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		slot.Status = status
	}
	if req.ListedForRent != nil {
		slot.ListedForRent = *req.ListedForRent
	}
	if req.HourlyRate != nil {
		slot.HourlyRate = req.HourlyRate
	}
	if req.DailyRate != nil {
		slot.DailyRate = req.DailyRate
	}
	if req.Notes != nil {
		slot.Notes = strings.TrimSpace(*req.Notes)
	}
	if !validRates(slot.HourlyRate, slot.DailyRate) {
		http.Error(w, "invalid hourly_rate/daily_rate", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateSlot(r.Context(), slot); err != nil {
		writeEngineError(w, h.logger, err, "failed to update slot")
		return
	}
	writeJSON(w, http.StatusOK, slotToItem(slot))
}

// A daily rate without an hourly rate cannot be quoted, so it is
// rejected up front.
func validRates(hourly, daily *float64) bool {
	if hourly != nil && *hourly < 0 {
		return false
	}
	if daily != nil && (*daily < 0 || hourly == nil) {
		return false
	}
	return true
}

type quickPostRequest struct {
	SlotID string `json:"slot_id"`
	Hours  int    `json:"hours"`
}

func (h *SlotHandler) QuickPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req quickPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	if req.SlotID == "" {
		http.Error(w, "slot_id required", http.StatusBadRequest)
		return
	}
	if req.Hours <= 0 || req.Hours > 168 {
		http.Error(w, "hours must be between 1 and 168", http.StatusBadRequest)
		return
	}

	if _, ok := requireSlotManager(w, r, h.logger, h.store, id, req.SlotID); !ok {
		return
	}

	until := time.Now().UTC().Add(time.Duration(req.Hours) * time.Hour)
	if err := h.store.SetQuickPost(r.Context(), req.SlotID, until); err != nil {
		writeEngineError(w, h.logger, err, "failed to quick post slot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slot_id":     req.SlotID,
		"quick_until": until.Format(time.RFC3339),
	})
}

func (h *SlotHandler) QuickPostClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		SlotID string `json:"slot_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	if req.SlotID == "" {
		http.Error(w, "slot_id required", http.StatusBadRequest)
		return
	}

	if _, ok := requireSlotManager(w, r, h.logger, h.store, id, req.SlotID); !ok {
		return
	}

	if err := h.store.ClearQuickPost(r.Context(), req.SlotID); err != nil {
		writeEngineError(w, h.logger, err, "failed to clear quick post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SlotHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	slotID, start, end, ok := slotRangeQuery(w, r)
	if !ok {
		return
	}

	available, rej, err := h.engine.CheckAvailability(r.Context(), slotID, start, end)
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to check availability")
		return
	}
	if rej != nil && rej.Code == booking.CodeBadShape {
		writeRejection(w, rej)
		return
	}

	resp := map[string]any{
		"slot_id":    slotID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
		"available":  available,
	}
	if rej != nil {
		resp["reason"] = rej.Code
		resp["detail"] = rej.Message
		if rej.Rule != "" {
			resp["rule"] = rej.Rule
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SlotHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	slotID, start, end, ok := slotRangeQuery(w, r)
	if !ok {
		return
	}

	quote, rej, err := h.engine.Quote(r.Context(), slotID, start, end)
	if err != nil {
		writeEngineError(w, h.logger, err, "failed to quote booking cost")
		return
	}
	if rej != nil {
		writeRejection(w, rej)
		return
	}

	resp := map[string]any{
		"slot_id":     slotID,
		"start_time":  start.Format(time.RFC3339),
		"end_time":    end.Format(time.RFC3339),
		"amount":      quote.Amount,
		"hourly_rate": quote.HourlyRate,
	}
	if quote.DailyRate != nil {
		resp["daily_rate"] = *quote.DailyRate
	}
	writeJSON(w, http.StatusOK, resp)
}

func slotRangeQuery(w http.ResponseWriter, r *http.Request) (string, time.Time, time.Time, bool) {
	slotID := strings.TrimSpace(r.URL.Query().Get("slot_id"))
	if slotID == "" {
		http.Error(w, "slot_id is required", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(r.URL.Query().Get("start")))
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(r.URL.Query().Get("end")))
	if err != nil {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	return slotID, start.UTC(), end.UTC(), true
}
