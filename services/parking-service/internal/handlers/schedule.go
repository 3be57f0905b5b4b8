package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotpark/slotpark/services/parking-service/internal/model"
	"github.com/slotpark/slotpark/services/parking-service/internal/schedule"
)

type ScheduleStore interface {
	ListWindows(ctx context.Context, slotID string) ([]model.Window, error)
	CreateWindow(ctx context.Context, w *model.Window) (string, error)
	DeleteWindow(ctx context.Context, slotID, windowID string) error
	ListBlackouts(ctx context.Context, slotID string) ([]model.Blackout, error)
	CreateBlackout(ctx context.Context, b *model.Blackout) (string, error)
	DeleteBlackout(ctx context.Context, slotID, blackoutID string) error
}

// ScheduleHandler manages the availability grants of a slot. Reads are
// open to any resident; writes go through the slot-manager check.
type ScheduleHandler struct {
	store  ScheduleStore
	slots  SlotStore
	logger *slog.Logger
}

func NewScheduleHandler(store ScheduleStore, slots SlotStore, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		store:  store,
		slots:  slots,
		logger: logger,
	}
}

type createWindowRequest struct {
	SlotID     string `json:"slot_id"`
	Weekdays   []int  `json:"weekdays"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	StartClock string `json:"start_clock"`
	EndClock   string `json:"end_clock"`
}

type windowItem struct {
	WindowID   string `json:"window_id"`
	SlotID     string `json:"slot_id"`
	Weekdays   []int  `json:"weekdays,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
	StartClock string `json:"start_clock"`
	EndClock   string `json:"end_clock"`
	CreatedAt  string `json:"created_at"`
}

func windowToItem(w *model.Window) windowItem {
	item := windowItem{
		WindowID:   w.ID,
		SlotID:     w.SlotID,
		Weekdays:   w.Weekdays,
		StartClock: w.StartClock,
		EndClock:   w.EndClock,
		CreatedAt:  w.CreatedAt.UTC().Format(time.RFC3339),
	}
	if w.StartDate != nil {
		item.StartDate = w.StartDate.Format("2006-01-02")
	}
	if w.EndDate != nil {
		item.EndDate = w.EndDate.Format("2006-01-02")
	}
	return item
}

func (h *ScheduleHandler) CreateWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)
	req.StartClock = strings.TrimSpace(req.StartClock)
	req.EndClock = strings.TrimSpace(req.EndClock)
	if req.SlotID == "" {
		http.Error(w, "slot_id required", http.StatusBadRequest)
		return
	}

	startMin, err := schedule.ParseClock(req.StartClock)
	if err != nil {
		http.Error(w, "invalid start_clock: "+err.Error(), http.StatusBadRequest)
		return
	}
	endMin, err := schedule.ParseClock(req.EndClock)
	if err != nil {
		http.Error(w, "invalid end_clock: "+err.Error(), http.StatusBadRequest)
		return
	}
	if startMin >= endMin {
		http.Error(w, "end_clock must be after start_clock", http.StatusBadRequest)
		return
	}

	hasWeekdays := len(req.Weekdays) > 0
	hasDates := req.StartDate != "" || req.EndDate != ""
	if hasWeekdays == hasDates {
		http.Error(w, "exactly one of weekdays or start_date/end_date is required", http.StatusBadRequest)
		return
	}

	win := &model.Window{
		SlotID:     req.SlotID,
		StartClock: req.StartClock,
		EndClock:   req.EndClock,
	}
	if hasWeekdays {
		for _, d := range req.Weekdays {
			if d < 0 || d > 6 {
				http.Error(w, "weekdays must be between 0 (Sunday) and 6 (Saturday)", http.StatusBadRequest)
				return
			}
		}
		win.Weekdays = req.Weekdays
	} else {
		startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
		if err != nil {
			http.Error(w, "invalid start_date (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, time.UTC)
		if err != nil {
			http.Error(w, "invalid end_date (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		if endDate.Before(startDate) {
			http.Error(w, "end_date must not be before start_date", http.StatusBadRequest)
			return
		}
		win.StartDate = &startDate
		win.EndDate = &endDate
	}

	if _, ok := requireSlotManager(w, r, h.logger, h.slots, id, req.SlotID); !ok {
		return
	}

	windowID, err := h.store.CreateWindow(r.Context(), win)
	if err != nil {
		h.logger.Error("failed to create window", "err", err)
		http.Error(w, "failed to create window", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"window_id": windowID})
}

func (h *ScheduleHandler) ListWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	slotID := strings.TrimSpace(r.URL.Query().Get("slot_id"))
	if slotID == "" {
		http.Error(w, "slot_id is required", http.StatusBadRequest)
		return
	}

	windows, err := h.store.ListWindows(r.Context(), slotID)
	if err != nil {
		h.logger.Error("failed to list windows", "err", err)
		http.Error(w, "failed to list windows", http.StatusInternalServerError)
		return
	}
	resp := make([]windowItem, 0, len(windows))
	for i := range windows {
		resp = append(resp, windowToItem(&windows[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ScheduleHandler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		SlotID   string `json:"slot_id"`
		WindowID string `json:"window_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.WindowID = strings.TrimSpace(req.WindowID)
	if req.SlotID == "" || req.WindowID == "" {
		http.Error(w, "slot_id and window_id required", http.StatusBadRequest)
		return
	}

	if _, ok := requireSlotManager(w, r, h.logger, h.slots, id, req.SlotID); !ok {
		return
	}

	if err := h.store.DeleteWindow(r.Context(), req.SlotID, req.WindowID); err != nil {
		writeEngineError(w, h.logger, err, "failed to delete window")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createBlackoutRequest struct {
	SlotID    string `json:"slot_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

type blackoutItem struct {
	BlackoutID string `json:"blackout_id"`
	SlotID     string `json:"slot_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func blackoutToItem(b *model.Blackout) blackoutItem {
	return blackoutItem{
		BlackoutID: b.ID,
		SlotID:     b.SlotID,
		StartTime:  b.StartTime.UTC().Format(time.RFC3339),
		EndTime:    b.EndTime.UTC().Format(time.RFC3339),
		Reason:     b.Reason,
		CreatedAt:  b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ScheduleHandler) CreateBlackout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createBlackoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
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
	if !end.After(start) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	if _, ok := requireSlotManager(w, r, h.logger, h.slots, id, req.SlotID); !ok {
		return
	}

	blackoutID, err := h.store.CreateBlackout(r.Context(), &model.Blackout{
		SlotID:    req.SlotID,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		h.logger.Error("failed to create blackout", "err", err)
		http.Error(w, "failed to create blackout", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"blackout_id": blackoutID})
}

func (h *ScheduleHandler) ListBlackouts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	slotID := strings.TrimSpace(r.URL.Query().Get("slot_id"))
	if slotID == "" {
		http.Error(w, "slot_id is required", http.StatusBadRequest)
		return
	}

	blackouts, err := h.store.ListBlackouts(r.Context(), slotID)
	if err != nil {
		h.logger.Error("failed to list blackouts", "err", err)
		http.Error(w, "failed to list blackouts", http.StatusInternalServerError)
		return
	}
	resp := make([]blackoutItem, 0, len(blackouts))
	for i := range blackouts {
		resp = append(resp, blackoutToItem(&blackouts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ScheduleHandler) DeleteBlackout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		SlotID     string `json:"slot_id"`
		BlackoutID string `json:"blackout_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.BlackoutID = strings.TrimSpace(req.BlackoutID)
	if req.SlotID == "" || req.BlackoutID == "" {
		http.Error(w, "slot_id and blackout_id required", http.StatusBadRequest)
		return
	}

	if _, ok := requireSlotManager(w, r, h.logger, h.slots, id, req.SlotID); !ok {
		return
	}

	if err := h.store.DeleteBlackout(r.Context(), req.SlotID, req.BlackoutID); err != nil {
		writeEngineError(w, h.logger, err, "failed to delete blackout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
