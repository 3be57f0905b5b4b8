package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SlotTimelinePrefix is the mount point of the per-slot timeline; the
// slot id is the remaining path segment.
const SlotTimelinePrefix = "/api/v1/history/slots/"

// Reader is the handler's read side of the audit log.
type Reader interface {
	ListBookings(ctx context.Context, residentID, slotID string, limit int) ([]Entry, error)
	ListBySlot(ctx context.Context, slotID string, limit int) ([]Entry, error)
}

// Handler serves the admin-only audit log API. The gateway verifies the
// bearer token and forwards the resolved identity in headers; this
// service trusts them but still refuses non-admin callers.
type Handler struct {
	store  Reader
	logger *slog.Logger
}

func NewHandler(store Reader, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type entryItem struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	BookingID  string          `json:"booking_id,omitempty"`
	SlotID     string          `json:"slot_id"`
	ResidentID string          `json:"resident_id,omitempty"`
	OccurredAt string          `json:"occurred_at"`
	RecordedAt string          `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload"`
}

func entryToItem(e *Entry) entryItem {
	return entryItem{
		EventID:    e.EventID,
		EventType:  e.EventType,
		BookingID:  e.BookingID,
		SlotID:     e.SlotID,
		ResidentID: e.ResidentID,
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339),
		RecordedAt: e.RecordedAt.UTC().Format(time.RFC3339),
		Payload:    json.RawMessage(e.Payload),
	}
}

func (h *Handler) Bookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	residentID := strings.TrimSpace(r.URL.Query().Get("resident_id"))
	slotID := strings.TrimSpace(r.URL.Query().Get("slot_id"))
	entries, err := h.store.ListBookings(r.Context(), residentID, slotID, limitParam(r))
	if err != nil {
		h.logger.Error("failed to list audit entries", "err", err)
		http.Error(w, "failed to list audit entries", http.StatusInternalServerError)
		return
	}
	h.respondEntries(w, entries)
}

func (h *Handler) SlotTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	slotID := strings.TrimPrefix(r.URL.Path, SlotTimelinePrefix)
	if slotID == "" || strings.Contains(slotID, "/") {
		http.NotFound(w, r)
		return
	}

	entries, err := h.store.ListBySlot(r.Context(), slotID, limitParam(r))
	if err != nil {
		h.logger.Error("failed to list audit entries", "err", err, "slot_id", slotID)
		http.Error(w, "failed to list audit entries", http.StatusInternalServerError)
		return
	}
	h.respondEntries(w, entries)
}

func (h *Handler) respondEntries(w http.ResponseWriter, entries []Entry) {
	resp := make([]entryItem, 0, len(entries))
	for i := range entries {
		resp = append(resp, entryToItem(&entries[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func limitParam(r *http.Request) int {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return limit
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get("X-Resident-Id")) == "" {
		http.Error(w, "missing X-Resident-Id", http.StatusUnauthorized)
		return false
	}
	if strings.TrimSpace(r.Header.Get("X-Resident-Role")) != "admin" {
		http.Error(w, "admin role required", http.StatusForbidden)
		return false
	}
	return true
}
