package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
)

type AdminHandler struct {
	engine *booking.Engine
	logger *slog.Logger
}

func NewAdminHandler(engine *booking.Engine, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, logger: logger}
}

// Sweep expires stale quick postings on demand. The maintenance worker
// does the same on a timer; this is the manual lever.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	count, err := h.engine.SweepExpiredQuickPostings(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("manual sweep failed", "err", err)
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expired": count})
}
