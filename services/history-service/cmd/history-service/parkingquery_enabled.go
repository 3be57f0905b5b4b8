//go:build protogen

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/slotpark/slotpark/libs/config"
	"github.com/slotpark/slotpark/services/history-service/internal/parkingquery"
)

// setupParkingDebugRoutes wires the parking query client so operators
// inspecting a slot's timeline can also ask the live admission engine
// about it without leaving this service.
func setupParkingDebugRoutes(ctx context.Context, mux *http.ServeMux, logger *slog.Logger) {
	addr := config.String("PARKING_GRPC_ADDR", "parking-service:9091")
	client, err := parkingquery.NewClient(addr)
	if err != nil {
		logger.Error("parking query client init failed", "err", err)
		return
	}

	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	mux.HandleFunc("/debug/parking/availability", func(w http.ResponseWriter, r *http.Request) {
		slotID, start, end, ok := slotRangeParams(w, r)
		if !ok {
			return
		}

		reqCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp, err := client.CheckAvailability(reqCtx, slotID, start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/debug/parking/quote", func(w http.ResponseWriter, r *http.Request) {
		slotID, start, end, ok := slotRangeParams(w, r)
		if !ok {
			return
		}

		reqCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp, err := client.QuoteCost(reqCtx, slotID, start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func slotRangeParams(w http.ResponseWriter, r *http.Request) (string, time.Time, time.Time, bool) {
	slotID := r.URL.Query().Get("slot_id")
	if slotID == "" {
		http.Error(w, "slot_id is required", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "start must be RFC3339", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "end must be RFC3339", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	return slotID, start, end, true
}
