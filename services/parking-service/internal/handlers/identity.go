package handlers

import (
	"net/http"
	"strings"

	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
)

// The gateway verifies the bearer token and forwards the resolved
// identity in headers; this service trusts them.
func identityFrom(r *http.Request) booking.Identity {
	return booking.Identity{
		ResidentID: strings.TrimSpace(r.Header.Get("X-Resident-Id")),
		Admin:      strings.TrimSpace(r.Header.Get("X-Resident-Role")) == "admin",
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (booking.Identity, bool) {
	id := identityFrom(r)
	if id.ResidentID == "" {
		http.Error(w, "missing X-Resident-Id", http.StatusUnauthorized)
		return booking.Identity{}, false
	}
	return id, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (booking.Identity, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return booking.Identity{}, false
	}
	if !id.Admin {
		http.Error(w, "admin role required", http.StatusForbidden)
		return booking.Identity{}, false
	}
	return id, true
}
