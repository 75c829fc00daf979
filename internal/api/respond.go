package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carebridge/booking-gateway/internal/backend"
	"github.com/carebridge/booking-gateway/internal/slot"
)

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw forwards an already-encoded backend body untouched.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeDomainError maps the gateway error taxonomy onto HTTP statuses:
// unauthenticated → 401, slot conflict → 409, lapsed hold → 410, backend
// rejections forwarded as-is, transport failures → 502. Nothing is ever
// swallowed silently.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backend.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, slot.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, slot.ErrHoldExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, slot.ErrNotBlocked):
		writeError(w, http.StatusConflict, err.Error())
	default:
		if be, ok := backend.AsBackendError(err); ok {
			writeError(w, be.StatusCode, be.Detail)
			return
		}
		if backend.IsTransport(err) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
