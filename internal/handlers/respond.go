package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/booking"
	"github.com/shrimpsizemoose/labsync/internal/slots"
)

var statusByError = []struct {
	err    error
	status int
}{
	{app.ErrUnauthenticated, http.StatusUnauthorized},
	{app.ErrInvalidCredentials, http.StatusUnauthorized},
	{app.ErrForbidden, http.StatusForbidden},
	{booking.ErrNoLabAccess, http.StatusForbidden},
	{booking.ErrNotFound, http.StatusNotFound},
	{booking.ErrUnknownLab, http.StatusNotFound},
	{app.ErrUserNotFound, http.StatusNotFound},
	{booking.ErrSlotBlocked, http.StatusConflict},
	{booking.ErrNoCapacity, http.StatusConflict},
	{booking.ErrAlreadyBlocked, http.StatusConflict},
	{booking.ErrAlreadyBooked, http.StatusConflict},
	{app.ErrEmailTaken, http.StatusConflict},
	{app.ErrInvalidInput, http.StatusBadRequest},
	{app.ErrInvalidDomain, http.StatusBadRequest},
	{slots.ErrInvalidRange, http.StatusBadRequest},
	{booking.ErrPastSlot, http.StatusBadRequest},
	{booking.ErrLabClosed, http.StatusBadRequest},
	{booking.ErrGroupLimit, http.StatusBadRequest},
	{booking.ErrInvalidGroup, http.StatusBadRequest},
}

func statusFor(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}

// writeError hides internal errors from the client and logs them instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Debug.Printf("Invalid request body for %s: %v", r.URL.Path, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}
