package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/awnhealth/scheduling-engine/internal/appointment"
	redisclient "github.com/awnhealth/scheduling-engine/internal/redis"
	"github.com/awnhealth/scheduling-engine/internal/therapist"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, errMsg, details string) {
	writeJSON(w, status, Response{Success: false, Error: errMsg, Details: details})
}

// writeServiceError translates the service error taxonomy into HTTP status
// codes and the response envelope. Store failures never leak internals: the
// detailed error stays in the logs.
func writeServiceError(w http.ResponseWriter, err error) {
	var conflict *appointment.SlotConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, Response{
			Success: false,
			Error:   "this slot is already booked",
			Details: "please choose another time",
			Data:    conflict.Conflict,
		})
		return
	}

	var missing *appointment.MissingFieldsError
	if errors.As(err, &missing) {
		writeError(w, http.StatusBadRequest, "missing required fields", missing.Error())
		return
	}

	switch {
	case errors.Is(err, appointment.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid email address", "")
	case errors.Is(err, appointment.ErrInvalidDateTime):
		writeError(w, http.StatusBadRequest, "invalid date or time", "")
	case errors.Is(err, appointment.ErrPastSlot):
		writeError(w, http.StatusBadRequest, "cannot reserve a past date/time", "")
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		writeError(w, http.StatusBadRequest, "reservation is already cancelled", "")
	case errors.Is(err, appointment.ErrNotPending):
		writeError(w, http.StatusBadRequest, "booking cannot be confirmed", "booking is not awaiting confirmation")
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "this slot is already booked", "please choose another time")
	case errors.Is(err, appointment.ErrSlotBusy), errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot is currently being booked", "please retry shortly")
	case errors.Is(err, appointment.ErrNotSlotOwner):
		writeError(w, http.StatusForbidden, "not authorized to act on this booking", "")
	case errors.Is(err, appointment.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "appointment not found", "")
	case errors.Is(err, appointment.ErrTherapistNotFound), errors.Is(err, therapist.ErrNotFound):
		writeError(w, http.StatusNotFound, "therapist not found", "")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusInternalServerError, "the scheduling store timed out", "please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}
