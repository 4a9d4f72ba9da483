package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/awnhealth/scheduling-engine/internal/appointment"
)

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := AuthUserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authentication", "")
			return
		}

		views, err := svc.ListForPatient(r.Context(), user.ID, user.Email)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		count := len(views)
		writeJSON(w, http.StatusOK, Response{Success: true, Data: views, Count: &count})
	}
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := AuthUserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authentication", "")
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		therapistID, err := uuid.Parse(req.TherapistID)
		if req.TherapistID != "" && err != nil {
			writeError(w, http.StatusBadRequest, "invalid therapist id", "therapistId must be a valid UUID")
			return
		}

		view, err := svc.CreateAppointment(r.Context(), appointment.CreateAppointmentInput{
			PatientID:   user.ID,
			TherapistID: therapistID,
			Date:        req.Date,
			Time:        req.Time,
			Kind:        req.Kind,
			Note:        req.Note,
		})
		if err != nil {
			if errors.Is(err, appointment.ErrSlotTaken) {
				slotConflicts.Inc()
			}
			writeServiceError(w, err)
			return
		}

		bookingsCreated.Inc()
		writeData(w, http.StatusCreated, "appointment created", view)
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := AuthUserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authentication", "")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid appointment id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		view, err := svc.Reschedule(r.Context(), id, user.ID, user.Email, appointment.ScheduleChange{
			Date: req.Date,
			Time: req.Time,
			Kind: req.Kind,
			Note: req.Note,
		})
		if err != nil {
			if errors.Is(err, appointment.ErrSlotTaken) {
				slotConflicts.Inc()
			}
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, "appointment rescheduled", view)
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := AuthUserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authentication", "")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid appointment id", "id must be a valid UUID")
			return
		}

		// Cancel body is optional.
		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		view, err := svc.Cancel(r.Context(), id, user.ID, user.Email, req.CancellationReason)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, "appointment cancelled", view)
	}
}

func feedbackHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := AuthUserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authentication", "")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid appointment id", "id must be a valid UUID")
			return
		}

		var req FeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		var ratings []byte
		if len(req.Ratings) > 0 {
			ratings, err = json.Marshal(req.Ratings)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid ratings payload", "")
				return
			}
		}

		view, err := svc.SubmitFeedback(r.Context(), id, user.ID, appointment.FeedbackInput{
			Overall: req.Overall,
			Text:    req.FeedbackText,
			Ratings: ratings,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, "feedback submitted", view)
	}
}
