package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/awnhealth/scheduling-engine/internal/appointment"
)

func createBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		var therapistID uuid.UUID
		if req.TherapistID != "" {
			var err error
			therapistID, err = uuid.Parse(req.TherapistID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid therapist id", "therapist_id must be a valid UUID")
				return
			}
		}

		view, err := svc.CreateBooking(r.Context(), appointment.CreateBookingInput{
			TherapistID:        therapistID,
			PatientNationalID:  req.PatientNationalID,
			PatientName:        req.PatientName,
			PatientEmail:       req.PatientEmail,
			PatientPhone:       req.PatientPhone,
			PatientDateOfBirth: req.PatientDateOfBirth,
			Date:               req.BookingDate,
			Time:               req.BookingTime,
			SessionType:        req.SessionType,
			SessionDuration:    req.SessionDuration,
			Notes:              req.Notes,
		})
		if err != nil {
			if errors.Is(err, appointment.ErrSlotTaken) {
				slotConflicts.Inc()
			}
			writeServiceError(w, err)
			return
		}

		bookingsCreated.Inc()
		writeData(w, http.StatusCreated, "booking created, awaiting therapist confirmation", view)
	}
}

func confirmBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid booking id", "id must be a valid UUID")
			return
		}

		var req ConfirmBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		therapistID, err := uuid.Parse(req.TherapistID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid therapist id", "therapist_id must be a valid UUID")
			return
		}

		view, err := svc.ConfirmBooking(r.Context(), id, therapistID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, "booking confirmed", view)
	}
}

func cancelBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid booking id", "id must be a valid UUID")
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		view, err := svc.CancelBookingByID(r.Context(), id, req.CancellationReason, req.CancelledBy)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, "booking cancelled", view)
	}
}

func rescheduleBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid booking id", "id must be a valid UUID")
			return
		}

		var req BookingRescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		result, err := svc.RescheduleBookingByID(r.Context(), id, req.NewBookingDate, req.NewBookingTime, req.RescheduleReason)
		if err != nil {
			if errors.Is(err, appointment.ErrSlotTaken) {
				slotConflicts.Inc()
			}
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, "booking rescheduled", result)
	}
}

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapistParam := r.URL.Query().Get("therapist_id")
		date := r.URL.Query().Get("date")
		if therapistParam == "" || date == "" {
			writeError(w, http.StatusBadRequest, "therapist_id and date are required", "")
			return
		}

		therapistID, err := uuid.Parse(therapistParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid therapist id", "therapist_id must be a valid UUID")
			return
		}

		if slotTime := r.URL.Query().Get("time"); slotTime != "" {
			avail, err := svc.SlotAvailability(r.Context(), therapistID, date, slotTime)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeData(w, http.StatusOK, "", avail)
			return
		}

		schedule, err := svc.DaySchedule(r.Context(), therapistID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, "", schedule)
	}
}

func patientBookingsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")

		var status *appointment.Status
		if s := r.URL.Query().Get("status"); s != "" {
			st := appointment.Status(s)
			status = &st
		}

		views, err := svc.PatientBookings(r.Context(), email, status)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		count := len(views)
		writeJSON(w, http.StatusOK, Response{Success: true, Data: views, Count: &count})
	}
}

func therapistBookingsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapistID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid therapist id", "id must be a valid UUID")
			return
		}

		q := r.URL.Query()

		page, _ := strconv.Atoi(q.Get("page"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit < 1 {
			limit = 10
		}

		filter := appointment.TherapistBookingsFilter{
			Limit:  limit,
			Offset: (page - 1) * limit,
		}
		if s := q.Get("status"); s != "" {
			st := appointment.Status(s)
			filter.Status = &st
		}
		if d := q.Get("date"); d != "" {
			filter.Date = &d
		}

		views, total, err := svc.TherapistBookings(r.Context(), therapistID, filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		totalPages := (total + int64(limit) - 1) / int64(limit)
		writeData(w, http.StatusOK, "", map[string]any{
			"bookings":    views,
			"total":       total,
			"page":        page,
			"total_pages": totalPages,
		})
	}
}
