package api

// Response is the envelope every endpoint returns. Non-2xx responses always
// carry Success=false and a human-readable Error.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// CreateAppointmentRequest is the authenticated dashboard booking payload.
type CreateAppointmentRequest struct {
	TherapistID string  `json:"therapistId"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Kind        string  `json:"kind"`
	Note        *string `json:"note"`
}

// CreateBookingRequest is the guest booking payload.
type CreateBookingRequest struct {
	TherapistID        string  `json:"therapist_id"`
	PatientNationalID  *string `json:"patient_national_id"`
	PatientName        string  `json:"patient_name"`
	PatientEmail       string  `json:"patient_email"`
	PatientPhone       string  `json:"patient_phone"`
	PatientDateOfBirth *string `json:"patient_date_of_birth"`
	BookingDate        string  `json:"booking_date"`
	BookingTime        string  `json:"booking_time"`
	SessionType        string  `json:"session_type"`
	SessionDuration    int     `json:"session_duration"`
	Notes              *string `json:"notes"`
}

// RescheduleRequest carries partial schedule changes; absent fields are
// left untouched.
type RescheduleRequest struct {
	Date *string `json:"date"`
	Time *string `json:"time"`
	Kind *string `json:"kind"`
	Note *string `json:"note"`
}

type CancelRequest struct {
	CancellationReason *string `json:"cancellation_reason"`
	CancelledBy        *string `json:"cancelled_by"`
}

type ConfirmBookingRequest struct {
	TherapistID string `json:"therapist_id"`
}

type BookingRescheduleRequest struct {
	NewBookingDate   string `json:"new_booking_date"`
	NewBookingTime   string `json:"new_booking_time"`
	RescheduleReason string `json:"reschedule_reason"`
}

type FeedbackRequest struct {
	Ratings      map[string]int `json:"ratings"`
	FeedbackText *string        `json:"feedbackText"`
	Overall      *int           `json:"overall"`
}
