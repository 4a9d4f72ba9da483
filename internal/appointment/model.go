package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/awnhealth/scheduling-engine/internal/therapist"
)

// Source tags which physical table owns a record. All store-specific
// dispatch happens in the service; nothing outside it branches on this.
type Source string

const (
	SourceAppointments Source = "appointments"
	SourceBookings     Source = "bookings"
)

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the status occupies a slot.
func (s Status) Active() bool {
	switch s {
	case StatusUpcoming, StatusPending, StatusConfirmed:
		return true
	}
	return false
}

type SessionKind string

const (
	KindOnline SessionKind = "online"
	KindHome   SessionKind = "home"
)

// Slot is the (therapist, date, time) tuple that may hold at most one
// active reservation. Date is YYYY-MM-DD, Time is HH:MM in local clinic time.
type Slot struct {
	TherapistID uuid.UUID
	Date        string
	Time        string
}

// View is the canonical in-memory appointment shape both stores normalize
// into. It is never persisted in this form.
type View struct {
	ID              uuid.UUID            `json:"id"`
	Source          Source               `json:"source"`
	PatientIdentity string               `json:"patient_identity"`
	TherapistID     uuid.UUID            `json:"therapist_id"`
	Date            string               `json:"date"`
	Time            string               `json:"time"`
	Kind            SessionKind          `json:"kind"`
	Status          Status               `json:"status"`
	Note            *string              `json:"note,omitempty"`
	MeetLink        *string              `json:"meet_link,omitempty"`
	PatientName     *string              `json:"patient_name,omitempty"`
	PatientPhone    *string              `json:"patient_phone,omitempty"`
	RescheduledFrom *uuid.UUID           `json:"rescheduled_from,omitempty"`
	RescheduledTo   *uuid.UUID           `json:"rescheduled_to,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	CancelReason    *string              `json:"cancellation_reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Therapist       *therapist.Therapist `json:"therapist,omitempty"`
}

// SlotTimestamp builds the composite ordering key date + "T" + time, with
// midnight standing in for a missing time.
func (v *View) SlotTimestamp() time.Time {
	t := v.Time
	if t == "" {
		t = "00:00"
	}
	ts, err := time.Parse("2006-01-02T15:04", v.Date+"T"+t)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func (v *View) Slot() Slot {
	return Slot{TherapistID: v.TherapistID, Date: v.Date, Time: v.Time}
}

// AppointmentRow is the raw shape of the authenticated appointments table.
// Column aliasing lives in the normalizer; no other component reads these
// fields directly.
type AppointmentRow struct {
	ID                  uuid.UUID
	PatientID           string
	TherapistID         uuid.UUID
	Date                string
	Time                string
	Kind                *string
	Status              *string
	PatientNotes        *string
	Notes               *string
	Note                *string
	MeetLink            *string
	Rating              *int
	FeedbackText        *string
	FeedbackRatings     []byte // jsonb
	FeedbackSubmittedAt *time.Time
	CancelledAt         *time.Time
	CancelReason        *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BookingRow is the raw shape of the guest bookings table.
type BookingRow struct {
	ID                 uuid.UUID
	TherapistID        uuid.UUID
	PatientNationalID  *string
	UserName           string
	UserEmail          string
	UserPhone          *string
	PatientDateOfBirth *string
	BookingDate        string
	BookingTime        string
	SessionType        *string
	SessionDuration    int
	Status             string
	Notes              *string
	Note               *string
	RescheduledFrom    *uuid.UUID
	RescheduledTo      *uuid.UUID
	ConfirmedAt        *time.Time
	ConfirmedBy        *uuid.UUID
	CancelledAt        *time.Time
	CancelReason       *string
	CancelledBy        *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
