package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound    = errors.New("appointment not found in either store")
	ErrTherapistNotFound = errors.New("therapist not found")
	ErrSlotTaken         = errors.New("slot already has an active reservation")
	ErrSlotBusy          = errors.New("slot is currently being booked, please retry")
	ErrAlreadyCancelled  = errors.New("reservation is already cancelled")
	ErrNotPending        = errors.New("booking is not awaiting confirmation")
	ErrNotSlotOwner      = errors.New("therapist does not own this booking")
	ErrMissingFields     = errors.New("required booking fields are missing")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidDateTime   = errors.New("invalid date or time")
	ErrPastSlot          = errors.New("cannot reserve a past date/time")
)

// SlotConflictError carries the reservation currently occupying the slot so
// the client can offer alternatives. errors.Is(err, ErrSlotTaken) holds.
type SlotConflictError struct {
	Conflict *View
}

func (e *SlotConflictError) Error() string { return ErrSlotTaken.Error() }

func (e *SlotConflictError) Is(target error) bool { return target == ErrSlotTaken }

// ScheduleChange is a partial update to a reservation's schedulable fields.
// Nil fields are left untouched.
type ScheduleChange struct {
	Date *string
	Time *string
	Kind *string
	Note *string
}

// Feedback is the patient rating payload attached to a completed appointment.
type Feedback struct {
	Overall *int
	Text    *string
	Ratings []byte // per-axis ratings, stored as jsonb
}

// TherapistBookingsFilter narrows the therapist-side booking listing.
type TherapistBookingsFilter struct {
	Status *Status
	Date   *string
	Limit  int
	Offset int
}

// AppointmentStore owns the authenticated appointments table. All lookups
// that act on behalf of a patient are scoped by (id, patientID).
type AppointmentStore interface {
	GetForPatient(ctx context.Context, id uuid.UUID, patientID string) (*AppointmentRow, error)
	ListByPatient(ctx context.Context, patientID string) ([]AppointmentRow, error)
	Insert(ctx context.Context, row AppointmentRow) (*AppointmentRow, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, patientID string, change ScheduleChange) (*AppointmentRow, error)
	Cancel(ctx context.Context, id uuid.UUID, patientID string, reason *string) (*AppointmentRow, error)
	AttachFeedback(ctx context.Context, id uuid.UUID, patientID string, fb Feedback) (*AppointmentRow, error)
	CompletePast(ctx context.Context, now time.Time) (int64, error)
}

// BookingStore owns the guest bookings table. Patient-scoped lookups match by
// (id, lower-cased email); the exact flag on ListByEmail switches between
// exact and case-insensitive matching for the merge fallback.
type BookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*BookingRow, error)
	GetForEmail(ctx context.Context, id uuid.UUID, email string) (*BookingRow, error)
	ListByEmail(ctx context.Context, email string, exact bool) ([]BookingRow, error)
	ListByEmailStatus(ctx context.Context, email string, status *Status) ([]BookingRow, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, f TherapistBookingsFilter) ([]BookingRow, int64, error)
	ListActiveForSlot(ctx context.Context, slot Slot) ([]BookingRow, error)
	ListActiveForDay(ctx context.Context, therapistID uuid.UUID, date string) ([]BookingRow, error)
	Insert(ctx context.Context, row BookingRow) (*BookingRow, error)
	Confirm(ctx context.Context, id, therapistID uuid.UUID) (*BookingRow, error)
	Cancel(ctx context.Context, id uuid.UUID, reason, cancelledBy *string, rescheduledTo *uuid.UUID) (*BookingRow, error)
	CompletePast(ctx context.Context, now time.Time) (int64, error)
}

// MissingFieldsError lists which required fields were absent, keeping the
// boundary message useful without a second validation pass.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("required booking fields are missing: %v", e.Fields)
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingFields }
