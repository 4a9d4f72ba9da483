package appointment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/awnhealth/scheduling-engine/internal/config"
	redisclient "github.com/awnhealth/scheduling-engine/internal/redis"
	"github.com/awnhealth/scheduling-engine/internal/therapist"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service orchestrates the appointment lifecycle across both stores. It is
// the only component that decides which physical table owns a record; every
// mutation is dispatched from here.
type Service struct {
	appointments AppointmentStore
	bookings     BookingStore
	checker      *Checker
	merger       *Merger
	directory    therapist.Directory
	locker       redisclient.Locker
	cfg          config.Config
	norm         Normalizer
	log          zerolog.Logger
}

func NewService(
	appointments AppointmentStore,
	bookings BookingStore,
	directory therapist.Directory,
	locker redisclient.Locker,
	cfg config.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		bookings:     bookings,
		checker:      NewChecker(bookings),
		merger:       NewMerger(appointments, bookings, directory, log),
		directory:    directory,
		locker:       locker,
		cfg:          cfg,
		log:          log,
	}
}

// storeCtx applies the per-operation store deadline. A deadline hit surfaces
// as context.DeadlineExceeded, which callers must treat as retryable, never
// as a conflict or missing record.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

type CreateBookingInput struct {
	TherapistID        uuid.UUID
	PatientNationalID  *string
	PatientName        string
	PatientEmail       string
	PatientPhone       string
	PatientDateOfBirth *string
	Date               string
	Time               string
	SessionType        string
	SessionDuration    int
	Notes              *string
}

func (in *CreateBookingInput) validate() error {
	var missing []string
	if in.TherapistID == uuid.Nil {
		missing = append(missing, "therapist_id")
	}
	if in.PatientName == "" {
		missing = append(missing, "patient_name")
	}
	if in.PatientEmail == "" {
		missing = append(missing, "patient_email")
	}
	if in.PatientPhone == "" {
		missing = append(missing, "patient_phone")
	}
	if in.Date == "" {
		missing = append(missing, "booking_date")
	}
	if in.Time == "" {
		missing = append(missing, "booking_time")
	}
	if in.SessionType == "" {
		missing = append(missing, "session_type")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}

	if !emailPattern.MatchString(in.PatientEmail) {
		return ErrInvalidEmail
	}
	return validateFutureSlot(in.Date, in.Time)
}

// CreateBooking is the guest entry point. The availability pre-check and the
// insert run inside the per-slot lock; the bookings unique index backs them
// up as the authoritative conflict signal.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*View, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.directory.GetByID(ctx, in.TherapistID); err != nil {
		if errors.Is(err, therapist.ErrNotFound) {
			return nil, ErrTherapistNotFound
		}
		return nil, fmt.Errorf("load therapist: %w", err)
	}

	duration := in.SessionDuration
	if duration <= 0 {
		duration = 60
	}
	sessionType := in.SessionType

	var created *BookingRow
	err := s.locker.WithSlotLock(ctx, in.TherapistID, in.Date, in.Time, func(lockCtx context.Context) error {
		avail, err := s.checker.Check(lockCtx, Slot{TherapistID: in.TherapistID, Date: in.Date, Time: in.Time})
		if err != nil {
			return err
		}
		if !avail.Available {
			return &SlotConflictError{Conflict: avail.Conflict}
		}

		created, err = s.bookings.Insert(lockCtx, BookingRow{
			TherapistID:        in.TherapistID,
			PatientNationalID:  in.PatientNationalID,
			UserName:           in.PatientName,
			UserEmail:          lowerEmail(in.PatientEmail),
			UserPhone:          &in.PatientPhone,
			PatientDateOfBirth: in.PatientDateOfBirth,
			BookingDate:        in.Date,
			BookingTime:        in.Time,
			SessionType:        &sessionType,
			SessionDuration:    duration,
			Status:             string(StatusPending),
			Notes:              in.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	s.log.Info().Str("booking_id", created.ID.String()).
		Str("therapist_id", in.TherapistID.String()).
		Str("slot", in.Date+" "+in.Time).
		Msg("booking created, awaiting confirmation")

	v := s.norm.FromBooking(*created)
	s.decorateOne(ctx, &v)
	return &v, nil
}

type CreateAppointmentInput struct {
	PatientID   string
	TherapistID uuid.UUID
	Date        string
	Time        string
	Kind        string
	Note        *string
}

func (in *CreateAppointmentInput) validate() error {
	var missing []string
	if in.TherapistID == uuid.Nil {
		missing = append(missing, "therapist_id")
	}
	if in.Date == "" {
		missing = append(missing, "date")
	}
	if in.Time == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return validateFutureSlot(in.Date, in.Time)
}

// CreateAppointment is the authenticated entry point. It runs the same
// availability gate as the guest path before inserting an upcoming row.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*View, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.directory.GetByID(ctx, in.TherapistID); err != nil {
		if errors.Is(err, therapist.ErrNotFound) {
			return nil, ErrTherapistNotFound
		}
		return nil, fmt.Errorf("load therapist: %w", err)
	}

	kind := in.Kind
	if kind == "" {
		kind = string(KindHome)
	}

	var created *AppointmentRow
	err := s.locker.WithSlotLock(ctx, in.TherapistID, in.Date, in.Time, func(lockCtx context.Context) error {
		avail, err := s.checker.Check(lockCtx, Slot{TherapistID: in.TherapistID, Date: in.Date, Time: in.Time})
		if err != nil {
			return err
		}
		if !avail.Available {
			return &SlotConflictError{Conflict: avail.Conflict}
		}

		created, err = s.appointments.Insert(lockCtx, AppointmentRow{
			PatientID:    in.PatientID,
			TherapistID:  in.TherapistID,
			Date:         in.Date,
			Time:         in.Time,
			Kind:         &kind,
			Status:       ptr(string(StatusUpcoming)),
			PatientNotes: in.Note,
		})
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	v := s.norm.FromAppointment(*created)
	s.decorateOne(ctx, &v)
	return &v, nil
}

// ConfirmBooking moves a pending booking to confirmed. Only the owning
// therapist may confirm.
func (s *Service) ConfirmBooking(ctx context.Context, id, therapistID uuid.UUID) (*View, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	existing, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.TherapistID != therapistID {
		return nil, ErrNotSlotOwner
	}
	if Status(existing.Status) != StatusPending {
		return nil, ErrNotPending
	}

	updated, err := s.bookings.Confirm(ctx, id, therapistID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("booking_id", id.String()).Msg("booking confirmed")

	v := s.norm.FromBooking(*updated)
	s.decorateOne(ctx, &v)
	return &v, nil
}

// Reschedule resolves the owning store for a patient's record and applies the
// store-appropriate mutation: appointments rows change in place, bookings
// rows are replaced by a linked pending row while the original is cancelled.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, patientID, email string, change ScheduleChange) (*View, error) {
	if err := validateScheduleChange(change); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	// Appointments own the record if a scoped lookup matches.
	if _, err := s.appointments.GetForPatient(ctx, id, patientID); err == nil {
		updated, err := s.appointments.UpdateSchedule(ctx, id, patientID, change)
		if err != nil {
			return nil, fmt.Errorf("reschedule appointment: %w", err)
		}
		v := s.norm.FromAppointment(*updated)
		s.decorateOne(ctx, &v)
		return &v, nil
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if email == "" {
		return nil, ErrRecordNotFound
	}

	old, err := s.bookings.GetForEmail(ctx, id, lowerEmail(email))
	if err != nil {
		return nil, err
	}

	replacement, err := s.rescheduleBooking(ctx, old, change, nil, nil)
	if err != nil {
		return nil, err
	}

	v := s.norm.FromBooking(*replacement)
	s.decorateOne(ctx, &v)
	return &v, nil
}

// RescheduleResult pairs the cancelled original with its replacement for the
// therapist-side reschedule response.
type RescheduleResult struct {
	Original    View `json:"original_booking"`
	Replacement View `json:"new_booking"`
}

// RescheduleBookingByID is the therapist-side reschedule: matched by id only,
// with an explicit reason recorded on both rows.
func (s *Service) RescheduleBookingByID(ctx context.Context, id uuid.UUID, newDate, newTime, reason string) (*RescheduleResult, error) {
	if newDate == "" || newTime == "" {
		return nil, &MissingFieldsError{Fields: []string{"new_booking_date", "new_booking_time"}}
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	old, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("rescheduled - reason: %s", reason)
	cancelReason := fmt.Sprintf("rescheduled - %s", reason)
	replacement, err := s.rescheduleBooking(ctx, old, ScheduleChange{Date: &newDate, Time: &newTime, Note: &note}, &cancelReason, nil)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.bookings.GetByID(ctx, old.ID)
	if err != nil {
		return nil, fmt.Errorf("reload original booking: %w", err)
	}

	return &RescheduleResult{
		Original:    s.norm.FromBooking(*cancelled),
		Replacement: s.norm.FromBooking(*replacement),
	}, nil
}

// rescheduleBooking replaces old with a linked pending row on the new slot.
// The whole sequence runs under the new slot's lock; when the slot is
// unchanged the original is cancelled first so its active row does not trip
// the unique index, and the forward link is stamped afterwards.
func (s *Service) rescheduleBooking(ctx context.Context, old *BookingRow, change ScheduleChange, cancelReason, cancelledBy *string) (*BookingRow, error) {
	if Status(old.Status) == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	newDate := old.BookingDate
	if change.Date != nil {
		newDate = *change.Date
	}
	newTime := old.BookingTime
	if change.Time != nil {
		newTime = *change.Time
	}
	sessionType := old.SessionType
	if change.Kind != nil {
		sessionType = change.Kind
	}
	notes := firstNonEmpty(old.Notes, old.Note)
	if change.Note != nil {
		notes = change.Note
	}
	if cancelReason == nil {
		cancelReason = ptr("rescheduled")
	}

	sameSlot := newDate == old.BookingDate && newTime == old.BookingTime

	var created *BookingRow
	err := s.locker.WithSlotLock(ctx, old.TherapistID, newDate, newTime, func(lockCtx context.Context) error {
		avail, err := s.checker.Check(lockCtx, Slot{TherapistID: old.TherapistID, Date: newDate, Time: newTime})
		if err != nil {
			return err
		}
		if !avail.Available && avail.Conflict.ID != old.ID {
			return &SlotConflictError{Conflict: avail.Conflict}
		}

		if sameSlot {
			if _, err := s.bookings.Cancel(lockCtx, old.ID, cancelReason, cancelledBy, nil); err != nil {
				return fmt.Errorf("cancel original booking: %w", err)
			}
		}

		oldID := old.ID
		created, err = s.bookings.Insert(lockCtx, BookingRow{
			TherapistID:        old.TherapistID,
			PatientNationalID:  old.PatientNationalID,
			UserName:           old.UserName,
			UserEmail:          old.UserEmail,
			UserPhone:          old.UserPhone,
			PatientDateOfBirth: old.PatientDateOfBirth,
			BookingDate:        newDate,
			BookingTime:        newTime,
			SessionType:        sessionType,
			SessionDuration:    old.SessionDuration,
			Status:             string(StatusPending),
			Notes:              notes,
			RescheduledFrom:    &oldID,
		})
		if err != nil {
			return fmt.Errorf("insert replacement booking: %w", err)
		}

		if _, err := s.bookings.Cancel(lockCtx, old.ID, cancelReason, cancelledBy, &created.ID); err != nil {
			return fmt.Errorf("cancel original booking: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	s.log.Info().Str("from", old.ID.String()).Str("to", created.ID.String()).
		Str("slot", newDate+" "+newTime).Msg("booking rescheduled")

	return created, nil
}

// Cancel resolves the owning store (appointments first, bookings by email as
// the fallback) and marks the record cancelled. A second cancel of the same
// record is rejected for both stores.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, patientID, email string, reason *string) (*View, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if existing, err := s.appointments.GetForPatient(ctx, id, patientID); err == nil {
		if Status(deref(existing.Status)) == StatusCancelled {
			return nil, ErrAlreadyCancelled
		}
		updated, err := s.appointments.Cancel(ctx, id, patientID, reason)
		if err != nil {
			return nil, fmt.Errorf("cancel appointment: %w", err)
		}
		v := s.norm.FromAppointment(*updated)
		s.decorateOne(ctx, &v)
		return &v, nil
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if email == "" {
		return nil, ErrRecordNotFound
	}

	existing, err := s.bookings.GetForEmail(ctx, id, lowerEmail(email))
	if err != nil {
		return nil, err
	}
	if Status(existing.Status) == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	cancelledBy := "patient"
	updated, err := s.bookings.Cancel(ctx, id, reason, &cancelledBy, nil)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	v := s.norm.FromBooking(*updated)
	s.decorateOne(ctx, &v)
	return &v, nil
}

// CancelBookingByID is the therapist/guest-side cancel, matched by id only.
func (s *Service) CancelBookingByID(ctx context.Context, id uuid.UUID, reason, cancelledBy *string) (*View, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	existing, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if Status(existing.Status) == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	updated, err := s.bookings.Cancel(ctx, id, reason, cancelledBy, nil)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	v := s.norm.FromBooking(*updated)
	s.decorateOne(ctx, &v)
	return &v, nil
}

type FeedbackInput struct {
	Overall *int
	Text    *string
	Ratings []byte
}

// SubmitFeedback attaches a rating to an appointments-sourced record. The
// guest bookings table has no feedback columns, so a miss here is a plain
// not-found rather than a cross-store fallback.
func (s *Service) SubmitFeedback(ctx context.Context, id uuid.UUID, patientID string, in FeedbackInput) (*View, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	updated, err := s.appointments.AttachFeedback(ctx, id, patientID, Feedback{
		Overall: in.Overall,
		Text:    in.Text,
		Ratings: in.Ratings,
	})
	if err != nil {
		return nil, err
	}

	v := s.norm.FromAppointment(*updated)
	s.decorateOne(ctx, &v)
	return &v, nil
}

// ListForPatient returns the merged chronological view across both stores.
func (s *Service) ListForPatient(ctx context.Context, patientID, email string) ([]View, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.merger.ListForPatient(ctx, patientID, email)
}

// SlotAvailability checks one (therapist, date, time) slot.
func (s *Service) SlotAvailability(ctx context.Context, therapistID uuid.UUID, date, slotTime string) (*Availability, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDateTime
	}
	if _, err := time.Parse("15:04", slotTime); err != nil {
		return nil, ErrInvalidDateTime
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	avail, err := s.checker.Check(ctx, Slot{TherapistID: therapistID, Date: date, Time: slotTime})
	if err != nil {
		return nil, err
	}
	return &avail, nil
}

// DaySchedule returns the free/booked breakdown for one therapist day.
func (s *Service) DaySchedule(ctx context.Context, therapistID uuid.UUID, date string) (*DaySchedule, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDateTime
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.checker.Day(ctx, therapistID, date)
}

// PatientBookings lists a patient's guest bookings, optionally filtered by
// status, newest first.
func (s *Service) PatientBookings(ctx context.Context, email string, status *Status) ([]View, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rows, err := s.bookings.ListByEmailStatus(ctx, email, status)
	if err != nil {
		return nil, fmt.Errorf("list patient bookings: %w", err)
	}

	views := make([]View, 0, len(rows))
	for _, r := range rows {
		v := s.norm.FromBooking(r)
		s.decorateOne(ctx, &v)
		views = append(views, v)
	}
	return views, nil
}

// TherapistBookings lists a therapist's bookings with status/date filters and
// offset pagination, returning the unpaged total.
func (s *Service) TherapistBookings(ctx context.Context, therapistID uuid.UUID, f TherapistBookingsFilter) ([]View, int64, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rows, total, err := s.bookings.ListByTherapist(ctx, therapistID, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list therapist bookings: %w", err)
	}

	views := make([]View, 0, len(rows))
	for _, r := range rows {
		views = append(views, s.norm.FromBooking(r))
	}
	return views, total, nil
}

// CompletePast marks past-dated active rows completed in both stores. Run
// periodically by the completion worker.
func (s *Service) CompletePast(ctx context.Context) (int64, error) {
	now := time.Now()

	appts, err := s.appointments.CompletePast(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("complete past appointments: %w", err)
	}

	books, err := s.bookings.CompletePast(ctx, now)
	if err != nil {
		return appts, fmt.Errorf("complete past bookings: %w", err)
	}

	if appts+books > 0 {
		s.log.Info().Int64("appointments", appts).Int64("bookings", books).
			Msg("completion sweep marked past reservations")
	}
	return appts + books, nil
}

func (s *Service) decorateOne(ctx context.Context, v *View) {
	if s.directory == nil {
		return
	}
	t, err := s.directory.GetByID(ctx, v.TherapistID)
	if err != nil {
		s.log.Warn().Err(err).Str("therapist_id", v.TherapistID.String()).
			Msg("therapist lookup failed while decorating view")
		return
	}
	v.Therapist = t
}

func validateScheduleChange(change ScheduleChange) error {
	if change.Date != nil {
		if _, err := time.Parse("2006-01-02", *change.Date); err != nil {
			return ErrInvalidDateTime
		}
	}
	if change.Time != nil {
		if _, err := time.Parse("15:04", *change.Time); err != nil {
			return ErrInvalidDateTime
		}
	}
	return nil
}

func validateFutureSlot(date, slotTime string) error {
	ts, err := time.ParseInLocation("2006-01-02T15:04", date+"T"+slotTime, time.Local)
	if err != nil {
		return ErrInvalidDateTime
	}
	if ts.Before(time.Now()) {
		return ErrPastSlot
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
