package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/awnhealth/scheduling-engine/internal/appointment"
	"github.com/awnhealth/scheduling-engine/internal/config"
	"github.com/awnhealth/scheduling-engine/internal/therapist"
)

// In-memory store doubles so handler tests run against the real service
// wiring without Postgres or Redis.

type stubAppointmentStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*appointment.AppointmentRow
}

func newStubAppointmentStore() *stubAppointmentStore {
	return &stubAppointmentStore{rows: make(map[uuid.UUID]*appointment.AppointmentRow)}
}

func (s *stubAppointmentStore) GetForPatient(_ context.Context, id uuid.UUID, patientID string) (*appointment.AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.PatientID != patientID {
		return nil, appointment.ErrRecordNotFound
	}
	c := *r
	return &c, nil
}

func (s *stubAppointmentStore) ListByPatient(_ context.Context, patientID string) ([]appointment.AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appointment.AppointmentRow
	for _, r := range s.rows {
		if r.PatientID == patientID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *stubAppointmentStore) Insert(_ context.Context, in appointment.AppointmentRow) (*appointment.AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	in.CreatedAt = time.Now()
	s.rows[in.ID] = &in
	c := in
	return &c, nil
}

func (s *stubAppointmentStore) UpdateSchedule(_ context.Context, id uuid.UUID, patientID string, change appointment.ScheduleChange) (*appointment.AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.PatientID != patientID {
		return nil, appointment.ErrRecordNotFound
	}
	if change.Date != nil {
		r.Date = *change.Date
	}
	if change.Time != nil {
		r.Time = *change.Time
	}
	c := *r
	return &c, nil
}

func (s *stubAppointmentStore) Cancel(_ context.Context, id uuid.UUID, patientID string, reason *string) (*appointment.AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.PatientID != patientID {
		return nil, appointment.ErrRecordNotFound
	}
	cancelled := string(appointment.StatusCancelled)
	r.Status = &cancelled
	if reason != nil {
		r.CancelReason = reason
	}
	c := *r
	return &c, nil
}

func (s *stubAppointmentStore) AttachFeedback(_ context.Context, id uuid.UUID, patientID string, fb appointment.Feedback) (*appointment.AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.PatientID != patientID {
		return nil, appointment.ErrRecordNotFound
	}
	r.Rating = fb.Overall
	r.FeedbackText = fb.Text
	c := *r
	return &c, nil
}

func (s *stubAppointmentStore) CompletePast(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type stubBookingStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*appointment.BookingRow
}

func newStubBookingStore() *stubBookingStore {
	return &stubBookingStore{rows: make(map[uuid.UUID]*appointment.BookingRow)}
}

func (s *stubBookingStore) GetByID(_ context.Context, id uuid.UUID) (*appointment.BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, appointment.ErrRecordNotFound
	}
	c := *r
	return &c, nil
}

func (s *stubBookingStore) GetForEmail(_ context.Context, id uuid.UUID, email string) (*appointment.BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.UserEmail != email {
		return nil, appointment.ErrRecordNotFound
	}
	c := *r
	return &c, nil
}

func (s *stubBookingStore) ListByEmail(_ context.Context, email string, _ bool) ([]appointment.BookingRow, error) {
	return s.listBy(func(r *appointment.BookingRow) bool { return r.UserEmail == email })
}

func (s *stubBookingStore) ListByEmailStatus(_ context.Context, email string, status *appointment.Status) ([]appointment.BookingRow, error) {
	return s.listBy(func(r *appointment.BookingRow) bool {
		if r.UserEmail != email {
			return false
		}
		return status == nil || appointment.Status(r.Status) == *status
	})
}

func (s *stubBookingStore) ListByTherapist(_ context.Context, therapistID uuid.UUID, _ appointment.TherapistBookingsFilter) ([]appointment.BookingRow, int64, error) {
	rows, err := s.listBy(func(r *appointment.BookingRow) bool { return r.TherapistID == therapistID })
	return rows, int64(len(rows)), err
}

func (s *stubBookingStore) ListActiveForSlot(_ context.Context, slot appointment.Slot) ([]appointment.BookingRow, error) {
	return s.listBy(func(r *appointment.BookingRow) bool {
		return r.TherapistID == slot.TherapistID && r.BookingDate == slot.Date &&
			r.BookingTime == slot.Time && appointment.Status(r.Status).Active()
	})
}

func (s *stubBookingStore) ListActiveForDay(_ context.Context, therapistID uuid.UUID, date string) ([]appointment.BookingRow, error) {
	return s.listBy(func(r *appointment.BookingRow) bool {
		return r.TherapistID == therapistID && r.BookingDate == date && appointment.Status(r.Status).Active()
	})
}

func (s *stubBookingStore) listBy(match func(*appointment.BookingRow) bool) ([]appointment.BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appointment.BookingRow
	for _, r := range s.rows {
		if match(r) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *stubBookingStore) Insert(_ context.Context, in appointment.BookingRow) (*appointment.BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.TherapistID == in.TherapistID && r.BookingDate == in.BookingDate &&
			r.BookingTime == in.BookingTime && appointment.Status(r.Status).Active() {
			return nil, appointment.ErrSlotTaken
		}
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	in.CreatedAt = time.Now()
	s.rows[in.ID] = &in
	c := in
	return &c, nil
}

func (s *stubBookingStore) Confirm(_ context.Context, id, therapistID uuid.UUID) (*appointment.BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || appointment.Status(r.Status) != appointment.StatusPending {
		return nil, appointment.ErrNotPending
	}
	r.Status = string(appointment.StatusConfirmed)
	tid := therapistID
	r.ConfirmedBy = &tid
	c := *r
	return &c, nil
}

func (s *stubBookingStore) Cancel(_ context.Context, id uuid.UUID, reason, cancelledBy *string, rescheduledTo *uuid.UUID) (*appointment.BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, appointment.ErrRecordNotFound
	}
	r.Status = string(appointment.StatusCancelled)
	if reason != nil {
		r.CancelReason = reason
	}
	if cancelledBy != nil {
		r.CancelledBy = cancelledBy
	}
	if rescheduledTo != nil {
		r.RescheduledTo = rescheduledTo
	}
	c := *r
	return &c, nil
}

func (s *stubBookingStore) CompletePast(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type stubDirectory struct {
	therapists map[uuid.UUID]*therapist.Therapist
}

func newStubDirectory(ids ...uuid.UUID) *stubDirectory {
	d := &stubDirectory{therapists: make(map[uuid.UUID]*therapist.Therapist)}
	for _, id := range ids {
		d.therapists[id] = &therapist.Therapist{ID: id, Slug: "t-" + id.String()[:8], NameEN: "Therapist", Active: true}
	}
	return d
}

func (d *stubDirectory) GetByID(_ context.Context, id uuid.UUID) (*therapist.Therapist, error) {
	t, ok := d.therapists[id]
	if !ok {
		return nil, therapist.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (d *stubDirectory) GetBySlug(_ context.Context, slug string) (*therapist.Therapist, error) {
	for _, t := range d.therapists {
		if t.Slug == slug {
			c := *t
			return &c, nil
		}
	}
	return nil, therapist.ErrNotFound
}

func (d *stubDirectory) List(context.Context, bool) ([]therapist.Therapist, error) {
	var out []therapist.Therapist
	for _, t := range d.therapists {
		out = append(out, *t)
	}
	return out, nil
}

type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, _, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const testSecret = "test-secret"

type testEnv struct {
	handler     http.Handler
	appts       *stubAppointmentStore
	books       *stubBookingStore
	therapistID uuid.UUID
}

func newTestEnv() *testEnv {
	therapistID := uuid.New()
	appts := newStubAppointmentStore()
	books := newStubBookingStore()
	dir := newStubDirectory(therapistID)

	svc := appointment.NewService(appts, books, dir, passLocker{},
		config.Config{StoreTimeout: 5 * time.Second}, zerolog.Nop())

	handler := NewRouter(RouterConfig{
		Service:   svc,
		Directory: dir,
		JWTSecret: testSecret,
		Env:       "test",
		Version:   "test",
		Logger:    zerolog.Nop(),
	})

	return &testEnv{handler: handler, appts: appts, books: books, therapistID: therapistID}
}
