package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/awnhealth/scheduling-engine/internal/therapist"
)

// memBookingStore mirrors the bookings table in memory, including the
// active-slot unique index so concurrency tests exercise the same conflict
// signal the database produces.
type memBookingStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*BookingRow
	listErr error
}

func newMemBookingStore() *memBookingStore {
	return &memBookingStore{rows: make(map[uuid.UUID]*BookingRow)}
}

func (s *memBookingStore) seed(rows ...BookingRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rows {
		r := rows[i]
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.rows[r.ID] = &r
	}
}

func cloneBooking(r *BookingRow) *BookingRow {
	c := *r
	return &c
}

func (s *memBookingStore) GetByID(_ context.Context, id uuid.UUID) (*BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneBooking(r), nil
}

func (s *memBookingStore) GetForEmail(_ context.Context, id uuid.UUID, email string) (*BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.UserEmail != strings.ToLower(email) {
		return nil, ErrRecordNotFound
	}
	return cloneBooking(r), nil
}

func (s *memBookingStore) ListByEmail(_ context.Context, email string, exact bool) ([]BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []BookingRow
	for _, r := range s.rows {
		if exact && r.UserEmail != email {
			continue
		}
		if !exact && !strings.EqualFold(r.UserEmail, email) {
			continue
		}
		out = append(out, *cloneBooking(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookingDate != out[j].BookingDate {
			return out[i].BookingDate < out[j].BookingDate
		}
		return out[i].BookingTime < out[j].BookingTime
	})
	return out, nil
}

func (s *memBookingStore) ListByEmailStatus(_ context.Context, email string, status *Status) ([]BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []BookingRow
	for _, r := range s.rows {
		if r.UserEmail != strings.ToLower(email) {
			continue
		}
		if status != nil && Status(r.Status) != *status {
			continue
		}
		out = append(out, *cloneBooking(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookingDate != out[j].BookingDate {
			return out[i].BookingDate > out[j].BookingDate
		}
		return out[i].BookingTime > out[j].BookingTime
	})
	return out, nil
}

func (s *memBookingStore) ListByTherapist(_ context.Context, therapistID uuid.UUID, f TherapistBookingsFilter) ([]BookingRow, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []BookingRow
	for _, r := range s.rows {
		if r.TherapistID != therapistID {
			continue
		}
		if f.Status != nil && Status(r.Status) != *f.Status {
			continue
		}
		if f.Date != nil && r.BookingDate != *f.Date {
			continue
		}
		matched = append(matched, *cloneBooking(r))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].BookingDate != matched[j].BookingDate {
			return matched[i].BookingDate < matched[j].BookingDate
		}
		return matched[i].BookingTime < matched[j].BookingTime
	})

	total := int64(len(matched))
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := f.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *memBookingStore) ListActiveForSlot(_ context.Context, slot Slot) ([]BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeForSlotLocked(slot), nil
}

func (s *memBookingStore) activeForSlotLocked(slot Slot) []BookingRow {
	var out []BookingRow
	for _, r := range s.rows {
		if r.TherapistID == slot.TherapistID && r.BookingDate == slot.Date &&
			r.BookingTime == slot.Time && Status(r.Status).Active() {
			out = append(out, *cloneBooking(r))
		}
	}
	return out
}

func (s *memBookingStore) ListActiveForDay(_ context.Context, therapistID uuid.UUID, date string) ([]BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []BookingRow
	for _, r := range s.rows {
		if r.TherapistID == therapistID && r.BookingDate == date && Status(r.Status).Active() {
			out = append(out, *cloneBooking(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingTime < out[j].BookingTime })
	return out, nil
}

func (s *memBookingStore) Insert(_ context.Context, in BookingRow) (*BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := Slot{TherapistID: in.TherapistID, Date: in.BookingDate, Time: in.BookingTime}
	if len(s.activeForSlotLocked(slot)) > 0 {
		return nil, ErrSlotTaken
	}

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	in.UserEmail = strings.ToLower(in.UserEmail)
	in.CreatedAt = time.Now()
	in.UpdatedAt = in.CreatedAt
	s.rows[in.ID] = &in
	return cloneBooking(&in), nil
}

func (s *memBookingStore) Confirm(_ context.Context, id, therapistID uuid.UUID) (*BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || Status(r.Status) != StatusPending {
		return nil, ErrNotPending
	}
	now := time.Now()
	r.Status = string(StatusConfirmed)
	r.ConfirmedAt = &now
	tid := therapistID
	r.ConfirmedBy = &tid
	return cloneBooking(r), nil
}

func (s *memBookingStore) Cancel(_ context.Context, id uuid.UUID, reason, cancelledBy *string, rescheduledTo *uuid.UUID) (*BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	r.Status = string(StatusCancelled)
	if r.CancelledAt == nil {
		now := time.Now()
		r.CancelledAt = &now
	}
	if reason != nil {
		r.CancelReason = reason
	}
	if cancelledBy != nil {
		r.CancelledBy = cancelledBy
	}
	if rescheduledTo != nil {
		r.RescheduledTo = rescheduledTo
	}
	return cloneBooking(r), nil
}

func (s *memBookingStore) CompletePast(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.rows {
		if !Status(r.Status).Active() {
			continue
		}
		v := View{Date: r.BookingDate, Time: r.BookingTime}
		if v.SlotTimestamp().Before(now) {
			r.Status = string(StatusCompleted)
			n++
		}
	}
	return n, nil
}

// memAppointmentStore mirrors the authenticated appointments table.
type memAppointmentStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*AppointmentRow
	listErr error
}

func newMemAppointmentStore() *memAppointmentStore {
	return &memAppointmentStore{rows: make(map[uuid.UUID]*AppointmentRow)}
}

func (s *memAppointmentStore) seed(rows ...AppointmentRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rows {
		r := rows[i]
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.rows[r.ID] = &r
	}
}

func cloneAppointment(r *AppointmentRow) *AppointmentRow {
	c := *r
	return &c
}

func (s *memAppointmentStore) GetForPatient(_ context.Context, id uuid.UUID, patientID string) (*AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.PatientID != patientID {
		return nil, ErrRecordNotFound
	}
	return cloneAppointment(r), nil
}

func (s *memAppointmentStore) ListByPatient(_ context.Context, patientID string) ([]AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []AppointmentRow
	for _, r := range s.rows {
		if r.PatientID == patientID {
			out = append(out, *cloneAppointment(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (s *memAppointmentStore) Insert(_ context.Context, in AppointmentRow) (*AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	in.CreatedAt = time.Now()
	in.UpdatedAt = in.CreatedAt
	s.rows[in.ID] = &in
	return cloneAppointment(&in), nil
}

func (s *memAppointmentStore) UpdateSchedule(_ context.Context, id uuid.UUID, patientID string, change ScheduleChange) (*AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.PatientID != patientID {
		return nil, ErrRecordNotFound
	}
	if change.Date != nil {
		r.Date = *change.Date
	}
	if change.Time != nil {
		r.Time = *change.Time
	}
	if change.Kind != nil {
		r.Kind = change.Kind
	}
	if change.Note != nil {
		r.PatientNotes = change.Note
	}
	return cloneAppointment(r), nil
}

func (s *memAppointmentStore) Cancel(_ context.Context, id uuid.UUID, patientID string, reason *string) (*AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.PatientID != patientID {
		return nil, ErrRecordNotFound
	}
	cancelled := string(StatusCancelled)
	r.Status = &cancelled
	now := time.Now()
	r.CancelledAt = &now
	if reason != nil {
		r.CancelReason = reason
	}
	return cloneAppointment(r), nil
}

func (s *memAppointmentStore) AttachFeedback(_ context.Context, id uuid.UUID, patientID string, fb Feedback) (*AppointmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.PatientID != patientID {
		return nil, ErrRecordNotFound
	}
	r.Rating = fb.Overall
	r.FeedbackText = fb.Text
	r.FeedbackRatings = fb.Ratings
	now := time.Now()
	r.FeedbackSubmittedAt = &now
	return cloneAppointment(r), nil
}

func (s *memAppointmentStore) CompletePast(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.rows {
		status := StatusUpcoming
		if r.Status != nil && *r.Status != "" {
			status = Status(*r.Status)
		}
		if status != StatusUpcoming {
			continue
		}
		v := View{Date: r.Date, Time: r.Time}
		if v.SlotTimestamp().Before(now) {
			completed := string(StatusCompleted)
			r.Status = &completed
			n++
		}
	}
	return n, nil
}

// memDirectory is a map-backed therapist directory.
type memDirectory struct {
	mu         sync.Mutex
	therapists map[uuid.UUID]*therapist.Therapist
}

func newMemDirectory(ids ...uuid.UUID) *memDirectory {
	d := &memDirectory{therapists: make(map[uuid.UUID]*therapist.Therapist)}
	for i, id := range ids {
		d.therapists[id] = &therapist.Therapist{
			ID:     id,
			Slug:   "therapist-" + string(rune('a'+i)),
			NameEN: "Therapist",
			NameAR: "أخصائي",
			Active: true,
		}
	}
	return d
}

func (d *memDirectory) GetByID(_ context.Context, id uuid.UUID) (*therapist.Therapist, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.therapists[id]
	if !ok {
		return nil, therapist.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (d *memDirectory) GetBySlug(_ context.Context, slug string) (*therapist.Therapist, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.therapists {
		if t.Slug == slug {
			c := *t
			return &c, nil
		}
	}
	return nil, therapist.ErrNotFound
}

func (d *memDirectory) List(_ context.Context, _ bool) ([]therapist.Therapist, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []therapist.Therapist
	for _, t := range d.therapists {
		out = append(out, *t)
	}
	return out, nil
}

// nopLocker runs the critical section without any locking, leaving conflict
// detection to the store's unique check.
type nopLocker struct{}

func (nopLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, _, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
