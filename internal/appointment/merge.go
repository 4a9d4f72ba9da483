package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/awnhealth/scheduling-engine/internal/therapist"
)

// Merger reconciles the two physical stores into one chronological list per
// patient. A failing source degrades to an empty contribution instead of
// failing the whole merge.
type Merger struct {
	appointments AppointmentStore
	bookings     BookingStore
	directory    therapist.Directory
	norm         Normalizer
	log          zerolog.Logger
}

func NewMerger(appointments AppointmentStore, bookings BookingStore, directory therapist.Directory, log zerolog.Logger) *Merger {
	return &Merger{
		appointments: appointments,
		bookings:     bookings,
		directory:    directory,
		log:          log,
	}
}

// ListForPatient fans out to both stores concurrently, normalizes every row,
// and returns the union ordered by (date, time) with id as the tie-break.
// Bookings are matched by exact email first; when that yields nothing a
// case-insensitive fallback query guards against rows written with
// inconsistent casing.
func (m *Merger) ListForPatient(ctx context.Context, patientID, email string) ([]View, error) {
	email = lowerEmail(email)

	var (
		wg       sync.WaitGroup
		apptRows []AppointmentRow
		bookRows []BookingRow
		apptErr  error
		bookErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		apptRows, apptErr = m.appointments.ListByPatient(ctx, patientID)
	}()
	go func() {
		defer wg.Done()
		if email == "" {
			return
		}
		bookRows, bookErr = m.bookings.ListByEmail(ctx, email, true)
	}()
	wg.Wait()

	if apptErr != nil {
		m.log.Warn().Err(apptErr).Str("patient_id", patientID).
			Msg("appointments query failed during merge, contributing empty list")
		apptRows = nil
	}
	if bookErr != nil {
		m.log.Warn().Err(bookErr).Str("email", email).
			Msg("bookings query failed during merge, contributing empty list")
		bookRows = nil
	}

	if bookErr == nil && len(bookRows) == 0 && email != "" {
		fallback, err := m.bookings.ListByEmail(ctx, email, false)
		if err != nil {
			m.log.Warn().Err(err).Str("email", email).
				Msg("case-insensitive bookings fallback failed")
		} else {
			bookRows = fallback
		}
	}

	merged := make([]View, 0, len(apptRows)+len(bookRows))
	for _, r := range apptRows {
		merged = append(merged, m.norm.FromAppointment(r))
	}
	for _, r := range bookRows {
		merged = append(merged, m.norm.FromBooking(r))
	}

	sort.Slice(merged, func(i, j int) bool {
		ti, tj := merged[i].SlotTimestamp(), merged[j].SlotTimestamp()
		if ti.Equal(tj) {
			return strings.Compare(merged[i].ID.String(), merged[j].ID.String()) < 0
		}
		return ti.Before(tj)
	})

	m.decorate(ctx, merged)
	return merged, nil
}

// decorate resolves therapist directory data for display. Lookups are
// best-effort: a missing or failing entry leaves the field nil.
func (m *Merger) decorate(ctx context.Context, views []View) {
	if m.directory == nil {
		return
	}

	cache := make(map[uuid.UUID]*therapist.Therapist)
	for i := range views {
		id := views[i].TherapistID
		if t, ok := cache[id]; ok {
			views[i].Therapist = t
			continue
		}

		t, err := m.directory.GetByID(ctx, id)
		if err != nil {
			m.log.Warn().Err(err).Str("therapist_id", id.String()).
				Msg("therapist lookup failed while decorating merge result")
			cache[id] = nil
			continue
		}
		cache[id] = t
		views[i].Therapist = t
	}
}
