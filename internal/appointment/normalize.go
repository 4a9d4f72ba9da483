package appointment

import "strings"

// Normalizer maps the two physical row shapes into the canonical View.
// It is a pure mapping: missing optional fields fall back to defaults and
// never produce an error. Therapist join data is left nil here and resolved
// by the therapist directory.
type Normalizer struct{}

// FromAppointment normalizes a row from the authenticated appointments table.
func (Normalizer) FromAppointment(r AppointmentRow) View {
	v := View{
		ID:              r.ID,
		Source:          SourceAppointments,
		PatientIdentity: r.PatientID,
		TherapistID:     r.TherapistID,
		Date:            r.Date,
		Time:            r.Time,
		Kind:            normalizeKind(r.Kind),
		Status:          StatusUpcoming,
		Note:            firstNonEmpty(r.PatientNotes, r.Notes, r.Note),
		MeetLink:        r.MeetLink,
		CancelledAt:     r.CancelledAt,
		CancelReason:    r.CancelReason,
		CreatedAt:       r.CreatedAt,
	}
	if r.Status != nil && *r.Status != "" {
		v.Status = Status(*r.Status)
	}
	return v
}

// FromBooking normalizes a row from the guest bookings table.
func (Normalizer) FromBooking(r BookingRow) View {
	v := View{
		ID:              r.ID,
		Source:          SourceBookings,
		PatientIdentity: lowerEmail(r.UserEmail),
		TherapistID:     r.TherapistID,
		Date:            r.BookingDate,
		Time:            r.BookingTime,
		Kind:            normalizeKind(r.SessionType),
		Status:          StatusUpcoming,
		Note:            firstNonEmpty(r.Notes, r.Note),
		RescheduledFrom: r.RescheduledFrom,
		RescheduledTo:   r.RescheduledTo,
		CancelledAt:     r.CancelledAt,
		CancelReason:    r.CancelReason,
		CreatedAt:       r.CreatedAt,
	}
	if r.Status != "" {
		v.Status = Status(r.Status)
	}
	if r.UserName != "" {
		name := r.UserName
		v.PatientName = &name
	}
	v.PatientPhone = r.UserPhone
	return v
}

func normalizeKind(raw *string) SessionKind {
	if raw == nil || *raw == "" {
		return KindHome
	}
	return SessionKind(*raw)
}

// lowerEmail normalizes email casing the same way the write path does, so
// identity comparisons stay consistent across records.
func lowerEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func firstNonEmpty(candidates ...*string) *string {
	for _, c := range candidates {
		if c != nil && *c != "" {
			return c
		}
	}
	return nil
}
