package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is the subset of pgxpool.Pool the stores need. pgxmock
// satisfies it too, which is how the store tests run without a database.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgAppointmentStore struct {
	db pgxQuerier
}

func NewPgAppointmentStore(db pgxQuerier) *PgAppointmentStore {
	return &PgAppointmentStore{db: db}
}

const appointmentColumns = `id, patient_id, therapist_id, date, time, kind, status,
	patient_notes, notes, note, meet_link, rating, feedback_text, feedback_ratings,
	feedback_submitted_at, cancelled_at, cancellation_reason, created_at, updated_at`

func scanAppointmentRow(row pgx.Row) (*AppointmentRow, error) {
	var a AppointmentRow

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TherapistID,
		&a.Date,
		&a.Time,
		&a.Kind,
		&a.Status,
		&a.PatientNotes,
		&a.Notes,
		&a.Note,
		&a.MeetLink,
		&a.Rating,
		&a.FeedbackText,
		&a.FeedbackRatings,
		&a.FeedbackSubmittedAt,
		&a.CancelledAt,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (s *PgAppointmentStore) GetForPatient(ctx context.Context, id uuid.UUID, patientID string) (*AppointmentRow, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND patient_id = $2
	`, id, patientID)
	return scanAppointmentRow(row)
}

func (s *PgAppointmentStore) ListByPatient(ctx context.Context, patientID string) ([]AppointmentRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date ASC, time ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentRow
	for rows.Next() {
		a, err := scanAppointmentRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgAppointmentStore) Insert(ctx context.Context, in AppointmentRow) (*AppointmentRow, error) {
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, therapist_id, date, time, kind, status, patient_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, in.PatientID, in.TherapistID, in.Date, in.Time, in.Kind, in.Status, in.PatientNotes)

	return scanAppointmentRow(row)
}

func (s *PgAppointmentStore) UpdateSchedule(ctx context.Context, id uuid.UUID, patientID string, change ScheduleChange) (*AppointmentRow, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET date = COALESCE($3, date),
		    time = COALESCE($4, time),
		    kind = COALESCE($5, kind),
		    patient_notes = COALESCE($6, patient_notes),
		    updated_at = now()
		WHERE id = $1
		  AND patient_id = $2
		RETURNING `+appointmentColumns+`
	`, id, patientID, change.Date, change.Time, change.Kind, change.Note)

	return scanAppointmentRow(row)
}

func (s *PgAppointmentStore) Cancel(ctx context.Context, id uuid.UUID, patientID string, reason *string) (*AppointmentRow, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_at = now(),
		    cancellation_reason = COALESCE($3, cancellation_reason),
		    updated_at = now()
		WHERE id = $1
		  AND patient_id = $2
		RETURNING `+appointmentColumns+`
	`, id, patientID, reason)

	return scanAppointmentRow(row)
}

func (s *PgAppointmentStore) AttachFeedback(ctx context.Context, id uuid.UUID, patientID string, fb Feedback) (*AppointmentRow, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET rating = $3,
		    feedback_text = $4,
		    feedback_ratings = $5,
		    feedback_submitted_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND patient_id = $2
		RETURNING `+appointmentColumns+`
	`, id, patientID, fb.Overall, fb.Text, fb.Ratings)

	return scanAppointmentRow(row)
}

func (s *PgAppointmentStore) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    updated_at = now()
		WHERE status = 'upcoming'
		  AND to_timestamp(date || ' ' || COALESCE(NULLIF(time, ''), '00:00'), 'YYYY-MM-DD HH24:MI') < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
