package appointment

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type PgBookingStore struct {
	db pgxQuerier
}

func NewPgBookingStore(db pgxQuerier) *PgBookingStore {
	return &PgBookingStore{db: db}
}

const bookingColumns = `id, therapist_id, patient_national_id, user_name, user_email, user_phone,
	patient_date_of_birth, booking_date, booking_time, session_type, session_duration, status,
	notes, note, rescheduled_from, rescheduled_to, confirmed_at, confirmed_by,
	cancelled_at, cancellation_reason, cancelled_by, created_at, updated_at`

func scanBookingRow(row pgx.Row) (*BookingRow, error) {
	var b BookingRow

	err := row.Scan(
		&b.ID,
		&b.TherapistID,
		&b.PatientNationalID,
		&b.UserName,
		&b.UserEmail,
		&b.UserPhone,
		&b.PatientDateOfBirth,
		&b.BookingDate,
		&b.BookingTime,
		&b.SessionType,
		&b.SessionDuration,
		&b.Status,
		&b.Notes,
		&b.Note,
		&b.RescheduledFrom,
		&b.RescheduledTo,
		&b.ConfirmedAt,
		&b.ConfirmedBy,
		&b.CancelledAt,
		&b.CancelReason,
		&b.CancelledBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &b, nil
}

func (s *PgBookingStore) collectBookingRows(rows pgx.Rows) ([]BookingRow, error) {
	defer rows.Close()

	var result []BookingRow
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgBookingStore) GetByID(ctx context.Context, id uuid.UUID) (*BookingRow, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBookingRow(row)
}

func (s *PgBookingStore) GetForEmail(ctx context.Context, id uuid.UUID, email string) (*BookingRow, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND user_email = $2
	`, id, lowerEmail(email))
	return scanBookingRow(row)
}

// ListByEmail returns a patient's bookings ordered by date/time. With exact
// set it matches the stored casing; otherwise it uses ILIKE as the merge
// fallback for rows written before emails were lower-cased at insert.
func (s *PgBookingStore) ListByEmail(ctx context.Context, email string, exact bool) ([]BookingRow, error) {
	match := `user_email = $1`
	if !exact {
		match = `user_email ILIKE $1`
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE `+match+`
		ORDER BY booking_date ASC, booking_time ASC
	`, email)
	if err != nil {
		return nil, err
	}
	return s.collectBookingRows(rows)
}

func (s *PgBookingStore) ListByEmailStatus(ctx context.Context, email string, status *Status) ([]BookingRow, error) {
	if status != nil {
		rows, err := s.db.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE user_email = $1 AND status = $2
			ORDER BY booking_date DESC, booking_time DESC
		`, lowerEmail(email), *status)
		if err != nil {
			return nil, err
		}
		return s.collectBookingRows(rows)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_email = $1
		ORDER BY booking_date DESC, booking_time DESC
	`, lowerEmail(email))
	if err != nil {
		return nil, err
	}
	return s.collectBookingRows(rows)
}

func (s *PgBookingStore) ListByTherapist(ctx context.Context, therapistID uuid.UUID, f TherapistBookingsFilter) ([]BookingRow, int64, error) {
	where := `therapist_id = $1`
	args := []any{therapistID}

	if f.Status != nil {
		args = append(args, *f.Status)
		where += ` AND status = $2`
	}
	if f.Date != nil {
		args = append(args, *f.Date)
		if f.Status != nil {
			where += ` AND booking_date = $3`
		} else {
			where += ` AND booking_date = $2`
		}
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	pageArgs := append(args, limit, offset)

	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE `+where+`
		ORDER BY booking_date ASC, booking_time ASC
		LIMIT $`+strconv.Itoa(len(args)+1)+` OFFSET $`+strconv.Itoa(len(args)+2)+`
	`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}

	result, err := s.collectBookingRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *PgBookingStore) ListActiveForSlot(ctx context.Context, slot Slot) ([]BookingRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE therapist_id = $1
		  AND booking_date = $2
		  AND booking_time = $3
		  AND status IN ('pending', 'confirmed')
	`, slot.TherapistID, slot.Date, slot.Time)
	if err != nil {
		return nil, err
	}
	return s.collectBookingRows(rows)
}

func (s *PgBookingStore) ListActiveForDay(ctx context.Context, therapistID uuid.UUID, date string) ([]BookingRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE therapist_id = $1
		  AND booking_date = $2
		  AND status IN ('pending', 'confirmed')
		ORDER BY booking_time ASC
	`, therapistID, date)
	if err != nil {
		return nil, err
	}
	return s.collectBookingRows(rows)
}

// Insert writes a new booking row. A violation of the active-slot unique
// index is the authoritative double-booking signal and comes back as
// ErrSlotTaken.
func (s *PgBookingStore) Insert(ctx context.Context, in BookingRow) (*BookingRow, error) {
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO bookings (id, therapist_id, patient_national_id, user_name, user_email, user_phone,
			patient_date_of_birth, booking_date, booking_time, session_type, session_duration, status,
			notes, rescheduled_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+bookingColumns+`
	`, id, in.TherapistID, in.PatientNationalID, in.UserName, lowerEmail(in.UserEmail), in.UserPhone,
		in.PatientDateOfBirth, in.BookingDate, in.BookingTime, in.SessionType, in.SessionDuration,
		in.Status, in.Notes, in.RescheduledFrom)

	b, err := scanBookingRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return b, nil
}

func (s *PgBookingStore) Confirm(ctx context.Context, id, therapistID uuid.UUID) (*BookingRow, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'confirmed',
		    confirmed_at = now(),
		    confirmed_by = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+bookingColumns+`
	`, id, therapistID)

	b, err := scanBookingRow(row)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			// Row exists but left pending state between check and update.
			return nil, ErrNotPending
		}
		return nil, err
	}
	return b, nil
}

// Cancel stamps the cancellation fields. Already-cancelled detection is the
// caller's job (it has just fetched the row); re-running here only refreshes
// the stamp, which the reschedule flow relies on to set the forward link.
func (s *PgBookingStore) Cancel(ctx context.Context, id uuid.UUID, reason, cancelledBy *string, rescheduledTo *uuid.UUID) (*BookingRow, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    cancelled_at = COALESCE(cancelled_at, now()),
		    cancellation_reason = COALESCE($2, cancellation_reason),
		    cancelled_by = COALESCE($3, cancelled_by),
		    rescheduled_to = COALESCE($4, rescheduled_to),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, id, reason, cancelledBy, rescheduledTo)

	return scanBookingRow(row)
}

func (s *PgBookingStore) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = 'completed',
		    updated_at = now()
		WHERE status IN ('pending', 'confirmed')
		  AND to_timestamp(booking_date || ' ' || COALESCE(NULLIF(booking_time, ''), '00:00'), 'YYYY-MM-DD HH24:MI') < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
