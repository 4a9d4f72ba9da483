package therapist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// pgxQuerier is the subset of pgxpool.Pool the directory needs; pgxmock
// satisfies it in tests.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgDirectory struct {
	pool pgxQuerier
}

func NewPgDirectory(pool pgxQuerier) *PgDirectory {
	return &PgDirectory{pool: pool}
}

const therapistColumns = `id, slug, name_ar, name_en, role_ar, role_en, avatar_url, active, created_at, updated_at`

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist

	err := row.Scan(
		&t.ID,
		&t.Slug,
		&t.NameAR,
		&t.NameEN,
		&t.RoleAR,
		&t.RoleEN,
		&t.AvatarURL,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &t, nil
}

func (d *PgDirectory) GetByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+therapistColumns+`
		FROM therapists
		WHERE id = $1
	`, id)
	return scanTherapist(row)
}

func (d *PgDirectory) GetBySlug(ctx context.Context, slug string) (*Therapist, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+therapistColumns+`
		FROM therapists
		WHERE slug = $1
	`, slug)
	return scanTherapist(row)
}

func (d *PgDirectory) List(ctx context.Context, activeOnly bool) ([]Therapist, error) {
	query := `
		SELECT ` + therapistColumns + `
		FROM therapists
		ORDER BY name_en ASC
	`
	if activeOnly {
		query = `
		SELECT ` + therapistColumns + `
		FROM therapists
		WHERE active
		ORDER BY name_en ASC
	`
	}

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Therapist
	for rows.Next() {
		t, err := scanTherapist(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
