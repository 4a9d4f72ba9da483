package therapist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var therapistColumnNames = []string{
	"id", "slug", "name_ar", "name_en", "role_ar", "role_en", "avatar_url", "active", "created_at", "updated_at",
}

func TestPgDirectoryGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM therapists").
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(therapistColumnNames).
				AddRow(id, "dr-sara", "سارة", "Dr. Sara", nil, nil, nil, true, now, now))

		dir := NewPgDirectory(mock)
		got, err := dir.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "dr-sara", got.Slug)
		assert.True(t, got.Active)
	})

	t.Run("no rows means not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM therapists").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		dir := NewPgDirectory(mock)
		_, err := dir.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectoryList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM therapists").
		WillReturnRows(pgxmock.NewRows(therapistColumnNames).
			AddRow(uuid.New(), "dr-omar", "عمر", "Dr. Omar", nil, nil, nil, true, now, now).
			AddRow(uuid.New(), "dr-sara", "سارة", "Dr. Sara", nil, nil, nil, true, now, now))

	dir := NewPgDirectory(mock)
	got, err := dir.List(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	assert.NoError(t, mock.ExpectationsWereMet())
}
