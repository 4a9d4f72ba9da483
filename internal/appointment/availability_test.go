package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerCheck(t *testing.T) {
	ctx := context.Background()
	therapistID := uuid.New()
	slot := Slot{TherapistID: therapistID, Date: "2026-09-01", Time: "10:00"}

	t.Run("empty slot is available", func(t *testing.T) {
		checker := NewChecker(newMemBookingStore())

		avail, err := checker.Check(ctx, slot)
		require.NoError(t, err)
		assert.True(t, avail.Available)
		assert.Nil(t, avail.Conflict)
	})

	t.Run("active booking occupies the slot", func(t *testing.T) {
		store := newMemBookingStore()
		store.seed(BookingRow{
			TherapistID: therapistID,
			UserName:    "Sara",
			UserEmail:   "sara@example.com",
			BookingDate: slot.Date,
			BookingTime: slot.Time,
			Status:      string(StatusConfirmed),
		})
		checker := NewChecker(store)

		avail, err := checker.Check(ctx, slot)
		require.NoError(t, err)
		assert.False(t, avail.Available)
		require.NotNil(t, avail.Conflict)
		assert.Equal(t, StatusConfirmed, avail.Conflict.Status)
	})

	t.Run("cancelled booking frees the slot", func(t *testing.T) {
		store := newMemBookingStore()
		store.seed(BookingRow{
			TherapistID: therapistID,
			UserEmail:   "sara@example.com",
			BookingDate: slot.Date,
			BookingTime: slot.Time,
			Status:      string(StatusCancelled),
		})
		checker := NewChecker(store)

		avail, err := checker.Check(ctx, slot)
		require.NoError(t, err)
		assert.True(t, avail.Available)
	})

	t.Run("other slots do not conflict", func(t *testing.T) {
		store := newMemBookingStore()
		store.seed(BookingRow{
			TherapistID: therapistID,
			UserEmail:   "sara@example.com",
			BookingDate: slot.Date,
			BookingTime: "11:00",
			Status:      string(StatusPending),
		})
		checker := NewChecker(store)

		avail, err := checker.Check(ctx, slot)
		require.NoError(t, err)
		assert.True(t, avail.Available)
	})
}

func TestCheckerDay(t *testing.T) {
	ctx := context.Background()
	therapistID := uuid.New()

	store := newMemBookingStore()
	store.seed(
		BookingRow{
			TherapistID: therapistID,
			UserName:    "Sara",
			UserEmail:   "sara@example.com",
			BookingDate: "2026-09-01",
			BookingTime: "10:00",
			Status:      string(StatusConfirmed),
		},
		BookingRow{
			TherapistID: therapistID,
			UserName:    "Omar",
			UserEmail:   "omar@example.com",
			BookingDate: "2026-09-01",
			BookingTime: "15:00",
			Status:      string(StatusPending),
		},
		// Cancelled rows do not occupy slots.
		BookingRow{
			TherapistID: therapistID,
			UserEmail:   "x@example.com",
			BookingDate: "2026-09-01",
			BookingTime: "12:00",
			Status:      string(StatusCancelled),
		},
		// Other days do not bleed in.
		BookingRow{
			TherapistID: therapistID,
			UserEmail:   "y@example.com",
			BookingDate: "2026-09-02",
			BookingTime: "08:00",
			Status:      string(StatusConfirmed),
		},
	)
	checker := NewChecker(store)

	day, err := checker.Day(ctx, therapistID, "2026-09-01")
	require.NoError(t, err)

	assert.Equal(t, therapistID, day.TherapistID)
	assert.Equal(t, "2026-09-01", day.Date)

	require.Len(t, day.BookedTimes, 2)
	assert.Equal(t, "10:00", day.BookedTimes[0].Time)
	assert.Equal(t, "Sara", day.BookedTimes[0].Patient)
	assert.Equal(t, "15:00", day.BookedTimes[1].Time)

	assert.Len(t, day.AvailableTimes, len(DailySlotTimes)-2)
	assert.NotContains(t, day.AvailableTimes, "10:00")
	assert.NotContains(t, day.AvailableTimes, "15:00")
	assert.Contains(t, day.AvailableTimes, "12:00")
	assert.Contains(t, day.AvailableTimes, "08:00")
}

func TestCheckerDayEmpty(t *testing.T) {
	checker := NewChecker(newMemBookingStore())

	day, err := checker.Day(context.Background(), uuid.New(), "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, DailySlotTimes, day.AvailableTimes)
	assert.Empty(t, day.BookedTimes)
}
