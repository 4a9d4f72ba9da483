package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DailySlotTimes is the fixed template of bookable times per therapist day.
var DailySlotTimes = []string{
	"08:00", "09:00", "10:00", "11:00", "12:00",
	"13:00", "14:00", "15:00", "16:00", "17:00", "18:00",
}

type Availability struct {
	Available bool  `json:"available"`
	Conflict  *View `json:"conflict,omitempty"`
}

// BookedSlot is one occupied entry in a therapist's day schedule.
type BookedSlot struct {
	Time    string `json:"time"`
	Status  Status `json:"status"`
	Patient string `json:"patient"`
}

// DaySchedule is the free/booked breakdown for one therapist day.
type DaySchedule struct {
	TherapistID    uuid.UUID    `json:"therapist_id"`
	Date           string       `json:"date"`
	AvailableTimes []string     `json:"available_times"`
	BookedTimes    []BookedSlot `json:"booked_times"`
}

// Checker decides whether a slot can take a new reservation. It is a
// fast-path pre-check only; the bookings unique index remains the
// authoritative guard against double-booking.
type Checker struct {
	bookings BookingStore
	norm     Normalizer
}

func NewChecker(bookings BookingStore) *Checker {
	return &Checker{bookings: bookings}
}

// Check reports whether the slot is free of active bookings. A no-rows
// signal from the store means the slot is available, never an error.
func (c *Checker) Check(ctx context.Context, slot Slot) (Availability, error) {
	active, err := c.bookings.ListActiveForSlot(ctx, slot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrRecordNotFound) {
			return Availability{Available: true}, nil
		}
		return Availability{}, fmt.Errorf("check slot availability: %w", err)
	}

	if len(active) == 0 {
		return Availability{Available: true}, nil
	}

	conflict := c.norm.FromBooking(active[0])
	return Availability{Available: false, Conflict: &conflict}, nil
}

// Day builds the free/booked schedule for a therapist date from the fixed
// daily slot template.
func (c *Checker) Day(ctx context.Context, therapistID uuid.UUID, date string) (*DaySchedule, error) {
	active, err := c.bookings.ListActiveForDay(ctx, therapistID, date)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) && !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("list day bookings: %w", err)
	}

	booked := make([]BookedSlot, 0, len(active))
	taken := make(map[string]bool, len(active))
	for _, b := range active {
		booked = append(booked, BookedSlot{
			Time:    b.BookingTime,
			Status:  Status(b.Status),
			Patient: b.UserName,
		})
		taken[b.BookingTime] = true
	}

	free := make([]string, 0, len(DailySlotTimes))
	for _, t := range DailySlotTimes {
		if !taken[t] {
			free = append(free, t)
		}
	}

	return &DaySchedule{
		TherapistID:    therapistID,
		Date:           date,
		AvailableTimes: free,
		BookedTimes:    booked,
	}, nil
}
