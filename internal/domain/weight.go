package domain

import (
	"context"
	"fmt"
	"time"
)

// DayLayout is the layout of a calendar-day key.
const DayLayout = "2006-01-02"

// WeightObservation is the single weight measurement kept for one calendar day.
type WeightObservation struct {
	ID        int64     `json:"id,string"`
	UserID    int64     `json:"-"`
	Day       string    `json:"date"`
	WeightKg  float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WeightRepository is the port for the record store. Implementations keep at
// most one observation per user and day key.
type WeightRepository interface {
	// Upsert stores weightKg for the local calendar day of at, replacing the
	// weight and timestamp of an existing row for that day.
	Upsert(ctx context.Context, userID int64, weightKg float64, at time.Time) (*WeightObservation, error)
	// QueryRange returns observations with Timestamp >= since, ascending.
	QueryRange(ctx context.Context, userID int64, since time.Time) ([]WeightObservation, error)
	// QueryDays returns observations whose day key is within [fromDay, toDay], ascending.
	QueryDays(ctx context.Context, userID int64, fromDay, toDay string) ([]WeightObservation, error)
	ByDay(ctx context.Context, userID int64, day string) (*WeightObservation, error)
	Latest(ctx context.Context, userID int64) (*WeightObservation, error)
	// Delete removes the observation with id. Unknown ids are not an error.
	Delete(ctx context.Context, userID int64, id int64) error
}

// DayKey returns the local calendar day of t.
func DayKey(t time.Time) string {
	return t.In(time.Local).Format(DayLayout)
}

// ParseDay parses a day key as local midnight.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, day, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return t, nil
}
