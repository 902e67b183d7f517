package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"weightlog/internal/domain"
)

// TimeRange is a trailing window offered to clients.
type TimeRange int

const (
	Week     TimeRange = 7
	Month    TimeRange = 30
	Quarter  TimeRange = 90
	HalfYear TimeRange = 180
	Year     TimeRange = 365
)

// TimeRanges lists the presets in display order.
var TimeRanges = []TimeRange{Week, Month, Quarter, HalfYear, Year}

// DefaultRangeDays is used when a caller gives no window.
const DefaultRangeDays = int(Month)

// MaxRangeDays bounds trailing-window queries.
const MaxRangeDays = 3660

// ChangeNotifier is told about every mutation of a user's records.
type ChangeNotifier interface {
	RecordsChanged(ctx context.Context, userID int64)
}

// Summary is a window of records with its statistics. Statistics is nil when
// the window is empty.
type Summary struct {
	Records    []domain.WeightObservation `json:"records"`
	Statistics *domain.Statistics         `json:"statistics"`
}

// WeightService encapsulates weight-tracking use cases.
type WeightService struct {
	repo    domain.WeightRepository
	changes ChangeNotifier
	hub     *Hub
	now     func() time.Time
}

// NewWeightService creates a WeightService backed by the given repository.
// Mutations are announced to changes, and Subscribe listens on hub; either
// may be nil.
func NewWeightService(repo domain.WeightRepository, hub *Hub, changes ChangeNotifier) *WeightService {
	if changes == nil && hub != nil {
		changes = hub
	}
	return &WeightService{repo: repo, hub: hub, changes: changes, now: time.Now}
}

// WithClock replaces the service's time source.
func (s *WeightService) WithClock(now func() time.Time) *WeightService {
	s.now = now
	return s
}

// Today returns the current local day key.
func (s *WeightService) Today() string {
	return domain.DayKey(s.now())
}

// Record validates a weight entered in unit and stores it for today.
func (s *WeightService) Record(ctx context.Context, userID int64, value float64, unit domain.Unit) (*domain.WeightObservation, error) {
	if !validWeight(value) {
		return nil, domain.ErrInvalidWeight
	}
	if !unit.Valid() {
		return nil, domain.ErrInvalidUnit
	}
	return s.upsert(ctx, userID, domain.ToKg(value, unit), s.now())
}

// RecordAt stores weightKg for an explicit day. Today's entry is stamped with
// the current time, earlier days with local noon. Future days are rejected.
func (s *WeightService) RecordAt(ctx context.Context, userID int64, day string, weightKg float64) (*domain.WeightObservation, error) {
	if !validWeight(weightKg) {
		return nil, domain.ErrInvalidWeight
	}
	start, err := domain.ParseDay(day)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := domain.DayKey(now)
	switch {
	case day == today:
		return s.upsert(ctx, userID, weightKg, now)
	case day > today:
		return nil, fmt.Errorf("%w: %s is in the future", domain.ErrInvalidDay, day)
	default:
		return s.upsert(ctx, userID, weightKg, start.Add(12*time.Hour))
	}
}

func (s *WeightService) upsert(ctx context.Context, userID int64, weightKg float64, at time.Time) (*domain.WeightObservation, error) {
	obs, err := s.repo.Upsert(ctx, userID, weightKg, at)
	if err != nil {
		return nil, fmt.Errorf("upsert weight: %w", err)
	}
	s.changed(ctx, userID)
	return obs, nil
}

// Range returns the observations of the trailing days, ascending.
func (s *WeightService) Range(ctx context.Context, userID int64, days int) ([]domain.WeightObservation, error) {
	since := s.now().AddDate(0, 0, -ClampDays(days))
	return s.repo.QueryRange(ctx, userID, since)
}

// Between returns the observations of days fromDay..toDay inclusive.
func (s *WeightService) Between(ctx context.Context, userID int64, fromDay, toDay string) ([]domain.WeightObservation, error) {
	if _, err := domain.ParseDay(fromDay); err != nil {
		return nil, err
	}
	if _, err := domain.ParseDay(toDay); err != nil {
		return nil, err
	}
	if fromDay > toDay {
		return nil, fmt.Errorf("%w: startDate after endDate", domain.ErrInvalidDay)
	}
	return s.repo.QueryDays(ctx, userID, fromDay, toDay)
}

// Summary returns the trailing window and its statistics.
func (s *WeightService) Summary(ctx context.Context, userID int64, days int) (*Summary, error) {
	obs, err := s.Range(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	return Summarize(obs), nil
}

// Summarize wraps obs with its statistics.
func Summarize(obs []domain.WeightObservation) *Summary {
	if obs == nil {
		obs = []domain.WeightObservation{}
	}
	sum := &Summary{Records: obs}
	if st, ok := domain.ComputeStatistics(obs); ok {
		sum.Statistics = &st
	}
	return sum
}

// ByDay returns the observation of day, or domain.ErrNotFound.
func (s *WeightService) ByDay(ctx context.Context, userID int64, day string) (*domain.WeightObservation, error) {
	if _, err := domain.ParseDay(day); err != nil {
		return nil, err
	}
	obs, err := s.repo.ByDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, domain.ErrNotFound
	}
	return obs, nil
}

// Latest returns the most recent observation, or nil when there is none.
func (s *WeightService) Latest(ctx context.Context, userID int64) (*domain.WeightObservation, error) {
	return s.repo.Latest(ctx, userID)
}

// Delete removes an observation. Unknown ids succeed.
func (s *WeightService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete weight: %w", err)
	}
	s.changed(ctx, userID)
	return nil
}

// Subscribe calls fn with the trailing-window summary now and again after
// every change to the user's records. Calls are sequential. The subscription
// lives until ctx is done or it is cancelled.
func (s *WeightService) Subscribe(ctx context.Context, userID int64, days int, fn func(*Summary, error)) *Subscription {
	if s.hub == nil {
		panic("app: Subscribe on a WeightService without a hub")
	}
	sub := s.hub.Subscribe(ctx, userID, func(ctx context.Context) {
		fn(s.Summary(ctx, userID, days))
	})
	sub.enqueue()
	return sub
}

func (s *WeightService) changed(ctx context.Context, userID int64) {
	if s.changes != nil {
		s.changes.RecordsChanged(ctx, userID)
	}
}

// ClampDays bounds a trailing window to [1, MaxRangeDays]; non-positive
// values select DefaultRangeDays.
func ClampDays(days int) int {
	if days <= 0 {
		return DefaultRangeDays
	}
	if days > MaxRangeDays {
		return MaxRangeDays
	}
	return days
}

func validWeight(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
