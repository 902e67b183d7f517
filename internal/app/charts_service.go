package app

import (
	"context"
	"time"

	"weightlog/internal/domain"
)

// ChartsService encapsulates chart data retrieval use cases.
type ChartsService struct {
	weightRepo domain.WeightRepository
	now        func() time.Time
}

// NewChartsService creates a ChartsService backed by the given repository.
func NewChartsService(wr domain.WeightRepository) *ChartsService {
	return &ChartsService{weightRepo: wr, now: time.Now}
}

// WithClock replaces the service's time source.
func (s *ChartsService) WithClock(now func() time.Time) *ChartsService {
	s.now = now
	return s
}

// DayPoint is a single data point returned by GetDaily. Weight is nil on days
// without a measurement.
type DayPoint struct {
	Day    string   `json:"day"`
	Weight *float64 `json:"weight"`
}

// GetDaily returns one point per day for the last days days, oldest first,
// with weights converted to unit.
func (s *ChartsService) GetDaily(ctx context.Context, userID int64, days int, unit domain.Unit) ([]DayPoint, error) {
	if !unit.Valid() {
		return nil, domain.ErrInvalidUnit
	}
	days = ClampDays(days)

	today := s.now().In(time.Local)
	first := today.AddDate(0, 0, -(days - 1))
	obs, err := s.weightRepo.QueryDays(ctx, userID, domain.DayKey(first), domain.DayKey(today))
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]float64, len(obs))
	for _, o := range obs {
		byDay[o.Day] = o.WeightKg
	}

	points := make([]DayPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		dayStr := domain.DayKey(today.AddDate(0, 0, -i))
		var wp *float64
		if kg, ok := byDay[dayStr]; ok {
			v := domain.Convert(kg, unit)
			wp = &v
		}
		points = append(points, DayPoint{Day: dayStr, Weight: wp})
	}
	return points, nil
}
