package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"weightlog/internal/app"
	"weightlog/internal/domain"
)

var chartNow = time.Date(2026, 3, 10, 21, 0, 0, 0, time.Local)

func TestGetDaily_BadUnit(t *testing.T) {
	svc := app.NewChartsService(&mockWeightRepo{})
	_, err := svc.GetDaily(context.Background(), 1, 7, domain.Unit("stones"))
	if !errors.Is(err, domain.ErrInvalidUnit) {
		t.Fatalf("expected ErrInvalidUnit, got %v", err)
	}
}

func TestGetDaily_Success(t *testing.T) {
	var from, to string
	wr := &mockWeightRepo{
		queryDaysFn: func(_ context.Context, _ int64, f, t string) ([]domain.WeightObservation, error) {
			from, to = f, t
			return []domain.WeightObservation{
				{ID: 1, Day: "2026-03-08", WeightKg: 80},
				{ID: 2, Day: "2026-03-10", WeightKg: 79.5},
			}, nil
		},
	}

	svc := app.NewChartsService(wr).WithClock(fixedClock(chartNow))
	points, err := svc.GetDaily(context.Background(), 1, 3, domain.KG)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from != "2026-03-08" || to != "2026-03-10" {
		t.Errorf("unexpected query bounds %s..%s", from, to)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	wantDays := []string{"2026-03-08", "2026-03-09", "2026-03-10"}
	for i, p := range points {
		if p.Day != wantDays[i] {
			t.Errorf("point %d: expected day %s, got %s", i, wantDays[i], p.Day)
		}
	}
	if points[0].Weight == nil || *points[0].Weight != 80 {
		t.Errorf("expected weight 80, got %v", points[0].Weight)
	}
	if points[1].Weight != nil {
		t.Errorf("expected gap on 2026-03-09, got %v", *points[1].Weight)
	}
	if points[2].Weight == nil || *points[2].Weight != 79.5 {
		t.Errorf("expected weight 79.5, got %v", points[2].Weight)
	}
}

func TestGetDaily_ConvertUnit(t *testing.T) {
	wr := &mockWeightRepo{
		queryDaysFn: func(_ context.Context, _ int64, _, _ string) ([]domain.WeightObservation, error) {
			return []domain.WeightObservation{{ID: 1, Day: "2026-03-10", WeightKg: 65}}, nil
		},
	}

	svc := app.NewChartsService(wr).WithClock(fixedClock(chartNow))
	points, err := svc.GetDaily(context.Background(), 1, 1, domain.JIN)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Weight == nil || *points[0].Weight != 130 {
		t.Errorf("expected 130 jin, got %v", points[0].Weight)
	}
}

func TestGetDaily_DefaultsAndClamps(t *testing.T) {
	svc := app.NewChartsService(&mockWeightRepo{}).WithClock(fixedClock(chartNow))

	tests := []struct {
		days int
		want int
	}{
		{0, app.DefaultRangeDays},
		{90, 90},
		{50000, app.MaxRangeDays},
	}
	for _, tc := range tests {
		points, err := svc.GetDaily(context.Background(), 1, tc.days, domain.KG)
		if err != nil {
			t.Fatalf("days=%d: unexpected error: %v", tc.days, err)
		}
		if len(points) != tc.want {
			t.Errorf("days=%d: expected %d points, got %d", tc.days, tc.want, len(points))
		}
		if points[len(points)-1].Day != "2026-03-10" {
			t.Errorf("days=%d: last point should be today, got %s", tc.days, points[len(points)-1].Day)
		}
	}
}
