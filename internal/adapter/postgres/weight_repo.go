package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"weightlog/internal/domain"
)

const weightColumns = "id, user_id, day_key, weight_kg, recorded_at, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanWeight(s scanner) (domain.WeightObservation, error) {
	var o domain.WeightObservation
	err := s.Scan(&o.ID, &o.UserID, &o.Day, &o.WeightKg, &o.Timestamp, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Upsert inserts or replaces the user's observation for the local day of at.
func (d *DB) Upsert(ctx context.Context, userID int64, weightKg float64, at time.Time) (*domain.WeightObservation, error) {
	row := d.sql.QueryRowContext(ctx,
		`INSERT INTO weight_records (user_id, day_key, weight_kg, recorded_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 ON CONFLICT (user_id, day_key) DO UPDATE
		 SET weight_kg = EXCLUDED.weight_kg, recorded_at = EXCLUDED.recorded_at, updated_at = now()
		 RETURNING `+weightColumns+";",
		userID, domain.DayKey(at), weightKg, at.UTC(),
	)
	o, err := scanWeight(row)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// QueryRange returns observations recorded at or after since, ascending.
func (d *DB) QueryRange(ctx context.Context, userID int64, since time.Time) ([]domain.WeightObservation, error) {
	return d.queryWeights(ctx,
		"SELECT "+weightColumns+" FROM weight_records WHERE user_id = $1 AND recorded_at >= $2 ORDER BY recorded_at, id;",
		userID, since.UTC())
}

// QueryDays returns observations of fromDay..toDay inclusive, ascending.
func (d *DB) QueryDays(ctx context.Context, userID int64, fromDay, toDay string) ([]domain.WeightObservation, error) {
	return d.queryWeights(ctx,
		"SELECT "+weightColumns+" FROM weight_records WHERE user_id = $1 AND day_key BETWEEN $2 AND $3 ORDER BY recorded_at, id;",
		userID, fromDay, toDay)
}

func (d *DB) queryWeights(ctx context.Context, query string, args ...any) ([]domain.WeightObservation, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.WeightObservation{}
	for rows.Next() {
		o, err := scanWeight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ByDay returns the observation of a local day, or nil.
func (d *DB) ByDay(ctx context.Context, userID int64, day string) (*domain.WeightObservation, error) {
	return d.oneWeight(ctx,
		"SELECT "+weightColumns+" FROM weight_records WHERE user_id = $1 AND day_key = $2;", userID, day)
}

// Latest returns the most recent observation, or nil.
func (d *DB) Latest(ctx context.Context, userID int64) (*domain.WeightObservation, error) {
	return d.oneWeight(ctx,
		"SELECT "+weightColumns+" FROM weight_records WHERE user_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1;", userID)
}

func (d *DB) oneWeight(ctx context.Context, query string, args ...any) (*domain.WeightObservation, error) {
	o, err := scanWeight(d.sql.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Delete removes an observation. Unknown IDs are not an error.
func (d *DB) Delete(ctx context.Context, userID, id int64) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM weight_records WHERE id = $1 AND user_id = $2;", id, userID)
	return err
}
