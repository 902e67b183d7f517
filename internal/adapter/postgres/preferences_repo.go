package postgres

import (
	"context"
	"database/sql"
	"errors"

	"weightlog/internal/domain"
)

const prefColumns = "user_id, target_weight_kg, height_cm, unit, reminder_enabled, reminder_hour, reminder_minute, updated_at"

func scanPreferences(s scanner) (domain.UserPreferences, error) {
	var p domain.UserPreferences
	var unit string
	err := s.Scan(&p.UserID, &p.TargetWeightKg, &p.HeightCm, &unit, &p.ReminderEnabled, &p.ReminderHour, &p.ReminderMinute, &p.UpdatedAt)
	p.Unit = domain.Unit(unit)
	return p, err
}

// GetPreferences returns the user's saved preferences, or nil.
func (d *DB) GetPreferences(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	p, err := scanPreferences(d.sql.QueryRowContext(ctx,
		"SELECT "+prefColumns+" FROM user_preferences WHERE user_id = $1;", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePreferences inserts or replaces the user's preferences.
func (d *DB) SavePreferences(ctx context.Context, p domain.UserPreferences) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO user_preferences (`+prefColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		   target_weight_kg = EXCLUDED.target_weight_kg,
		   height_cm = EXCLUDED.height_cm,
		   unit = EXCLUDED.unit,
		   reminder_enabled = EXCLUDED.reminder_enabled,
		   reminder_hour = EXCLUDED.reminder_hour,
		   reminder_minute = EXCLUDED.reminder_minute,
		   updated_at = EXCLUDED.updated_at;`,
		p.UserID, p.TargetWeightKg, p.HeightCm, string(p.Unit), p.ReminderEnabled, p.ReminderHour, p.ReminderMinute, p.UpdatedAt,
	)
	return err
}

// ListReminders returns the preferences of users with reminders enabled.
func (d *DB) ListReminders(ctx context.Context) ([]domain.UserPreferences, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+prefColumns+" FROM user_preferences WHERE reminder_enabled ORDER BY user_id;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserPreferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
