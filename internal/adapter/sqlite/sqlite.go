// Package sqlite implements the local-only weight store on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"weightlog/internal/domain"
)

// LocalUserID owns every record of a local store.
const LocalUserID int64 = 1

// Store implements domain.WeightRepository and domain.PreferencesRepository.
type Store struct {
	db *gorm.DB
}

var _ domain.WeightRepository = (*Store)(nil)
var _ domain.PreferencesRepository = (*Store)(nil)

type weightRecord struct {
	ID     int64   `gorm:"column:id;primaryKey;autoIncrement"`
	UserID int64   `gorm:"column:user_id;not null"`
	Date   int64   `gorm:"column:date;not null"`
	DayKey string  `gorm:"column:day_key;not null"`
	Weight float64 `gorm:"column:weight;not null"`
}

func (weightRecord) TableName() string { return "weight_records" }

func (r weightRecord) observation() domain.WeightObservation {
	return domain.WeightObservation{
		ID:        r.ID,
		UserID:    r.UserID,
		Day:       r.DayKey,
		WeightKg:  r.Weight,
		Timestamp: time.UnixMilli(r.Date),
	}
}

type preferencesRow struct {
	UserID          int64     `gorm:"column:user_id;primaryKey"`
	TargetWeightKg  float64   `gorm:"column:target_weight_kg"`
	HeightCm        float64   `gorm:"column:height_cm"`
	Unit            string    `gorm:"column:unit"`
	ReminderEnabled bool      `gorm:"column:reminder_enabled"`
	ReminderHour    int       `gorm:"column:reminder_hour"`
	ReminderMinute  int       `gorm:"column:reminder_minute"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (preferencesRow) TableName() string { return "user_preferences" }

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string, log logrus.FieldLogger) (*Store, error) {
	database, err := openDB(path, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(database); err != nil {
		_ = closeDB(database)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: database}, nil
}

func openDB(path string, log logrus.FieldLogger) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", path)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return database, nil
}

func closeDB(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Close optimizes and closes the database.
func (s *Store) Close() error {
	var err error
	if e := s.db.Exec("PRAGMA optimize").Error; e != nil {
		err = multierr.Append(err, fmt.Errorf("optimize: %w", e))
	}
	return multierr.Append(err, closeDB(s.db))
}

// Upsert stores weightKg for the local day of at, replacing that day's
// earlier record.
func (s *Store) Upsert(ctx context.Context, userID int64, weightKg float64, at time.Time) (*domain.WeightObservation, error) {
	rec := weightRecord{
		UserID: userID,
		Date:   at.UnixMilli(),
		DayKey: domain.DayKey(at),
		Weight: weightKg,
	}
	var stored weightRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "day_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"date", "weight"}),
		}).Create(&rec).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND day_key = ?", userID, rec.DayKey).First(&stored).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert weight record: %w", err)
	}
	o := stored.observation()
	return &o, nil
}

// QueryRange returns records at or after since, ascending.
func (s *Store) QueryRange(ctx context.Context, userID int64, since time.Time) ([]domain.WeightObservation, error) {
	return s.find(ctx, s.db.Where("user_id = ? AND date >= ?", userID, since.UnixMilli()))
}

// QueryDays returns records of fromDay..toDay inclusive, ascending.
func (s *Store) QueryDays(ctx context.Context, userID int64, fromDay, toDay string) ([]domain.WeightObservation, error) {
	return s.find(ctx, s.db.Where("user_id = ? AND day_key BETWEEN ? AND ?", userID, fromDay, toDay))
}

func (s *Store) find(ctx context.Context, query *gorm.DB) ([]domain.WeightObservation, error) {
	rows := make([]weightRecord, 0)
	if err := query.WithContext(ctx).Order("date ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.WeightObservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.observation())
	}
	return out, nil
}

// ByDay returns the record of day, or nil.
func (s *Store) ByDay(ctx context.Context, userID int64, day string) (*domain.WeightObservation, error) {
	return s.first(ctx, s.db.Where("user_id = ? AND day_key = ?", userID, day))
}

// Latest returns the most recent record, or nil.
func (s *Store) Latest(ctx context.Context, userID int64) (*domain.WeightObservation, error) {
	return s.first(ctx, s.db.Where("user_id = ?", userID).Order("date DESC, id DESC"))
}

func (s *Store) first(ctx context.Context, query *gorm.DB) (*domain.WeightObservation, error) {
	var rec weightRecord
	err := query.WithContext(ctx).Limit(1).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o := rec.observation()
	return &o, nil
}

// Delete removes a record. Unknown IDs are not an error.
func (s *Store) Delete(ctx context.Context, userID, id int64) error {
	return s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&weightRecord{}).Error
}

// GetPreferences returns the saved preferences, or nil.
func (s *Store) GetPreferences(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	var row preferencesRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := row.preferences()
	return &p, nil
}

// SavePreferences inserts or replaces the user's preferences.
func (s *Store) SavePreferences(ctx context.Context, p domain.UserPreferences) error {
	row := preferencesRow{
		UserID:          p.UserID,
		TargetWeightKg:  p.TargetWeightKg,
		HeightCm:        p.HeightCm,
		Unit:            string(p.Unit),
		ReminderEnabled: p.ReminderEnabled,
		ReminderHour:    p.ReminderHour,
		ReminderMinute:  p.ReminderMinute,
		UpdatedAt:       p.UpdatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// ListReminders returns the preferences with reminders enabled.
func (s *Store) ListReminders(ctx context.Context) ([]domain.UserPreferences, error) {
	rows := make([]preferencesRow, 0)
	if err := s.db.WithContext(ctx).Where("reminder_enabled = ?", true).Order("user_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.UserPreferences, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.preferences())
	}
	return out, nil
}

func (r preferencesRow) preferences() domain.UserPreferences {
	return domain.UserPreferences{
		UserID:          r.UserID,
		TargetWeightKg:  r.TargetWeightKg,
		HeightCm:        r.HeightCm,
		Unit:            domain.Unit(r.Unit),
		ReminderEnabled: r.ReminderEnabled,
		ReminderHour:    r.ReminderHour,
		ReminderMinute:  r.ReminderMinute,
		UpdatedAt:       r.UpdatedAt,
	}
}
