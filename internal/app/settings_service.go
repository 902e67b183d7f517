package app

import (
	"context"
	"fmt"
	"time"

	"weightlog/internal/domain"
)

// ReminderRescheduler is told when a user's reminder settings change.
type ReminderRescheduler interface {
	Reschedule()
}

// SettingsService encapsulates preference use cases.
type SettingsService struct {
	repo      domain.PreferencesRepository
	reminders ReminderRescheduler
}

// NewSettingsService creates a SettingsService. reminders may be nil.
func NewSettingsService(repo domain.PreferencesRepository, reminders ReminderRescheduler) *SettingsService {
	return &SettingsService{repo: repo, reminders: reminders}
}

// Get returns the user's preferences, or the defaults if none were saved.
func (s *SettingsService) Get(ctx context.Context, userID int64) (domain.UserPreferences, error) {
	p, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	if p == nil {
		return domain.DefaultPreferences(userID), nil
	}
	return *p, nil
}

// Update validates and applies a partial update.
func (s *SettingsService) Update(ctx context.Context, userID int64, upd domain.PreferencesUpdate) (domain.UserPreferences, error) {
	if err := validateUpdate(upd); err != nil {
		return domain.UserPreferences{}, err
	}
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	next := upd.Apply(cur)
	next.UserID = userID
	next.UpdatedAt = time.Now()
	if err := s.repo.SavePreferences(ctx, next); err != nil {
		return domain.UserPreferences{}, fmt.Errorf("save preferences: %w", err)
	}

	reminderChanged := next.ReminderEnabled != cur.ReminderEnabled ||
		next.ReminderHour != cur.ReminderHour ||
		next.ReminderMinute != cur.ReminderMinute
	if reminderChanged && s.reminders != nil {
		s.reminders.Reschedule()
	}
	return next, nil
}

func validateUpdate(u domain.PreferencesUpdate) error {
	if u.HeightCm != nil && (*u.HeightCm <= 0 || *u.HeightCm > 300) {
		return fmt.Errorf("%w: height must be within (0, 300] cm", domain.ErrInvalidPreferences)
	}
	if u.TargetWeightKg != nil && (*u.TargetWeightKg < 0 || *u.TargetWeightKg > 1000) {
		return fmt.Errorf("%w: target weight must be within [0, 1000] kg", domain.ErrInvalidPreferences)
	}
	if u.Unit != nil && !u.Unit.Valid() {
		return domain.ErrInvalidUnit
	}
	if u.ReminderHour != nil && (*u.ReminderHour < 0 || *u.ReminderHour > 23) {
		return fmt.Errorf("%w: reminder hour must be 0-23", domain.ErrInvalidPreferences)
	}
	if u.ReminderMinute != nil && (*u.ReminderMinute < 0 || *u.ReminderMinute > 59) {
		return fmt.Errorf("%w: reminder minute must be 0-59", domain.ErrInvalidPreferences)
	}
	return nil
}
