package domain

import (
	"context"
	"fmt"
	"time"
)

// Default reminder time of day.
const (
	DefaultReminderHour   = 8
	DefaultReminderMinute = 0
)

// UserPreferences holds a user's body profile and reminder settings.
type UserPreferences struct {
	UserID          int64
	TargetWeightKg  float64
	HeightCm        float64
	Unit            Unit
	ReminderEnabled bool
	ReminderHour    int
	ReminderMinute  int
	UpdatedAt       time.Time
}

// DefaultPreferences returns the preferences of a user who never saved any.
func DefaultPreferences(userID int64) UserPreferences {
	return UserPreferences{
		UserID:         userID,
		Unit:           KG,
		ReminderHour:   DefaultReminderHour,
		ReminderMinute: DefaultReminderMinute,
	}
}

// ReminderTime formats the reminder as HH:MM.
func (p UserPreferences) ReminderTime() string {
	return FormatClock(p.ReminderHour, p.ReminderMinute)
}

// PreferencesUpdate is a partial update; nil fields are left unchanged.
type PreferencesUpdate struct {
	TargetWeightKg  *float64
	HeightCm        *float64
	Unit            *Unit
	ReminderEnabled *bool
	ReminderHour    *int
	ReminderMinute  *int
}

// Apply returns p with the non-nil fields of u applied.
func (u PreferencesUpdate) Apply(p UserPreferences) UserPreferences {
	if u.TargetWeightKg != nil {
		p.TargetWeightKg = *u.TargetWeightKg
	}
	if u.HeightCm != nil {
		p.HeightCm = *u.HeightCm
	}
	if u.Unit != nil {
		p.Unit = *u.Unit
	}
	if u.ReminderEnabled != nil {
		p.ReminderEnabled = *u.ReminderEnabled
	}
	if u.ReminderHour != nil {
		p.ReminderHour = *u.ReminderHour
	}
	if u.ReminderMinute != nil {
		p.ReminderMinute = *u.ReminderMinute
	}
	return p
}

// PreferencesRepository is the port for preference persistence.
type PreferencesRepository interface {
	// GetPreferences returns nil when the user has never saved preferences.
	GetPreferences(ctx context.Context, userID int64) (*UserPreferences, error)
	SavePreferences(ctx context.Context, p UserPreferences) error
	// ListReminders returns the preferences of every user with reminders enabled.
	ListReminders(ctx context.Context) ([]UserPreferences, error)
}

// ParseClock parses an HH:MM time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: reminder time %q must be HH:MM", ErrInvalidPreferences, s)
	}
	return t.Hour(), t.Minute(), nil
}

// FormatClock renders hour and minute as HH:MM.
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
