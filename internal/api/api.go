// Package api holds the JSON wire types shared by the HTTP server and client.
package api

import (
	"encoding/json"

	"weightlog/internal/app"
	"weightlog/internal/domain"
)

// Application result codes. Non-zero codes mirror the HTTP status.
const (
	CodeOK           = 0
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeInternal     = 500
)

// Envelope wraps every response body.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// AuthData is returned by register, login, refresh and the SSO callback.
type AuthData = app.AuthResult

// Settings is the full preference document.
type Settings struct {
	Height          float64 `json:"height"`
	TargetWeight    float64 `json:"targetWeight"`
	WeightUnit      string  `json:"weightUnit"`
	ReminderEnabled bool    `json:"reminderEnabled"`
	ReminderTime    string  `json:"reminderTime"`
}

// SettingsFrom converts stored preferences to their wire form.
func SettingsFrom(p domain.UserPreferences) Settings {
	return Settings{
		Height:          p.HeightCm,
		TargetWeight:    p.TargetWeightKg,
		WeightUnit:      string(p.Unit),
		ReminderEnabled: p.ReminderEnabled,
		ReminderTime:    p.ReminderTime(),
	}
}

// Preferences converts s back to stored preferences of userID.
func (s Settings) Preferences(userID int64) (domain.UserPreferences, error) {
	unit, err := domain.ParseUnit(s.WeightUnit)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	h, m, err := domain.ParseClock(s.ReminderTime)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	return domain.UserPreferences{
		UserID:          userID,
		HeightCm:        s.Height,
		TargetWeightKg:  s.TargetWeight,
		Unit:            unit,
		ReminderEnabled: s.ReminderEnabled,
		ReminderHour:    h,
		ReminderMinute:  m,
	}, nil
}

// SettingsUpdate is a partial settings document; absent fields are unchanged.
type SettingsUpdate struct {
	Height          *float64 `json:"height,omitempty"`
	TargetWeight    *float64 `json:"targetWeight,omitempty"`
	WeightUnit      *string  `json:"weightUnit,omitempty"`
	ReminderEnabled *bool    `json:"reminderEnabled,omitempty"`
	ReminderTime    *string  `json:"reminderTime,omitempty"`
}

// Preferences validates the string fields of u and converts it.
func (u SettingsUpdate) Preferences() (domain.PreferencesUpdate, error) {
	upd := domain.PreferencesUpdate{
		HeightCm:        u.Height,
		TargetWeightKg:  u.TargetWeight,
		ReminderEnabled: u.ReminderEnabled,
	}
	if u.WeightUnit != nil {
		unit, err := domain.ParseUnit(*u.WeightUnit)
		if err != nil {
			return upd, err
		}
		upd.Unit = &unit
	}
	if u.ReminderTime != nil {
		h, m, err := domain.ParseClock(*u.ReminderTime)
		if err != nil {
			return upd, err
		}
		upd.ReminderHour, upd.ReminderMinute = &h, &m
	}
	return upd, nil
}

// AddRecordRequest carries a weight in kilograms for a calendar day.
type AddRecordRequest struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// RecordsResponse is the body of a range query.
type RecordsResponse = app.Summary

// DayPoint is one entry of the daily chart series.
type DayPoint = app.DayPoint

// Health is the body of the health check.
type Health struct {
	OK bool `json:"ok"`
}
