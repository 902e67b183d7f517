package domain

import "errors"

var (
	// ErrNotFound indicates that the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidWeight indicates a missing, non-numeric or non-positive weight.
	ErrInvalidWeight = errors.New("weight must be > 0")
	// ErrInvalidUnit indicates an unknown weight unit.
	ErrInvalidUnit = errors.New("unit must be \"KG\" or \"JIN\"")
	// ErrInvalidDay indicates a malformed day key.
	ErrInvalidDay = errors.New("date must be YYYY-MM-DD")
	// ErrInvalidPreferences indicates an out-of-range preference value.
	ErrInvalidPreferences = errors.New("invalid preferences")
)
