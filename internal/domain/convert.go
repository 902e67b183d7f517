package domain

import (
	"fmt"
	"strings"
)

// Unit is a display unit for weights. Weights are always stored in kilograms.
type Unit string

const (
	KG  Unit = "KG"
	JIN Unit = "JIN"
)

// Factor is the multiplier from kilograms to u. One kilogram is two jin.
func (u Unit) Factor() float64 {
	if u == JIN {
		return 2
	}
	return 1
}

// Label is the short suffix shown after a weight.
func (u Unit) Label() string {
	if u == JIN {
		return "斤"
	}
	return "kg"
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == KG || u == JIN
}

// ParseUnit accepts "KG" and "JIN" in any case.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToUpper(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
	return u, nil
}

// Convert converts a canonical kilogram value to unit.
func Convert(weightKg float64, unit Unit) float64 {
	return weightKg * unit.Factor()
}

// ToKg converts a value entered in unit back to kilograms.
func ToKg(value float64, unit Unit) float64 {
	return value / unit.Factor()
}

// FormatWeight renders v with one decimal and the unit label.
func FormatWeight(v float64, unit Unit) string {
	return fmt.Sprintf("%.1f %s", v, unit.Label())
}
