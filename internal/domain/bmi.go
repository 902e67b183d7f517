package domain

// BMICategory buckets a body-mass index.
type BMICategory string

const (
	BMIEmpty       BMICategory = ""
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObese       BMICategory = "obese"
)

// BMI returns weightKg / (heightCm/100)^2, or 0 when the height is unknown.
func BMI(weightKg, heightCm float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return weightKg / (m * m)
}

// CategorizeBMI maps a BMI onto its bucket. Each bucket includes its lower
// bound, so 18.5 is normal.
func CategorizeBMI(bmi float64) BMICategory {
	switch {
	case bmi <= 0:
		return BMIEmpty
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 24:
		return BMINormal
	case bmi < 28:
		return BMIOverweight
	default:
		return BMIObese
	}
}
