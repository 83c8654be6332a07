package grading

import "math"

// Round rounds v to places decimal digits, halves away from zero.
func Round(v float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Percent returns part/whole*100. ok is false when whole is not positive.
func Percent(part, whole float64) (float64, bool) {
	if whole <= 0 {
		return 0, false
	}
	return part / whole * 100, true
}

func floatPtr(v float64) *float64 {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
