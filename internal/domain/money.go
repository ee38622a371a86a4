package domain

import "math"

// ToMinorUnits converts a major-unit price (19.99) to minor units (1999).
func ToMinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// FromMinorUnits converts minor units (1999) back to a major-unit price (19.99).
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}
