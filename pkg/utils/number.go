package utils

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"
)

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Triangular samples a triangular distribution over [low, high] peaking at mode.
func Triangular(r *rand.Rand, low, high, mode float64) float64 {
	if high < low {
		low, high = high, low
	}
	if high == low {
		return low
	}
	mode = Clamp(mode, low, high)
	u := r.Float64()
	c := (mode - low) / (high - low)
	if u < c {
		return low + math.Sqrt(u*(high-low)*(mode-low))
	}
	return high - math.Sqrt((1-u)*(high-low)*(high-mode))
}

// Uniform samples uniformly over [low, high].
func Uniform(r *rand.Rand, low, high float64) float64 {
	if high < low {
		low, high = high, low
	}
	return low + r.Float64()*(high-low)
}
