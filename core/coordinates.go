package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// TwoPi is one full sweep in radians.
const TwoPi = 2 * math.Pi

// Polar represents a position on the radar plane in polar coordinates
type Polar struct {
	Azimuth float64 // Bearing in radians, periodic with period 2π
	Range   float64 // Distance from the radar origin, in display units
}

// NormalizeAzimuth wraps an azimuth into [0, 2π).
// Negative inputs wrap from the top of the circle. NaN and ±Inf are
// returned unchanged so callers can reject them.
func NormalizeAzimuth(azimuth float64) float64 {
	if math.IsNaN(azimuth) || math.IsInf(azimuth, 0) {
		return azimuth
	}
	a := math.Mod(azimuth, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	// a tiny negative remainder can round up to exactly 2π
	if a >= TwoPi {
		a = 0
	}
	return a
}

// AzimuthIndex returns the bucket for an azimuth on a circle divided into
// count equal buckets: floor(azimuth/2π * count) mod count.
// The result is -1 when the azimuth is not a finite number.
func AzimuthIndex(azimuth float64, count int) int {
	a := NormalizeAzimuth(azimuth)
	if math.IsNaN(a) || math.IsInf(a, 0) || count <= 0 {
		return -1
	}
	index := int(math.Floor(a/TwoPi*float64(count))) % count
	if index < 0 {
		index += count
	}
	return index
}

// PolarToCartesian converts a polar position to plane coordinates
func PolarToCartesian(p Polar) mgl32.Vec2 {
	return mgl32.Vec2{
		float32(p.Range * math.Cos(p.Azimuth)),
		float32(p.Range * math.Sin(p.Azimuth)),
	}
}
