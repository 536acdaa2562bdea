package core

import "math"

// DegenerateEpsilon is the angular width below which a line counts as
// zero-width and is rendered as points.
const DegenerateEpsilon = 1e-4

// RadarMessage is one angular line of return intensities.
// Intensity[0] is the cell closest to the origin.
type RadarMessage struct {
	StartAzimuth float64
	EndAzimuth   float64
	Intensity    []float32
}

// Angle returns the bearing at the middle of the line
func (m RadarMessage) Angle() float64 {
	return (m.StartAzimuth + m.EndAzimuth) / 2.0
}

// Span returns the angular width of the line
func (m RadarMessage) Span() float64 {
	return math.Abs(m.StartAzimuth - m.EndAzimuth)
}

// IsDegenerate reports whether the line has (numerically) zero width
func (m RadarMessage) IsDegenerate() bool {
	return m.Span() < DegenerateEpsilon
}

// Quantize maps an intensity in [0,1] to a byte, rounding to nearest
func Quantize(f float32) byte {
	v := math.Round(float64(f) * 255.0)
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// Dequantize maps a byte back to an intensity in [0,1]
func Dequantize(b byte) float32 {
	return float32(b) / 255.0
}

// QuantizeLine converts a line's intensities to bytes, reusing dst when it
// has enough capacity.
func QuantizeLine(dst []byte, intensity []float32) []byte {
	if cap(dst) < len(intensity) {
		dst = make([]byte, len(intensity))
	}
	dst = dst[:len(intensity)]
	for i, f := range intensity {
		dst[i] = Quantize(f)
	}
	return dst
}
