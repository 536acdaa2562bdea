package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Sector mesh vertex layout: x, y, z, intensity.
const (
	FloatsPerVertex = 4
	VerticesPerRing = 6
	FloatsPerRing   = FloatsPerVertex * VerticesPerRing
	DefaultRadius   = 1.0
)

// SectorVertexCount returns how many vertices a sector with cells rings has
func SectorVertexCount(cells int) int {
	return cells * VerticesPerRing
}

// BuildSector appends the triangulated wedge [startAngle, endAngle] to dst
// and returns the extended slice.
//
// The radius is split into len(cells) rings of equal width starting at the
// origin. Each ring becomes two triangles whose six vertices all carry that
// ring's intensity. Vertex order per ring is
//
//	(r1,start) (r2,start) (r1,end)   (r1,end) (r2,start) (r2,end)
//
// and no winding is enforced, so face culling must stay disabled.
func BuildSector(dst []float32, startAngle, endAngle float64, cells []float32, radius float64) []float32 {
	n := len(cells)
	if n == 0 {
		return dst
	}
	step := radius / float64(n)

	cosStart, sinStart := math.Cos(startAngle), math.Sin(startAngle)
	cosEnd, sinEnd := math.Cos(endAngle), math.Sin(endAngle)
	corner := func(r, c, s float64, intensity float32) mgl32.Vec4 {
		return mgl32.Vec4{float32(r * c), float32(r * s), 0, intensity}
	}

	for i := 0; i < n; i++ {
		r1 := float64(i) * step
		r2 := float64(i+1) * step
		intensity := cells[i]

		innerStart := corner(r1, cosStart, sinStart, intensity)
		outerStart := corner(r2, cosStart, sinStart, intensity)
		innerEnd := corner(r1, cosEnd, sinEnd, intensity)
		outerEnd := corner(r2, cosEnd, sinEnd, intensity)

		// First triangle
		dst = appendVertex(dst, innerStart)
		dst = appendVertex(dst, outerStart)
		dst = appendVertex(dst, innerEnd)

		// Second triangle
		dst = appendVertex(dst, innerEnd)
		dst = appendVertex(dst, outerStart)
		dst = appendVertex(dst, outerEnd)
	}
	return dst
}

func appendVertex(dst []float32, v mgl32.Vec4) []float32 {
	return append(dst, v[0], v[1], v[2], v[3])
}
