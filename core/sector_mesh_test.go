package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestBuildSectorSingleCell(t *testing.T) {
	start, end := 0.3, 0.5
	v := BuildSector(nil, start, end, []float32{0.5}, DefaultRadius)

	if got := len(v) / FloatsPerVertex; got != 6 {
		t.Fatalf("vertex count = %d, want 6", got)
	}

	cs, ss := float32(math.Cos(start)), float32(math.Sin(start))
	ce, se := float32(math.Cos(end)), float32(math.Sin(end))
	want := []mgl32.Vec4{
		{0, 0, 0, 0.5},   // inner ring radius 0 is the origin
		{cs, ss, 0, 0.5}, // outer ring radius 1 at start
		{0, 0, 0, 0.5},
		{0, 0, 0, 0.5},
		{cs, ss, 0, 0.5},
		{ce, se, 0, 0.5},
	}
	for i, w := range want {
		if got := vertexAt(v, i); !got.ApproxEqualThreshold(w, 1e-6) {
			t.Errorf("vertex %d = %v, want %v", i, got, w)
		}
	}
}

func TestBuildSectorRings(t *testing.T) {
	cells := []float32{0.1, 0.2, 0.3, 0.4}
	start, end := 1.0, 1.2
	radius := 2.0
	v := BuildSector(nil, start, end, cells, radius)

	if got, want := len(v), len(cells)*FloatsPerRing; got != want {
		t.Fatalf("float count = %d, want %d", got, want)
	}

	step := radius / float64(len(cells))
	for ring, intensity := range cells {
		r1 := float64(ring) * step
		r2 := float64(ring+1) * step
		base := ring * VerticesPerRing
		corners := []struct {
			r, a float64
		}{
			{r1, start}, {r2, start}, {r1, end},
			{r1, end}, {r2, start}, {r2, end},
		}
		for k, c := range corners {
			got := vertexAt(v, base+k)
			want := mgl32.Vec4{
				float32(c.r * math.Cos(c.a)),
				float32(c.r * math.Sin(c.a)),
				0,
				intensity,
			}
			if !got.ApproxEqualThreshold(want, 1e-5) {
				t.Errorf("ring %d vertex %d = %v, want %v", ring, k, got, want)
			}
		}
	}
}

func TestBuildSectorAppends(t *testing.T) {
	first := BuildSector(nil, 0, 0.1, []float32{1}, 1)
	prefix := append([]float32(nil), first...)
	both := BuildSector(first, 0.1, 0.2, []float32{0.5, 0.25}, 1)

	if got, want := len(both), len(prefix)+2*FloatsPerRing; got != want {
		t.Fatalf("len = %d, want %d", got, want)
	}
	for i := range prefix {
		if both[i] != prefix[i] {
			t.Fatalf("prior content changed at %d", i)
		}
	}
}

func TestBuildSectorEmpty(t *testing.T) {
	if v := BuildSector(nil, 0, 1, nil, 1); len(v) != 0 {
		t.Errorf("empty line produced %d floats", len(v))
	}
}

func TestSectorVertexCount(t *testing.T) {
	if got := SectorVertexCount(1024); got != 6144 {
		t.Errorf("SectorVertexCount(1024) = %d", got)
	}
}

func vertexAt(vertices []float32, i int) mgl32.Vec4 {
	o := i * FloatsPerVertex
	return mgl32.Vec4{vertices[o], vertices[o+1], vertices[o+2], vertices[o+3]}
}
