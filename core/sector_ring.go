package core

import (
	"fmt"
	"math"
)

// MaxSlots caps the sectors a ring holds, matching the line buffer rows.
// At MaxCells per slot this bounds the ring at MaxSlots*SectorVertexCount(MaxCells)
// vertices.
const MaxSlots = MaxLines

// SectorRing keeps one revolution of sector meshes. Sectors are indexed by
// the azimuth of their centre, so a new sector replaces whatever the
// previous revolution left in the same bucket and the vertex count never
// grows past slots * cellsPerSlot rings.
//
// Every slot occupies the same number of floats. A sector with fewer cells
// than the slot capacity leaves the tail zeroed, which draws as degenerate
// triangles at the origin.
type SectorRing struct {
	slots        int
	cellsPerSlot int
	radius       float64

	vertices []float32
	scratch  []float32
	dirty    []bool
	occupied int
	filled   []bool
}

// SlotRange is a half-open range of slots [Start, End)
type SlotRange struct {
	Start, End int
}

// SlotsPerRevolution returns how many sectors of the given angular step
// fit in one revolution
func SlotsPerRevolution(angleStep float64) int {
	if angleStep <= 0 || math.IsNaN(angleStep) || math.IsInf(angleStep, 0) {
		return 0
	}
	return int(math.Ceil(TwoPi/angleStep - 1e-9))
}

// NewSectorRing creates a ring holding slots sectors of up to cellsPerSlot rings
func NewSectorRing(slots, cellsPerSlot int, radius float64) (*SectorRing, error) {
	if slots <= 0 || cellsPerSlot <= 0 {
		return nil, fmt.Errorf("sector ring needs positive slots and cells, got %d x %d", slots, cellsPerSlot)
	}
	if cellsPerSlot > MaxCells {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCells, cellsPerSlot, MaxCells)
	}
	if slots > MaxSlots {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySlots, slots, MaxSlots)
	}
	perSlot := SectorVertexCount(cellsPerSlot) * FloatsPerVertex
	return &SectorRing{
		slots:        slots,
		cellsPerSlot: cellsPerSlot,
		radius:       radius,
		vertices:     make([]float32, slots*perSlot),
		scratch:      make([]float32, 0, perSlot),
		dirty:        make([]bool, slots),
		filled:       make([]bool, slots),
	}, nil
}

// SlotForAngles returns the slot a sector spanning [start, end] lands in
func (r *SectorRing) SlotForAngles(start, end float64) int {
	return AzimuthIndex((start+end)/2.0, r.slots)
}

// Put builds the sector for one line into its slot and returns the slot
func (r *SectorRing) Put(start, end float64, cells []float32) (int, error) {
	slot := r.SlotForAngles(start, end)
	if slot < 0 {
		return slot, Warn("sector ring put", fmt.Errorf("%w: angles %v..%v", ErrRowOutOfRange, start, end))
	}
	if len(cells) > r.cellsPerSlot {
		return slot, Warn("sector ring put", fmt.Errorf("%w: %d > %d", ErrTooManyCells, len(cells), r.cellsPerSlot))
	}

	r.scratch = BuildSector(r.scratch[:0], start, end, cells, r.radius)
	dst := r.slotFloats(slot)
	n := copy(dst, r.scratch)
	clear(dst[n:])

	r.dirty[slot] = true
	if !r.filled[slot] {
		r.filled[slot] = true
		r.occupied++
	}
	return slot, nil
}

func (r *SectorRing) slotFloats(slot int) []float32 {
	size := r.cellsPerSlot * FloatsPerRing
	return r.vertices[slot*size : (slot+1)*size]
}

// DirtyRanges returns the modified slots since the last ClearDirty,
// merged into contiguous ranges in ascending order
func (r *SectorRing) DirtyRanges() []SlotRange {
	var ranges []SlotRange
	for i := 0; i < r.slots; i++ {
		if !r.dirty[i] {
			continue
		}
		if n := len(ranges); n > 0 && ranges[n-1].End == i {
			ranges[n-1].End = i + 1
			continue
		}
		ranges = append(ranges, SlotRange{Start: i, End: i + 1})
	}
	return ranges
}

// ClearDirty marks every slot as uploaded
func (r *SectorRing) ClearDirty() {
	clear(r.dirty)
}

// MarkAllDirty forces the next upload to cover the whole ring
func (r *SectorRing) MarkAllDirty() {
	for i := range r.dirty {
		r.dirty[i] = true
	}
}

// Floats returns the vertices of a slot range
func (r *SectorRing) Floats(sr SlotRange) []float32 {
	size := r.cellsPerSlot * FloatsPerRing
	return r.vertices[sr.Start*size : sr.End*size]
}

// FloatOffset returns the float index at which slot begins
func (r *SectorRing) FloatOffset(slot int) int {
	return slot * r.cellsPerSlot * FloatsPerRing
}

// Vertices returns the whole ring, flattened
func (r *SectorRing) Vertices() []float32 { return r.vertices }

// VertexCount is the number of vertices the ring always draws
func (r *SectorRing) VertexCount() int { return len(r.vertices) / FloatsPerVertex }

// Slots returns the slot capacity
func (r *SectorRing) Slots() int { return r.slots }

// CellsPerSlot returns the ring capacity of each slot
func (r *SectorRing) CellsPerSlot() int { return r.cellsPerSlot }

// Occupied returns how many slots have been written at least once
func (r *SectorRing) Occupied() int { return r.occupied }

// QuadHistory selects how sector meshes accumulate between frames
type QuadHistory string

const (
	// HistoryRevolution keeps one revolution in a SectorRing
	HistoryRevolution QuadHistory = "revolution"
	// HistoryUnbounded appends every sector forever and re-uploads it all
	HistoryUnbounded QuadHistory = "unbounded"
)

// ParseQuadHistory validates a history policy name
func ParseQuadHistory(s string) (QuadHistory, error) {
	switch h := QuadHistory(s); h {
	case HistoryRevolution, HistoryUnbounded:
		return h, nil
	}
	return "", fmt.Errorf("unknown quad history %q (want %q or %q)", s, HistoryRevolution, HistoryUnbounded)
}
