package core

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// LineMode selects how the generator sizes a line's angular span
type LineMode string

const (
	// SectorLines advance by one full angle step per line and render as quads
	SectorLines LineMode = "sector"
	// PointLines have zero width and render as points
	PointLines LineMode = "point"
)

// ParseLineMode validates a line mode name
func ParseLineMode(s string) (LineMode, error) {
	switch LineMode(s) {
	case SectorLines, PointLines:
		return LineMode(s), nil
	}
	return "", fmt.Errorf("unknown line mode %q (want %q or %q)", s, SectorLines, PointLines)
}

// Generator produces synthetic radar lines. Each instance owns its random
// source, so independent generators never share state.
type Generator struct {
	rng       *rand.Rand
	angleStep float64
	cells     int
	mode      LineMode
}

// NewGenerator creates a generator. A zero seed picks one from the clock.
func NewGenerator(angleStep float64, cells int, mode LineMode, seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		angleStep: angleStep,
		cells:     cells,
		mode:      mode,
	}
}

// Next builds line i of a sweep. Intensities are uniform over the 256
// byte levels, scaled into [0,1].
func (g *Generator) Next(i int) RadarMessage {
	start := float64(i) * g.angleStep
	end := float64(i+1) * g.angleStep
	if g.mode == PointLines {
		end = start
	}

	intensity := make([]float32, g.cells)
	for j := range intensity {
		intensity[j] = float32(g.rng.IntN(256)) / 255.0
	}

	return RadarMessage{
		StartAzimuth: start,
		EndAzimuth:   end,
		Intensity:    intensity,
	}
}

// AngleStep returns the configured azimuth step
func (g *Generator) AngleStep() float64 { return g.angleStep }

// Cells returns the number of range cells per line
func (g *Generator) Cells() int { return g.cells }

// Mode returns the line mode
func (g *Generator) Mode() LineMode { return g.mode }
