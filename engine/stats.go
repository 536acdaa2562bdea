package engine

import (
	"sync"
	"time"
)

// Stats is a snapshot of the engine's counters
type Stats struct {
	Lines          uint64  `json:"lines"`
	PointDraws     uint64  `json:"point_draws"`
	QuadDraws      uint64  `json:"quad_draws"`
	Sweeps         uint64  `json:"sweeps"`
	Readbacks      uint64  `json:"readbacks"`
	ReadbackStalls int     `json:"readback_stalls"`
	Published      uint64  `json:"published"`
	Warnings       uint64  `json:"warnings"`
	LastRow        int     `json:"last_row"`
	LastAngle      float64 `json:"last_angle"`
	LinesPerSecond float64 `json:"lines_per_second"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// statsRecorder is written by the render goroutine and read by anyone
type statsRecorder struct {
	mu      sync.Mutex
	s       Stats
	started time.Time

	// rate window
	windowStart time.Time
	windowLines uint64
}

func newStatsRecorder(now time.Time) *statsRecorder {
	return &statsRecorder{started: now, windowStart: now, s: Stats{LastRow: -1}}
}

func (r *statsRecorder) update(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.s)
	r.mu.Unlock()
}

// line counts one processed line and refreshes the rate once a second
func (r *statsRecorder) line(now time.Time, angle float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Lines++
	r.s.LastAngle = angle
	r.windowLines++
	if elapsed := now.Sub(r.windowStart); elapsed >= time.Second {
		r.s.LinesPerSecond = float64(r.windowLines) / elapsed.Seconds()
		r.windowStart = now
		r.windowLines = 0
	}
}

func (r *statsRecorder) snapshot(now time.Time) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.s
	s.UptimeSeconds = now.Sub(r.started).Seconds()
	return s
}
