// Package engine runs the radar sweep: it dispatches each radar line to
// the point or quad renderer, presents the frame and feeds read-back
// frames to a sink.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"radarsweep/config"
	"radarsweep/core"
	"radarsweep/gpu"
	"radarsweep/rendering"
)

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger; nil keeps logging disabled
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSink sets where read-back frames are published
func WithSink(s FrameSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithGenerator replaces the configured synthetic line source
func WithGenerator(g *core.Generator) Option {
	return func(e *Engine) { e.gen = g }
}

// WithClock overrides time.Now for the statistics
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the render target, both renderers, the line buffer, the
// sector history and the readback pipeline. Every method except Stats must
// be called from the goroutine that owns the graphics context.
type Engine struct {
	cfg     config.Settings
	dev     gpu.Device
	surface gpu.Surface
	logger  *slog.Logger
	sink    FrameSink
	gen     *core.Generator
	now     func() time.Time

	history core.QuadHistory
	target  gpu.RenderTarget

	lines    *core.LineBuffer
	points   *rendering.PointRenderer
	quads    *rendering.QuadRenderer
	overlay  *rendering.Overlay
	readback *rendering.ReadbackPipeline

	ring  *core.SectorRing
	accum []float32

	quantized []byte
	frame     []byte
	frames    uint64
	seq       uint64

	stats   *statsRecorder
	release []func()
}

// New acquires every GPU resource the engine needs. Any failure is an
// InitError and releases whatever was acquired before it.
func New(cfg config.Settings, dev gpu.Device, surface gpu.Surface, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:     cfg,
		dev:     dev,
		surface: surface,
		logger:  newNopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stats = newStatsRecorder(e.now())

	if err := e.init(); err != nil {
		e.Close()
		return nil, err
	}
	e.logger.Info("engine ready",
		"width", cfg.Width, "height", cfg.Height,
		"line_mode", e.gen.Mode(), "angle_step", e.gen.AngleStep(), "cells", e.gen.Cells(),
		"quad_history", cfg.QuadHistory,
		"readback", cfg.Readback, "overlay", cfg.Overlay)
	return e, nil
}

func (e *Engine) init() error {
	cfg := e.cfg
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return core.NewInitError("engine", fmt.Errorf("%w: %dx%d", core.ErrInvalidSize, cfg.Width, cfg.Height))
	}
	if err := cfg.Validate(); err != nil {
		return core.NewInitError("engine config", err)
	}
	mode, _ := core.ParseLineMode(cfg.LineMode)
	e.history, _ = core.ParseQuadHistory(cfg.QuadHistory)

	shaders, err := rendering.LoadShaders(cfg.ShaderDir)
	if err != nil {
		return err
	}

	e.target, err = e.dev.CreateRenderTarget(cfg.Width, cfg.Height)
	if err != nil {
		return core.NewInitError("create render target", err)
	}
	target := e.target
	e.onClose(func() { e.dev.DeleteRenderTarget(target) })

	e.lines = core.NewLineBuffer()
	if e.points, err = rendering.NewPointRenderer(e.dev, shaders.PointVertex, shaders.PointFragment); err != nil {
		return err
	}
	e.onClose(e.points.Close)

	if e.quads, err = rendering.NewQuadRenderer(e.dev, shaders.QuadVertex, shaders.QuadFragment); err != nil {
		return err
	}
	e.onClose(e.quads.Close)

	if cfg.Overlay {
		if e.overlay, err = rendering.NewOverlay(e.dev); err != nil {
			return err
		}
		e.onClose(e.overlay.Close)
	}

	if cfg.Readback {
		if e.readback, err = rendering.NewReadbackPipeline(e.dev, cfg.Width, cfg.Height); err != nil {
			return err
		}
		e.onClose(e.readback.Close)
		e.frame = make([]byte, e.readback.FrameSize())
	}

	if e.history == core.HistoryRevolution {
		slots := core.SlotsPerRevolution(cfg.AngleStep)
		if e.ring, err = core.NewSectorRing(slots, cfg.CellsPerLine, core.DefaultRadius); err != nil {
			return core.NewInitError("create sector ring", err)
		}
	}

	if e.gen == nil {
		e.gen = core.NewGenerator(cfg.AngleStep, cfg.CellsPerLine, mode, cfg.Seed)
	}
	e.quantized = make([]byte, 0, core.MaxCells)
	return nil
}

// onClose pushes a release step; Close runs them in reverse
func (e *Engine) onClose(fn func()) {
	e.release = append(e.release, fn)
}

// Process renders one radar line and presents it. Zero-width lines go to
// the point renderer, all others to the quad renderer. A RuntimeWarning
// means the line was skipped; the engine stays usable.
func (e *Engine) Process(msg core.RadarMessage) error {
	var err error
	if msg.IsDegenerate() {
		err = e.drawPoints(msg)
	} else {
		err = e.drawQuads(msg)
	}
	if err != nil {
		return e.warn(err)
	}

	if e.overlay != nil {
		if err := e.overlay.Draw(e.target, msg.Angle()); err != nil {
			e.warn(err)
		}
	}
	e.surface.Present(e.target)
	e.stats.line(e.now(), msg.Angle())

	e.frames++
	if e.readback != nil && e.frames%uint64(e.cfg.ReadbackEvery) == 0 {
		if err := e.readFrame(); err != nil {
			return e.warn(err)
		}
	}
	return nil
}

func (e *Engine) drawPoints(msg core.RadarMessage) error {
	angle := msg.Angle()
	e.quantized = core.QuantizeLine(e.quantized, msg.Intensity)
	row, err := e.lines.Write(angle, e.quantized)
	if err != nil {
		return err
	}
	n := len(e.quantized)
	e.logger.Debug("point line", "angle", angle, "row", row, "cells", n)

	if err := e.points.Upload(e.lines, row, n); err != nil {
		return err
	}
	if err := e.points.Render(e.target, angle, n); err != nil {
		return err
	}
	e.stats.update(func(s *Stats) {
		s.PointDraws++
		s.LastRow = row
	})
	return nil
}

func (e *Engine) drawQuads(msg core.RadarMessage) error {
	e.logger.Debug("sector line", "start", msg.StartAzimuth, "end", msg.EndAzimuth, "cells", len(msg.Intensity))

	var err error
	switch e.history {
	case core.HistoryUnbounded:
		e.accum = core.BuildSector(e.accum, msg.StartAzimuth, msg.EndAzimuth, msg.Intensity, core.DefaultRadius)
		err = e.quads.Render(e.target, e.accum)
	default:
		if _, err = e.ring.Put(msg.StartAzimuth, msg.EndAzimuth, msg.Intensity); err != nil {
			return err
		}
		err = e.quads.RenderRing(e.target, e.ring)
	}
	if err != nil {
		return err
	}
	e.stats.update(func(s *Stats) { s.QuadDraws++ })
	return nil
}

func (e *Engine) readFrame() error {
	ok, err := e.readback.Readback(e.target, e.frame)
	stalls := e.readback.Stalls()
	e.stats.update(func(s *Stats) { s.ReadbackStalls = stalls })
	if err != nil || !ok {
		return err
	}

	e.seq++
	e.stats.update(func(s *Stats) { s.Readbacks++ })
	if e.sink != nil {
		e.sink.Publish(Frame{Seq: e.seq, Width: e.cfg.Width, Height: e.cfg.Height, Pixels: e.frame})
		e.stats.update(func(s *Stats) { s.Published++ })
	}
	return nil
}

// warn logs and counts non-fatal errors and returns err unchanged
func (e *Engine) warn(err error) error {
	if core.IsFatal(err) {
		return err
	}
	e.stats.update(func(s *Stats) { s.Warnings++ })
	e.logger.Warn("line skipped", "error", err)
	return err
}

// Sweep generates and processes one sweep of lines. It stops early, without
// error, when ctx is done or the surface wants to close.
func (e *Engine) Sweep(ctx context.Context) error {
	for i := 0; i < e.cfg.LinesPerSweep; i++ {
		if ctx.Err() != nil || e.surface.ShouldClose() {
			return nil
		}
		if err := e.Process(e.gen.Next(i)); core.IsFatal(err) {
			return err
		}
		e.surface.PollEvents()
	}
	e.stats.update(func(s *Stats) { s.Sweeps++ })
	return nil
}

// Run sweeps until ctx is cancelled or the surface is closed
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("render loop started")
	for {
		if err := e.Sweep(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil || e.surface.ShouldClose() {
			e.logger.Info("render loop stopped", "lines", e.Stats().Lines)
			return nil
		}
	}
}

// Stats returns a snapshot of the counters. Safe from any goroutine.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot(e.now())
}

// Target returns the offscreen render target frames are drawn into
func (e *Engine) Target() gpu.RenderTarget {
	return e.target
}

// Close releases GPU resources in reverse order of acquisition. It is safe
// to call more than once.
func (e *Engine) Close() {
	for i := len(e.release) - 1; i >= 0; i-- {
		e.release[i]()
	}
	e.release = nil
}
