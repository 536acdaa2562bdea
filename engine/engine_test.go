package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"radarsweep/config"
	"radarsweep/core"
	"radarsweep/gpu"
	"radarsweep/gpu/gputest"
)

func testSettings() config.Settings {
	return config.Settings{
		Width:         16,
		Height:        16,
		AngleStep:     math.Pi / 180,
		LinesPerSweep: 360,
		CellsPerLine:  8,
		LineMode:      string(core.SectorLines),
		QuadHistory:   string(core.HistoryRevolution),
		ShaderDir:     "../shaders",
		Readback:      true,
		ReadbackEvery: 1,
		LogLevel:      "info",
	}
}

func newTestEngine(t *testing.T, cfg config.Settings, opts ...Option) (*Engine, *gputest.Device, *gputest.Surface) {
	t.Helper()
	dev := gputest.NewDevice()
	surface := &gputest.Surface{}
	e, err := New(cfg, dev, surface, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e, dev, surface
}

func pointDraws(dev *gputest.Device) []gputest.Call {
	var draws []gputest.Call
	for _, c := range dev.Calls {
		if c.Op == "DrawArrays" && c.Args[1] == gpu.Points {
			draws = append(draws, c)
		}
	}
	return draws
}

// TestZeroWidthSweep runs one revolution of zero-width lines at 1° steps:
// every line is drawn as points, each on its own line buffer row.
func TestZeroWidthSweep(t *testing.T) {
	cfg := testSettings()
	cfg.LineMode = string(core.PointLines)
	e, dev, surface := newTestEngine(t, cfg)

	if err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	draws := pointDraws(dev)
	if len(draws) != 360 {
		t.Fatalf("point draws = %d, want 360", len(draws))
	}
	rows := make(map[int]bool)
	for _, d := range draws {
		first := d.Args[2].(int)
		if first%core.MaxCells != 0 {
			t.Fatalf("draw starts mid-row at vertex %d", first)
		}
		if d.Args[3] != cfg.CellsPerLine {
			t.Fatalf("draw count = %v, want %d", d.Args[3], cfg.CellsPerLine)
		}
		rows[first/core.MaxCells] = true
	}
	if len(rows) != 360 {
		t.Errorf("distinct rows = %d, want 360", len(rows))
	}
	if dev.Count("ReplaceVertexBuffer") != 0 {
		t.Error("point lines reached the quad renderer")
	}
	if surface.Presented != 360 {
		t.Errorf("presented %d frames, want 360", surface.Presented)
	}

	st := e.Stats()
	if st.PointDraws != 360 || st.QuadDraws != 0 || st.Sweeps != 1 || st.Lines != 360 {
		t.Errorf("stats = %+v", st)
	}
	if st.LastRow != core.RowForAngle(359*cfg.AngleStep) {
		t.Errorf("last row = %d", st.LastRow)
	}
}

func TestProcessDispatchesByWidth(t *testing.T) {
	cfg := testSettings()
	cfg.Readback = false
	cfg.Overlay = true
	e, dev, _ := newTestEngine(t, cfg)

	tests := []struct {
		name  string
		msg   core.RadarMessage
		point bool
	}{
		{"zero width", core.RadarMessage{StartAzimuth: 1, EndAzimuth: 1, Intensity: []float32{1}}, true},
		{"below epsilon", core.RadarMessage{StartAzimuth: 1, EndAzimuth: 1 + 5e-5, Intensity: []float32{1}}, true},
		{"one degree", core.RadarMessage{StartAzimuth: 1, EndAzimuth: 1 + math.Pi/180, Intensity: []float32{1}}, false},
		{"reversed span", core.RadarMessage{StartAzimuth: 2, EndAzimuth: 1.9, Intensity: []float32{1}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dev.Reset()
			if err := e.Process(tc.msg); err != nil {
				t.Fatalf("Process: %v", err)
			}
			draw, ok := dev.Last("DrawArrays")
			if !ok || draw.Args[1] != gpu.Lines {
				t.Fatalf("last draw = %v, want the sweep head", draw)
			}
			var radar gputest.Call
			for _, c := range dev.Calls {
				if c.Op == "DrawArrays" && c.Args[1] != gpu.Lines {
					radar = c
				}
			}
			if got := radar.Args[1] == gpu.Points; got != tc.point {
				t.Errorf("drawn as %v", radar.Args[1])
			}
		})
	}
}

func TestQuadHistoryPolicies(t *testing.T) {
	t.Run("Unbounded grows", func(t *testing.T) {
		cfg := testSettings()
		cfg.QuadHistory = string(core.HistoryUnbounded)
		cfg.Readback = false
		cfg.LinesPerSweep = 3
		e, dev, _ := newTestEngine(t, cfg)

		if err := e.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		draw, _ := dev.Last("DrawArrays")
		if want := 3 * cfg.CellsPerLine * core.VerticesPerRing; draw.Args[3] != want {
			t.Errorf("draw count = %v, want %d", draw.Args[3], want)
		}
		if dev.Count("ReplaceVertexBuffer") != 3 {
			t.Errorf("full uploads = %d, want 3", dev.Count("ReplaceVertexBuffer"))
		}
	})

	t.Run("Revolution stays bounded", func(t *testing.T) {
		cfg := testSettings()
		cfg.Readback = false
		cfg.Overlay = false
		e, dev, _ := newTestEngine(t, cfg)

		for i := 0; i < 2; i++ {
			if err := e.Sweep(context.Background()); err != nil {
				t.Fatalf("Sweep %d: %v", i, err)
			}
		}
		want := 360 * cfg.CellsPerLine * core.VerticesPerRing
		draw, _ := dev.Last("DrawArrays")
		if draw.Args[3] != want {
			t.Errorf("draw count = %v, want fixed %d", draw.Args[3], want)
		}
		if dev.Count("ReplaceVertexBuffer") != 1 {
			t.Errorf("full uploads = %d, want only the first", dev.Count("ReplaceVertexBuffer"))
		}
		if e.Stats().QuadDraws != 720 {
			t.Errorf("quad draws = %d", e.Stats().QuadDraws)
		}
	})
}

func TestReadbackPublishesPreviousFrame(t *testing.T) {
	cfg := testSettings()
	cfg.LinesPerSweep = 4
	var frames []Frame
	sink := FrameSinkFunc(func(f Frame) {
		f.Pixels = append([]byte(nil), f.Pixels...)
		frames = append(frames, f)
	})
	e, _, _ := newTestEngine(t, cfg, WithSink(sink))

	if err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("published %d frames for 4 lines, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Seq != uint64(i+1) {
			t.Errorf("frame %d seq = %d", i, f.Seq)
		}
		if len(f.Pixels) != cfg.Width*cfg.Height*4 || f.Width != cfg.Width || f.Height != cfg.Height {
			t.Errorf("frame %d is %dx%d with %d bytes", i, f.Width, f.Height, len(f.Pixels))
		}
	}
	if st := e.Stats(); st.Readbacks != 3 || st.Published != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestReadbackEvery(t *testing.T) {
	cfg := testSettings()
	cfg.LinesPerSweep = 10
	cfg.ReadbackEvery = 5
	e, dev, _ := newTestEngine(t, cfg)

	if err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n := dev.Count("ReadPixelsAsync"); n != 2 {
		t.Errorf("copies queued = %d, want 2", n)
	}
}

func TestOversizedLineIsSkipped(t *testing.T) {
	cfg := testSettings()
	e, _, surface := newTestEngine(t, cfg)

	msg := core.RadarMessage{StartAzimuth: 0, EndAzimuth: 0.1, Intensity: make([]float32, cfg.CellsPerLine+1)}
	err := e.Process(msg)
	if !errors.Is(err, core.ErrTooManyCells) || core.IsFatal(err) {
		t.Fatalf("err = %v, want ErrTooManyCells warning", err)
	}
	if surface.Presented != 0 {
		t.Error("skipped line was presented")
	}

	ok := core.RadarMessage{StartAzimuth: 0, EndAzimuth: 0.1, Intensity: make([]float32, cfg.CellsPerLine)}
	if err := e.Process(ok); err != nil {
		t.Fatalf("engine unusable after warning: %v", err)
	}
	if st := e.Stats(); st.Warnings != 1 || st.Lines != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRunStopsWhenSurfaceCloses(t *testing.T) {
	cfg := testSettings()
	cfg.LinesPerSweep = 3
	dev := gputest.NewDevice()
	surface := &gputest.Surface{CloseAfter: 7}
	e, err := New(cfg, dev, surface)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if surface.Presented != 7 {
		t.Errorf("presented %d, want 7", surface.Presented)
	}
	if e.Stats().Sweeps != 2 {
		t.Errorf("sweeps = %d, want 2 complete", e.Stats().Sweeps)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e, _, surface := newTestEngine(t, testSettings())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if surface.Presented != 0 {
		t.Errorf("presented %d frames after cancel", surface.Presented)
	}
}

func TestNewFailures(t *testing.T) {
	t.Run("Shader dir unset", func(t *testing.T) {
		cfg := testSettings()
		cfg.ShaderDir = ""
		dev := gputest.NewDevice()
		_, err := New(cfg, dev, &gputest.Surface{})
		if !errors.Is(err, core.ErrShaderDirUnset) || !core.IsFatal(err) {
			t.Fatalf("err = %v", err)
		}
		if len(dev.Calls) != 0 {
			t.Errorf("device used before shaders were found: %v", dev.Ops())
		}
	})

	t.Run("Invalid size", func(t *testing.T) {
		cfg := testSettings()
		cfg.Height = 0
		if _, err := New(cfg, gputest.NewDevice(), &gputest.Surface{}); !errors.Is(err, core.ErrInvalidSize) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("Angle step too fine", func(t *testing.T) {
		cfg := testSettings()
		cfg.AngleStep = 1e-12
		cfg.CellsPerLine = 1
		dev := gputest.NewDevice()
		_, err := New(cfg, dev, &gputest.Surface{})
		if !errors.Is(err, core.ErrTooManySlots) || !core.IsFatal(err) {
			t.Fatalf("err = %v", err)
		}
		if len(dev.Calls) != 0 {
			t.Errorf("device used before config was checked: %v", dev.Ops())
		}
	})

	t.Run("Incomplete render target", func(t *testing.T) {
		dev := gputest.NewDevice()
		dev.IncompleteTarget = true
		_, err := New(testSettings(), dev, &gputest.Surface{})
		var ie *core.InitError
		if !errors.As(err, &ie) || !errors.Is(err, core.ErrIncompleteFrame) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("Compile failure releases in reverse", func(t *testing.T) {
		dev := gputest.NewDevice()
		dev.CompileErr["quad"] = errors.New("0:1: syntax error")
		_, err := New(testSettings(), dev, &gputest.Surface{})
		var ie *core.InitError
		if !errors.As(err, &ie) {
			t.Fatalf("err = %v, want InitError", err)
		}
		if len(dev.Deleted) != 3 {
			t.Fatalf("deleted = %v", dev.Deleted)
		}
		if !strings.HasPrefix(dev.Deleted[0], "vertex buffer") || !strings.HasPrefix(dev.Deleted[2], "render target") {
			t.Errorf("release order = %v", dev.Deleted)
		}
	})
}

// TestReadyLogReportsGenerator checks the startup log describes the line
// source actually in use, not the configured one.
func TestReadyLogReportsGenerator(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	gen := core.NewGenerator(math.Pi/90, 5, core.PointLines, 1)
	newTestEngine(t, testSettings(), WithLogger(logger), WithGenerator(gen))

	out := buf.String()
	for _, want := range []string{"engine ready", "line_mode=" + string(core.PointLines), "cells=5", "angle_step=0.0349"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	dev := gputest.NewDevice()
	e, err := New(testSettings(), dev, &gputest.Surface{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		e.Process(core.RadarMessage{StartAzimuth: float64(i), EndAzimuth: float64(i) + 0.01, Intensity: []float32{1}})
	}
	e.Close()
	e.Close()

	if len(dev.Buffers) != 0 || len(dev.Targets) != 0 || len(dev.Readback) != 0 {
		t.Errorf("leaked: %d buffers, %d targets, %d readback", len(dev.Buffers), len(dev.Targets), len(dev.Readback))
	}
	if dev.LiveFences() != 0 {
		t.Errorf("%d fences leaked", dev.LiveFences())
	}
	if dev.Count("DeleteRenderTarget") != 1 {
		t.Error("second Close released again")
	}
}
