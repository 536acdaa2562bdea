package rendering

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"radarsweep/core"
	"radarsweep/gpu"
)

// Background is the clear color of every frame
var Background = mgl32.Vec4{0, 0, 0, 1}

// PointRenderer draws one LineBuffer row as a point cloud. The GPU vertex
// buffer mirrors the whole LineBuffer, one intensity float per vertex; the
// point shader derives each point's position from the vertex index and the
// angle uniform.
type PointRenderer struct {
	dev     gpu.Device
	program gpu.Program
	vb      gpu.VertexBuffer
}

// NewPointRenderer compiles the point program and allocates the mirror buffer
func NewPointRenderer(dev gpu.Device, vertexSrc, fragmentSrc string) (*PointRenderer, error) {
	program, err := dev.CompileProgram("point", vertexSrc, fragmentSrc)
	if err != nil {
		return nil, core.NewInitError("compile point program", err)
	}
	vb, err := dev.CreateVertexBuffer(core.MaxLines*core.MaxCells*4, gpu.PointLayout, gpu.DynamicDraw)
	if err != nil {
		dev.DeleteProgram(program)
		return nil, core.NewInitError("create point buffer", err)
	}
	return &PointRenderer{dev: dev, program: program, vb: vb}, nil
}

// Upload copies the first n cells of a LineBuffer row into the GPU mirror
func (pr *PointRenderer) Upload(lb *core.LineBuffer, row, n int) error {
	if row < 0 || row >= core.MaxLines {
		return core.Warn("point upload", fmt.Errorf("%w: row %d", core.ErrRowOutOfRange, row))
	}
	if n < 0 || n > core.MaxCells {
		return core.Warn("point upload", fmt.Errorf("%w: %d", core.ErrTooManyCells, n))
	}
	if n == 0 {
		return nil
	}
	pr.dev.UpdateVertexBuffer(&pr.vb, core.RowOffset(row)*4, lb.Line(row)[:n])
	return pr.dev.CheckErrors("point upload")
}

// Render clears rt and draws nbrCells points of the row for angle
func (pr *PointRenderer) Render(rt gpu.RenderTarget, angle float64, nbrCells int) error {
	row := core.RowForAngle(angle)
	if row < 0 {
		return core.Warn("point render", fmt.Errorf("%w: angle %v", core.ErrRowOutOfRange, angle))
	}
	if nbrCells < 0 || nbrCells > core.MaxCells {
		return core.Warn("point render", fmt.Errorf("%w: %d", core.ErrTooManyCells, nbrCells))
	}

	pr.dev.BindRenderTarget(rt)
	pr.dev.Clear(Background)
	pr.dev.UseProgram(pr.program)
	pr.dev.Uniform1f(pr.program, "angle", float32(angle))
	pr.dev.Uniform1i(pr.program, "nbrCells", int32(nbrCells))
	pr.dev.DrawArrays(pr.vb, gpu.Points, core.RowOffset(row), nbrCells)
	return pr.dev.CheckErrors("point render")
}

// Close releases the program and buffer
func (pr *PointRenderer) Close() {
	pr.dev.DeleteVertexBuffer(pr.vb)
	pr.dev.DeleteProgram(pr.program)
}
