package rendering

import (
	"radarsweep/core"
	"radarsweep/gpu"
)

// QuadRenderer draws sector meshes as a non-indexed triangle list
type QuadRenderer struct {
	dev     gpu.Device
	program gpu.Program
	vb      gpu.VertexBuffer

	// ringSlots is the slot count the buffer was last sized for by RenderRing
	ringSlots int
}

// NewQuadRenderer compiles the quad program and creates an empty buffer
func NewQuadRenderer(dev gpu.Device, vertexSrc, fragmentSrc string) (*QuadRenderer, error) {
	program, err := dev.CompileProgram("quad", vertexSrc, fragmentSrc)
	if err != nil {
		return nil, core.NewInitError("compile quad program", err)
	}
	vb, err := dev.CreateVertexBuffer(0, gpu.SectorLayout, gpu.DynamicDraw)
	if err != nil {
		dev.DeleteProgram(program)
		return nil, core.NewInitError("create quad buffer", err)
	}
	return &QuadRenderer{dev: dev, program: program, vb: vb}, nil
}

// Render replaces the GPU buffer with the whole accumulation and draws it
func (qr *QuadRenderer) Render(rt gpu.RenderTarget, vertices []float32) error {
	qr.dev.ReplaceVertexBuffer(&qr.vb, vertices)
	qr.ringSlots = 0
	if err := qr.dev.CheckErrors("quad upload"); err != nil {
		return err
	}
	return qr.draw(rt, len(vertices)/core.FloatsPerVertex)
}

// RenderRing uploads the ring's dirty slots and draws the full ring. The
// first call, or a call with a differently sized ring, uploads everything.
// A failed upload leaves the whole ring dirty so the next call resends it.
func (qr *QuadRenderer) RenderRing(rt gpu.RenderTarget, ring *core.SectorRing) error {
	if qr.ringSlots != ring.Slots() || qr.vb.Size != len(ring.Vertices())*4 {
		qr.dev.ReplaceVertexBuffer(&qr.vb, ring.Vertices())
		qr.ringSlots = ring.Slots()
	} else {
		for _, sr := range ring.DirtyRanges() {
			qr.dev.UpdateVertexBuffer(&qr.vb, ring.FloatOffset(sr.Start)*4, ring.Floats(sr))
		}
	}
	ring.ClearDirty()
	if err := qr.dev.CheckErrors("quad ring upload"); err != nil {
		ring.MarkAllDirty()
		return err
	}
	return qr.draw(rt, ring.VertexCount())
}

func (qr *QuadRenderer) draw(rt gpu.RenderTarget, count int) error {
	qr.dev.BindRenderTarget(rt)
	qr.dev.Clear(Background)
	qr.dev.UseProgram(qr.program)
	qr.dev.DrawArrays(qr.vb, gpu.Triangles, 0, count)
	return qr.dev.CheckErrors("quad render")
}

// Close releases the program and buffer
func (qr *QuadRenderer) Close() {
	qr.dev.DeleteVertexBuffer(qr.vb)
	qr.dev.DeleteProgram(qr.program)
}
