package rendering

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"radarsweep/core"
	"radarsweep/gpu"
)

const overlayVertexShader = `
#version 450 core

layout (location = 0) in vec2 position;
layout (location = 1) in vec4 color;

out vec4 fragColor;

uniform mat4 projection;

void main() {
    gl_Position = projection * vec4(position, 0.0, 1.0);
    fragColor = color;
}
`

const overlayFragmentShader = `
#version 450 core

in vec4 fragColor;
out vec4 outColor;

void main() {
    outColor = fragColor;
}
`

// SweepColor is the color of the sweep head, fading toward the rim
var SweepColor = mgl32.Vec4{0.2, 1.0, 0.2, 0.9}

// Overlay draws the sweep head: a line from the origin to the rim at the
// azimuth of the latest radar line, on top of whatever was rendered.
type Overlay struct {
	dev        gpu.Device
	program    gpu.Program
	vb         gpu.VertexBuffer
	projection mgl32.Mat4
	vertices   []float32
}

// NewOverlay compiles the overlay program and allocates its two-vertex buffer
func NewOverlay(dev gpu.Device) (*Overlay, error) {
	program, err := dev.CompileProgram("overlay", overlayVertexShader, overlayFragmentShader)
	if err != nil {
		return nil, core.NewInitError("compile overlay program", err)
	}
	vb, err := dev.CreateVertexBuffer(2*gpu.LineLayout.Stride, gpu.LineLayout, gpu.StreamDraw)
	if err != nil {
		dev.DeleteProgram(program)
		return nil, core.NewInitError("create overlay buffer", err)
	}
	return &Overlay{
		dev:     dev,
		program: program,
		vb:      vb,
		// radar geometry spans the unit disc
		projection: mgl32.Ortho2D(-1, 1, -1, 1),
		vertices:   make([]float32, 0, 12),
	}, nil
}

// Draw adds the sweep head at angle to rt without clearing it
func (o *Overlay) Draw(rt gpu.RenderTarget, angle float64) error {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return nil
	}
	tip := core.PolarToCartesian(core.Polar{Azimuth: angle, Range: core.DefaultRadius})
	rim := SweepColor
	rim[3] *= 0.25

	o.vertices = o.vertices[:0]
	o.vertices = append(o.vertices, 0, 0, SweepColor[0], SweepColor[1], SweepColor[2], SweepColor[3])
	o.vertices = append(o.vertices, tip[0], tip[1], rim[0], rim[1], rim[2], rim[3])

	o.dev.BindRenderTarget(rt)
	o.dev.UseProgram(o.program)
	o.dev.UniformMatrix4(o.program, "projection", o.projection)
	o.dev.UpdateVertexBuffer(&o.vb, 0, o.vertices)
	o.dev.DrawArrays(o.vb, gpu.Lines, 0, 2)
	return o.dev.CheckErrors("overlay")
}

// Close releases the program and buffer
func (o *Overlay) Close() {
	o.dev.DeleteVertexBuffer(o.vb)
	o.dev.DeleteProgram(o.program)
}
