package gpu

import "fmt"

// Program is a linked shader program handle
type Program uint32

// Fence marks a point in the command stream the host can wait on
type Fence uintptr

// Primitive selects how DrawArrays assembles vertices
type Primitive int

const (
	Points Primitive = iota
	Lines
	Triangles
)

func (p Primitive) String() string {
	switch p {
	case Points:
		return "points"
	case Lines:
		return "lines"
	case Triangles:
		return "triangles"
	}
	return fmt.Sprintf("primitive(%d)", int(p))
}

// BufferUsage hints how often vertex data changes
type BufferUsage int

const (
	StaticDraw BufferUsage = iota
	DynamicDraw
	StreamDraw
)

// FenceStatus is the outcome of waiting on a fence
type FenceStatus int

const (
	FenceSignaled FenceStatus = iota
	FenceTimeout
	FenceFailed
)

func (s FenceStatus) String() string {
	switch s {
	case FenceSignaled:
		return "signaled"
	case FenceTimeout:
		return "timeout"
	case FenceFailed:
		return "failed"
	}
	return fmt.Sprintf("fence(%d)", int(s))
}

// VertexAttrib describes one float attribute inside a vertex
type VertexAttrib struct {
	Location   uint32
	Components int32
	Offset     int // bytes from the start of the vertex
}

// VertexLayout describes interleaved float vertices
type VertexLayout struct {
	Stride  int // bytes per vertex
	Attribs []VertexAttrib
}

var (
	// PointLayout is one intensity float per vertex; the vertex shader
	// derives position from gl_VertexID
	PointLayout = VertexLayout{
		Stride:  4,
		Attribs: []VertexAttrib{{Location: 0, Components: 1, Offset: 0}},
	}

	// SectorLayout is position xyz followed by intensity
	SectorLayout = VertexLayout{
		Stride: 16,
		Attribs: []VertexAttrib{
			{Location: 0, Components: 3, Offset: 0},
			{Location: 1, Components: 1, Offset: 12},
		},
	}

	// LineLayout is a 2D position followed by an RGBA color
	LineLayout = VertexLayout{
		Stride: 24,
		Attribs: []VertexAttrib{
			{Location: 0, Components: 2, Offset: 0},
			{Location: 1, Components: 4, Offset: 8},
		},
	}
)

// VertexBuffer pairs a vertex array with its backing buffer
type VertexBuffer struct {
	VAO    uint32
	VBO    uint32
	Size   int // bytes
	Layout VertexLayout
}

// RenderTarget is an offscreen framebuffer with one color attachment
type RenderTarget struct {
	FBO     uint32
	Texture uint32
	Width   int
	Height  int
}

// ReadbackBuffer is a host-visible buffer pixels are packed into
type ReadbackBuffer struct {
	ID   uint32
	Size int
}

// BytesPerPixel of the BGRA8 readback format
const BytesPerPixel = 4

// FrameSize returns the byte size of a BGRA8 frame
func FrameSize(width, height int) int {
	return width * height * BytesPerPixel
}
