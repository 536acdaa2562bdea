package gpu

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Device is the slice of a core-profile graphics API the radar renderers
// need. It owns no policy: renderers decide what to upload and draw, the
// device only executes it. All methods must be called from the goroutine
// that owns the graphics context.
type Device interface {
	// CompileProgram builds a program from vertex and fragment source.
	// name is only used in error messages.
	CompileProgram(name, vertexSrc, fragmentSrc string) (Program, error)
	UseProgram(p Program)
	Uniform1f(p Program, name string, v float32)
	Uniform1i(p Program, name string, v int32)
	UniformMatrix4(p Program, name string, m mgl32.Mat4)
	DeleteProgram(p Program)

	// CreateVertexBuffer allocates size bytes of vertex storage described by layout
	CreateVertexBuffer(size int, layout VertexLayout, usage BufferUsage) (VertexBuffer, error)
	// UpdateVertexBuffer overwrites data at a byte offset without reallocating
	UpdateVertexBuffer(vb *VertexBuffer, offset int, data []float32)
	// ReplaceVertexBuffer reallocates the storage to hold exactly data
	ReplaceVertexBuffer(vb *VertexBuffer, data []float32)
	DeleteVertexBuffer(vb VertexBuffer)
	DrawArrays(vb VertexBuffer, mode Primitive, first, count int)

	// CreateRenderTarget allocates an offscreen RGBA8 color target
	CreateRenderTarget(width, height int) (RenderTarget, error)
	BindRenderTarget(rt RenderTarget)
	Clear(color mgl32.Vec4)
	DeleteRenderTarget(rt RenderTarget)

	// CreateReadbackBuffer allocates a host-visible pixel buffer that stays
	// mapped for its whole life
	CreateReadbackBuffer(size int) (ReadbackBuffer, error)
	// MappedBytes returns the persistent mapping, or nil if mapping failed
	MappedBytes(rb ReadbackBuffer) []byte
	// ReadPixelsAsync queues a BGRA8 copy of the target into rb and returns
	// without waiting for it
	ReadPixelsAsync(rt RenderTarget, rb ReadbackBuffer, width, height int)
	// DeleteReadbackBuffer unmaps rb before releasing it
	DeleteReadbackBuffer(rb ReadbackBuffer)

	// FenceSync inserts a fence after all commands issued so far
	FenceSync() Fence
	// WaitFence waits up to timeout for f. A zero timeout only polls.
	WaitFence(f Fence, timeout time.Duration) FenceStatus
	DeleteFence(f Fence)

	// CheckErrors drains pending API errors. A non-nil result is a
	// core.RuntimeWarning naming location.
	CheckErrors(location string) error
}

// Surface is the window the rendered target is shown in
type Surface interface {
	// Present copies rt to the visible framebuffer and swaps buffers
	Present(rt RenderTarget)
	PollEvents()
	ShouldClose() bool
	Destroy()
}
