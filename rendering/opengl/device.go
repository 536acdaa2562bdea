package opengl

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unsafe"

	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"radarsweep/core"
	"radarsweep/gpu"
)

// Device implements gpu.Device on an OpenGL 4.5 core context. The context
// must be current on the calling thread for every method.
type Device struct {
	logger   *slog.Logger
	uniforms map[gpu.Program]map[string]int32
	mapped   map[uint32][]byte
}

var _ gpu.Device = (*Device)(nil)

// NewDevice wraps the current context and sets the fixed pipeline state
// the radar programs rely on
func NewDevice(logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.Disable(gl.DEPTH_TEST)

	logger.Info("OpenGL device ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	return &Device{
		logger:   logger,
		uniforms: make(map[gpu.Program]map[string]int32),
		mapped:   make(map[uint32][]byte),
	}
}

func (d *Device) CompileProgram(name, vertexSrc, fragmentSrc string) (gpu.Program, error) {
	program, err := buildProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return 0, fmt.Errorf("failed to build %s program: %w", name, err)
	}
	d.logger.Debug("program linked", "name", name, "id", program)
	p := gpu.Program(program)
	d.uniforms[p] = make(map[string]int32)
	return p, nil
}

func (d *Device) UseProgram(p gpu.Program) {
	gl.UseProgram(uint32(p))
}

// location looks a uniform up once per program. A missing uniform (-1) is
// cached too and silently ignored by the Uniform calls.
func (d *Device) location(p gpu.Program, name string) int32 {
	cache := d.uniforms[p]
	if loc, ok := cache[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
	if loc == -1 {
		d.logger.Warn("uniform not found", "program", p, "uniform", name)
	}
	if cache != nil {
		cache[name] = loc
	}
	return loc
}

func (d *Device) Uniform1f(p gpu.Program, name string, v float32) {
	gl.Uniform1f(d.location(p, name), v)
}

func (d *Device) Uniform1i(p gpu.Program, name string, v int32) {
	gl.Uniform1i(d.location(p, name), v)
}

func (d *Device) UniformMatrix4(p gpu.Program, name string, m mgl32.Mat4) {
	gl.UniformMatrix4fv(d.location(p, name), 1, false, &m[0])
}

func (d *Device) DeleteProgram(p gpu.Program) {
	delete(d.uniforms, p)
	gl.DeleteProgram(uint32(p))
}

func usageEnum(u gpu.BufferUsage) uint32 {
	switch u {
	case gpu.StaticDraw:
		return gl.STATIC_DRAW
	case gpu.StreamDraw:
		return gl.STREAM_DRAW
	}
	return gl.DYNAMIC_DRAW
}

func (d *Device) CreateVertexBuffer(size int, layout gpu.VertexLayout, usage gpu.BufferUsage) (gpu.VertexBuffer, error) {
	vb := gpu.VertexBuffer{Size: size, Layout: layout}
	gl.GenVertexArrays(1, &vb.VAO)
	gl.GenBuffers(1, &vb.VBO)

	gl.BindVertexArray(vb.VAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, size, nil, usageEnum(usage))

	for _, a := range layout.Attribs {
		gl.VertexAttribPointer(a.Location, a.Components, gl.FLOAT, false, int32(layout.Stride), gl.PtrOffset(a.Offset))
		gl.EnableVertexAttribArray(a.Location)
	}
	gl.BindVertexArray(0)

	if err := d.CheckErrors("create vertex buffer"); err != nil {
		d.DeleteVertexBuffer(vb)
		return gpu.VertexBuffer{}, err
	}
	return vb, nil
}

func (d *Device) UpdateVertexBuffer(vb *gpu.VertexBuffer, offset int, data []float32) {
	if len(data) == 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.VBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, offset, len(data)*4, gl.Ptr(data))
}

func (d *Device) ReplaceVertexBuffer(vb *gpu.VertexBuffer, data []float32) {
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.VBO)
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.DYNAMIC_DRAW)
	} else {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.DYNAMIC_DRAW)
	}
	vb.Size = len(data) * 4
}

func (d *Device) DeleteVertexBuffer(vb gpu.VertexBuffer) {
	gl.DeleteBuffers(1, &vb.VBO)
	gl.DeleteVertexArrays(1, &vb.VAO)
}

func primitiveEnum(p gpu.Primitive) uint32 {
	switch p {
	case gpu.Points:
		return gl.POINTS
	case gpu.Lines:
		return gl.LINES
	}
	return gl.TRIANGLES
}

func (d *Device) DrawArrays(vb gpu.VertexBuffer, mode gpu.Primitive, first, count int) {
	if count == 0 {
		return
	}
	gl.BindVertexArray(vb.VAO)
	gl.DrawArrays(primitiveEnum(mode), int32(first), int32(count))
	gl.BindVertexArray(0)
}

func (d *Device) CreateRenderTarget(width, height int) (gpu.RenderTarget, error) {
	if width <= 0 || height <= 0 {
		return gpu.RenderTarget{}, fmt.Errorf("%w: %dx%d", core.ErrInvalidSize, width, height)
	}
	rt := gpu.RenderTarget{Width: width, Height: height}

	gl.GenTextures(1, &rt.Texture)
	gl.BindTexture(gl.TEXTURE_2D, rt.Texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &rt.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.FBO)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, rt.Texture, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		d.DeleteRenderTarget(rt)
		return gpu.RenderTarget{}, fmt.Errorf("%w: status 0x%x", core.ErrIncompleteFrame, status)
	}
	return rt, nil
}

func (d *Device) BindRenderTarget(rt gpu.RenderTarget) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.FBO)
	gl.Viewport(0, 0, int32(rt.Width), int32(rt.Height))
}

func (d *Device) Clear(color mgl32.Vec4) {
	gl.ClearColor(color[0], color[1], color[2], color[3])
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (d *Device) DeleteRenderTarget(rt gpu.RenderTarget) {
	gl.DeleteFramebuffers(1, &rt.FBO)
	gl.DeleteTextures(1, &rt.Texture)
}

// CreateReadbackBuffer allocates immutable pixel-pack storage and maps it
// once for the buffer's whole life
func (d *Device) CreateReadbackBuffer(size int) (gpu.ReadbackBuffer, error) {
	rb := gpu.ReadbackBuffer{Size: size}
	gl.GenBuffers(1, &rb.ID)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, rb.ID)

	flags := uint32(gl.MAP_READ_BIT | gl.MAP_PERSISTENT_BIT | gl.MAP_COHERENT_BIT)
	gl.BufferStorage(gl.PIXEL_PACK_BUFFER, size, nil, flags)
	ptr := gl.MapBufferRange(gl.PIXEL_PACK_BUFFER, 0, size, flags)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)

	if ptr == nil {
		d.logger.Warn("readback buffer not mapped", "buffer", rb.ID, "size", size)
	} else {
		d.mapped[rb.ID] = unsafe.Slice((*byte)(ptr), size)
	}
	if err := d.CheckErrors("create readback buffer"); err != nil {
		d.DeleteReadbackBuffer(rb)
		return gpu.ReadbackBuffer{}, err
	}
	return rb, nil
}

func (d *Device) MappedBytes(rb gpu.ReadbackBuffer) []byte {
	return d.mapped[rb.ID]
}

func (d *Device) ReadPixelsAsync(rt gpu.RenderTarget, rb gpu.ReadbackBuffer, width, height int) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, rt.FBO)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, rb.ID)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.BGRA, gl.UNSIGNED_BYTE, gl.PtrOffset(0))
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
}

// DeleteReadbackBuffer unmaps before deleting
func (d *Device) DeleteReadbackBuffer(rb gpu.ReadbackBuffer) {
	if _, ok := d.mapped[rb.ID]; ok {
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, rb.ID)
		gl.UnmapBuffer(gl.PIXEL_PACK_BUFFER)
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
		delete(d.mapped, rb.ID)
	}
	gl.DeleteBuffers(1, &rb.ID)
}

func (d *Device) FenceSync() gpu.Fence {
	return gpu.Fence(gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0))
}

func (d *Device) WaitFence(f gpu.Fence, timeout time.Duration) gpu.FenceStatus {
	if f == 0 {
		return gpu.FenceFailed
	}
	var flags uint32
	if timeout > 0 {
		flags = gl.SYNC_FLUSH_COMMANDS_BIT
	}
	switch gl.ClientWaitSync(uintptr(f), flags, uint64(timeout.Nanoseconds())) {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		return gpu.FenceSignaled
	case gl.TIMEOUT_EXPIRED:
		return gpu.FenceTimeout
	}
	return gpu.FenceFailed
}

func (d *Device) DeleteFence(f gpu.Fence) {
	if f != 0 {
		gl.DeleteSync(uintptr(f))
	}
}

// CheckErrors drains the GL error queue
func (d *Device) CheckErrors(location string) error {
	var names []string
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		names = append(names, glErrorName(code))
		if len(names) > 16 {
			break
		}
	}
	if len(names) == 0 {
		return nil
	}
	return core.Warn(location, fmt.Errorf("OpenGL error: %s", strings.Join(names, ", ")))
}
