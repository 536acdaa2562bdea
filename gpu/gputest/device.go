// Package gputest provides an in-memory gpu.Device and gpu.Surface that
// record every call, for testing renderers without a graphics context.
package gputest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"radarsweep/core"
	"radarsweep/gpu"
)

// Call is one recorded device call
type Call struct {
	Op   string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Op, c.Args)
}

type fenceState struct {
	copies  []pendingCopy
	polled  bool
	deleted bool
}

type pendingCopy struct {
	dst    uint32
	pixels []byte
}

// Device is a recording fake of gpu.Device.
//
// Pixel copies queued by ReadPixelsAsync only land in the readback buffer
// once a fence issued after them is waited on, or when Flush is called,
// which models the asynchronous copy engine.
type Device struct {
	Calls   []Call
	Deleted []string

	// CompileErr, when set, is returned by CompileProgram for that program name
	CompileErr map[string]error
	// IncompleteTarget makes CreateRenderTarget fail
	IncompleteTarget bool
	// UnmappedReadback makes CreateReadbackBuffer return buffers without a mapping
	UnmappedReadback bool
	// SlowFences makes zero-timeout fence polls report a timeout
	SlowFences bool
	// PendingErrors is drained by the next CheckErrors
	PendingErrors []string

	Uniforms map[gpu.Program]map[string]any
	Buffers  map[uint32][]float32
	Targets  map[uint32][]byte
	Readback map[uint32][]byte

	nextID     uint32
	programs   map[string]gpu.Program
	bound      uint32
	targetSize map[uint32][2]int
	unmapped   map[uint32]bool
	fences     map[gpu.Fence]*fenceState
	pending    []pendingCopy
	nextFence  gpu.Fence
}

// NewDevice creates an empty fake device
func NewDevice() *Device {
	return &Device{
		CompileErr: make(map[string]error),
		Uniforms:   make(map[gpu.Program]map[string]any),
		Buffers:    make(map[uint32][]float32),
		Targets:    make(map[uint32][]byte),
		Readback:   make(map[uint32][]byte),
		programs:   make(map[string]gpu.Program),
		targetSize: make(map[uint32][2]int),
		unmapped:   make(map[uint32]bool),
		fences:     make(map[gpu.Fence]*fenceState),
	}
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) record(op string, args ...any) {
	d.Calls = append(d.Calls, Call{Op: op, Args: args})
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

// Count returns how many calls of op were recorded
func (d *Device) Count(op string) int {
	n := 0
	for _, c := range d.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Last returns the most recent call of op
func (d *Device) Last(op string) (Call, bool) {
	for i := len(d.Calls) - 1; i >= 0; i-- {
		if d.Calls[i].Op == op {
			return d.Calls[i], true
		}
	}
	return Call{}, false
}

// Ops returns the recorded operation names in order
func (d *Device) Ops() []string {
	ops := make([]string, len(d.Calls))
	for i, c := range d.Calls {
		ops[i] = c.Op
	}
	return ops
}

// Reset forgets the recorded calls but keeps all resources
func (d *Device) Reset() {
	d.Calls = nil
}

// Program returns the handle compiled under name
func (d *Device) Program(name string) (gpu.Program, bool) {
	p, ok := d.programs[name]
	return p, ok
}

func (d *Device) CompileProgram(name, vertexSrc, fragmentSrc string) (gpu.Program, error) {
	d.record("CompileProgram", name)
	if err := d.CompileErr[name]; err != nil {
		return 0, err
	}
	if strings.TrimSpace(vertexSrc) == "" || strings.TrimSpace(fragmentSrc) == "" {
		return 0, errors.New("empty shader source")
	}
	p := gpu.Program(d.id())
	d.programs[name] = p
	d.Uniforms[p] = make(map[string]any)
	return p, nil
}

func (d *Device) UseProgram(p gpu.Program) {
	d.record("UseProgram", p)
}

func (d *Device) Uniform1f(p gpu.Program, name string, v float32) {
	d.record("Uniform1f", p, name, v)
	d.Uniforms[p][name] = v
}

func (d *Device) Uniform1i(p gpu.Program, name string, v int32) {
	d.record("Uniform1i", p, name, v)
	d.Uniforms[p][name] = v
}

func (d *Device) UniformMatrix4(p gpu.Program, name string, m mgl32.Mat4) {
	d.record("UniformMatrix4", p, name, m)
	d.Uniforms[p][name] = m
}

func (d *Device) DeleteProgram(p gpu.Program) {
	d.record("DeleteProgram", p)
	d.Deleted = append(d.Deleted, fmt.Sprintf("program %d", p))
}

func (d *Device) CreateVertexBuffer(size int, layout gpu.VertexLayout, usage gpu.BufferUsage) (gpu.VertexBuffer, error) {
	d.record("CreateVertexBuffer", size, usage)
	vb := gpu.VertexBuffer{VAO: d.id(), VBO: d.id(), Size: size, Layout: layout}
	d.Buffers[vb.VBO] = make([]float32, size/4)
	return vb, nil
}

func (d *Device) UpdateVertexBuffer(vb *gpu.VertexBuffer, offset int, data []float32) {
	d.record("UpdateVertexBuffer", vb.VBO, offset, len(data))
	buf := d.Buffers[vb.VBO]
	if offset%4 != 0 || offset/4+len(data) > len(buf) {
		d.PendingErrors = append(d.PendingErrors, "GL_INVALID_VALUE")
		return
	}
	copy(buf[offset/4:], data)
}

func (d *Device) ReplaceVertexBuffer(vb *gpu.VertexBuffer, data []float32) {
	d.record("ReplaceVertexBuffer", vb.VBO, len(data))
	d.Buffers[vb.VBO] = append([]float32(nil), data...)
	vb.Size = len(data) * 4
}

func (d *Device) DeleteVertexBuffer(vb gpu.VertexBuffer) {
	d.record("DeleteVertexBuffer", vb.VBO)
	delete(d.Buffers, vb.VBO)
	d.Deleted = append(d.Deleted, fmt.Sprintf("vertex buffer %d", vb.VBO))
}

func (d *Device) DrawArrays(vb gpu.VertexBuffer, mode gpu.Primitive, first, count int) {
	d.record("DrawArrays", vb.VBO, mode, first, count)
	if first < 0 || count < 0 || (first+count)*vb.Layout.Stride > vb.Size {
		d.PendingErrors = append(d.PendingErrors, "GL_INVALID_OPERATION")
	}
}

func (d *Device) CreateRenderTarget(width, height int) (gpu.RenderTarget, error) {
	d.record("CreateRenderTarget", width, height)
	if d.IncompleteTarget {
		return gpu.RenderTarget{}, core.ErrIncompleteFrame
	}
	rt := gpu.RenderTarget{FBO: d.id(), Texture: d.id(), Width: width, Height: height}
	d.Targets[rt.FBO] = make([]byte, gpu.FrameSize(width, height))
	d.targetSize[rt.FBO] = [2]int{width, height}
	return rt, nil
}

func (d *Device) BindRenderTarget(rt gpu.RenderTarget) {
	d.record("BindRenderTarget", rt.FBO)
	d.bound = rt.FBO
}

// Clear fills the bound target with the color as BGRA bytes
func (d *Device) Clear(color mgl32.Vec4) {
	d.record("Clear", color)
	px := d.Targets[d.bound]
	b := [4]byte{
		core.Quantize(color[2]), core.Quantize(color[1]),
		core.Quantize(color[0]), core.Quantize(color[3]),
	}
	for i := 0; i+3 < len(px); i += 4 {
		copy(px[i:i+4], b[:])
	}
}

func (d *Device) DeleteRenderTarget(rt gpu.RenderTarget) {
	d.record("DeleteRenderTarget", rt.FBO)
	delete(d.Targets, rt.FBO)
	d.Deleted = append(d.Deleted, fmt.Sprintf("render target %d", rt.FBO))
}

// Fill overwrites every byte of a target, standing in for a draw
func (d *Device) Fill(rt gpu.RenderTarget, v byte) {
	px := d.Targets[rt.FBO]
	for i := range px {
		px[i] = v
	}
}

func (d *Device) CreateReadbackBuffer(size int) (gpu.ReadbackBuffer, error) {
	d.record("CreateReadbackBuffer", size)
	rb := gpu.ReadbackBuffer{ID: d.id(), Size: size}
	d.Readback[rb.ID] = make([]byte, size)
	if d.UnmappedReadback {
		d.unmapped[rb.ID] = true
	}
	return rb, nil
}

func (d *Device) MappedBytes(rb gpu.ReadbackBuffer) []byte {
	if d.unmapped[rb.ID] {
		return nil
	}
	return d.Readback[rb.ID]
}

// Unmap drops the host mapping of rb, as a failed or lost mapping would
func (d *Device) Unmap(rb gpu.ReadbackBuffer) {
	d.unmapped[rb.ID] = true
}

func (d *Device) ReadPixelsAsync(rt gpu.RenderTarget, rb gpu.ReadbackBuffer, width, height int) {
	d.record("ReadPixelsAsync", rt.FBO, rb.ID, width, height)
	src := d.Targets[rt.FBO]
	n := gpu.FrameSize(width, height)
	if n > len(src) || n > rb.Size {
		d.PendingErrors = append(d.PendingErrors, "GL_INVALID_OPERATION")
		return
	}
	d.pending = append(d.pending, pendingCopy{dst: rb.ID, pixels: append([]byte(nil), src[:n]...)})
}

func (d *Device) FenceSync() gpu.Fence {
	d.nextFence++
	f := d.nextFence
	d.record("FenceSync", f)
	d.fences[f] = &fenceState{copies: d.pending}
	d.pending = nil
	return f
}

func (d *Device) WaitFence(f gpu.Fence, timeout time.Duration) gpu.FenceStatus {
	d.record("WaitFence", f, timeout)
	st, ok := d.fences[f]
	if !ok || st.deleted {
		return gpu.FenceFailed
	}
	if d.SlowFences && timeout == 0 {
		st.polled = true
		return gpu.FenceTimeout
	}
	d.complete(st)
	return gpu.FenceSignaled
}

func (d *Device) complete(st *fenceState) {
	for _, c := range st.copies {
		copy(d.Readback[c.dst], c.pixels)
	}
	st.copies = nil
}

// Flush lands every queued pixel copy, fenced or not
func (d *Device) Flush() {
	for _, st := range d.fences {
		d.complete(st)
	}
	for _, c := range d.pending {
		copy(d.Readback[c.dst], c.pixels)
	}
	d.pending = nil
}

func (d *Device) DeleteFence(f gpu.Fence) {
	d.record("DeleteFence", f)
	if st, ok := d.fences[f]; ok {
		st.deleted = true
	}
}

// LiveFences counts fences created and not yet deleted
func (d *Device) LiveFences() int {
	n := 0
	for _, st := range d.fences {
		if !st.deleted {
			n++
		}
	}
	return n
}

func (d *Device) DeleteReadbackBuffer(rb gpu.ReadbackBuffer) {
	d.record("DeleteReadbackBuffer", rb.ID)
	delete(d.Readback, rb.ID)
	d.Deleted = append(d.Deleted, fmt.Sprintf("readback buffer %d", rb.ID))
}

func (d *Device) CheckErrors(location string) error {
	d.record("CheckErrors", location)
	if len(d.PendingErrors) == 0 {
		return nil
	}
	msg := strings.Join(d.PendingErrors, ", ")
	d.PendingErrors = nil
	return core.Warn(location, fmt.Errorf("graphics error: %s", msg))
}

// Surface is a fake window that counts presented frames
type Surface struct {
	Presented int
	Polled    int
	// CloseAfter makes ShouldClose report true once this many frames were presented
	CloseAfter int
	Destroyed  bool
}

var _ gpu.Surface = (*Surface)(nil)

func (s *Surface) Present(rt gpu.RenderTarget) { s.Presented++ }
func (s *Surface) PollEvents()                 { s.Polled++ }
func (s *Surface) ShouldClose() bool {
	return s.CloseAfter > 0 && s.Presented >= s.CloseAfter
}
func (s *Surface) Destroy() { s.Destroyed = true }
