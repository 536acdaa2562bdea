package rendering

import (
	"fmt"
	"time"

	"radarsweep/core"
	"radarsweep/gpu"
)

// ReadbackTimeout bounds how long Readback blocks on a slot whose copy has
// not completed by the time it is read
const ReadbackTimeout = time.Second

type readbackSlot struct {
	buf     gpu.ReadbackBuffer
	fence   gpu.Fence
	pending bool
}

// ReadbackPipeline copies rendered frames to host memory through two
// alternating persistently mapped buffers. Each call queues a copy of the
// current frame into one slot and returns the frame queued by the previous
// call from the other, so the host never waits on the copy it just issued.
type ReadbackPipeline struct {
	dev    gpu.Device
	width  int
	height int
	slots  [2]readbackSlot
	index  int

	stalls int
}

// NewReadbackPipeline allocates both slots for width x height BGRA8 frames
func NewReadbackPipeline(dev gpu.Device, width, height int) (*ReadbackPipeline, error) {
	if width <= 0 || height <= 0 {
		return nil, core.NewInitError("create readback", fmt.Errorf("%w: %dx%d", core.ErrInvalidSize, width, height))
	}
	p := &ReadbackPipeline{dev: dev, width: width, height: height}
	for i := range p.slots {
		buf, err := dev.CreateReadbackBuffer(gpu.FrameSize(width, height))
		if err != nil {
			for j := 0; j < i; j++ {
				dev.DeleteReadbackBuffer(p.slots[j].buf)
			}
			return nil, core.NewInitError("create readback", err)
		}
		p.slots[i].buf = buf
	}
	return p, nil
}

// FrameSize returns the byte size of one read-back frame
func (p *ReadbackPipeline) FrameSize() int {
	return gpu.FrameSize(p.width, p.height)
}

// Stalls returns how many reads had to block on an unfinished copy
func (p *ReadbackPipeline) Stalls() int {
	return p.stalls
}

// Readback queues a copy of rt and fills dst with the frame queued by the
// previous call. It reports false when no earlier frame was available, in
// which case dst is left untouched.
func (p *ReadbackPipeline) Readback(rt gpu.RenderTarget, dst []byte) (bool, error) {
	size := p.FrameSize()
	if len(dst) < size {
		return false, core.Warn("readback", fmt.Errorf("%w: %d < %d", core.ErrShortBuffer, len(dst), size))
	}

	write := &p.slots[p.index]
	read := &p.slots[(p.index+1)%2]
	p.index = (p.index + 1) % 2

	p.release(write)
	p.dev.ReadPixelsAsync(rt, write.buf, p.width, p.height)
	write.fence = p.dev.FenceSync()
	write.pending = true
	if err := p.dev.CheckErrors("readback copy"); err != nil {
		// neither slot holds a frame worth reading now
		p.release(write)
		p.release(read)
		return false, err
	}

	if !read.pending {
		return false, nil
	}
	defer p.release(read)

	status := p.dev.WaitFence(read.fence, 0)
	if status == gpu.FenceTimeout {
		p.stalls++
		status = p.dev.WaitFence(read.fence, ReadbackTimeout)
	}
	if status != gpu.FenceSignaled {
		return false, core.Warn("readback", fmt.Errorf("previous frame copy %s", status))
	}

	mapped := p.dev.MappedBytes(read.buf)
	if len(mapped) < size {
		return false, core.Warn("readback", core.ErrSlotUnmapped)
	}
	copy(dst, mapped[:size])
	return true, nil
}

func (p *ReadbackPipeline) release(s *readbackSlot) {
	if s.pending {
		p.dev.DeleteFence(s.fence)
		s.pending = false
	}
}

// Close deletes outstanding fences and both buffers
func (p *ReadbackPipeline) Close() {
	for i := range p.slots {
		p.release(&p.slots[i])
	}
	for i := len(p.slots) - 1; i >= 0; i-- {
		p.dev.DeleteReadbackBuffer(p.slots[i].buf)
	}
}
