package engine

// Frame is one read-back BGRA8 frame. Pixels is only valid for the
// duration of Publish; sinks that keep it must copy.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Pixels []byte
}

// FrameSink receives frames from the render goroutine. Publish must not
// block on slow consumers.
type FrameSink interface {
	Publish(f Frame)
}

// FrameSinkFunc adapts a function to FrameSink
type FrameSinkFunc func(f Frame)

func (fn FrameSinkFunc) Publish(f Frame) { fn(f) }
