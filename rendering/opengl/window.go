package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"radarsweep/core"
	"radarsweep/gpu"
)

// WindowConfig describes the window and context to create
type WindowConfig struct {
	Width  int
	Height int
	Title  string
	VSync  bool
	Hidden bool
}

// Window is a GLFW window with a current OpenGL 4.5 core context
type Window struct {
	window *glfw.Window
}

var _ gpu.Surface = (*Window)(nil)

// NewWindow initializes GLFW, opens the window and loads OpenGL. It must be
// called on the thread that will own the context.
func NewWindow(cfg WindowConfig) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, core.NewInitError("create window", fmt.Errorf("%w: %dx%d", core.ErrInvalidSize, cfg.Width, cfg.Height))
	}

	if err := glfw.Init(); err != nil {
		return nil, core.NewInitError("create window", fmt.Errorf("failed to initialize GLFW: %w", err))
	}

	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 5)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	if cfg.Hidden {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	title := cfg.Title
	if title == "" {
		title = "Radar"
	}
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, core.NewInitError("create window", fmt.Errorf("failed to create window: %w", err))
	}
	window.MakeContextCurrent()

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, core.NewInitError("load OpenGL", fmt.Errorf("failed to initialize OpenGL: %w", err))
	}

	return &Window{window: window}, nil
}

// Present blits rt onto the default framebuffer, scaling to the current
// framebuffer size, and swaps
func (w *Window) Present(rt gpu.RenderTarget) {
	fbw, fbh := w.window.GetFramebufferSize()
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, rt.FBO)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BlitFramebuffer(0, 0, int32(rt.Width), int32(rt.Height), 0, 0, int32(fbw), int32(fbh), gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	w.window.SwapBuffers()
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) ShouldClose() bool {
	return w.window.ShouldClose()
}

// Destroy closes the window and terminates GLFW
func (w *Window) Destroy() {
	w.window.Destroy()
	glfw.Terminate()
}
