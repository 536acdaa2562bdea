package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"radarsweep/config"
	"radarsweep/engine"
	"radarsweep/rendering/opengl"
	"radarsweep/stream"
)

func init() {
	// the GL context and the render loop stay on the main thread
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "radarsweep:", err)
		os.Exit(-1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "Config file (default: radarsweep.yaml in /etc/radarsweep or .)")
		width       = flag.Int("width", 800, "Window width")
		height      = flag.Int("height", 800, "Window height")
		listen      = flag.String("listen", "", "Serve frames and stats on this address, e.g. :8080")
		shaderDir   = flag.String("shaders", "", "Shader directory (overrides SHADER_DIR)")
		lineMode    = flag.String("mode", "sector", "Line mode: sector or point")
		printConfig = flag.Bool("print-config", false, "Print the effective configuration and exit")
	)
	flag.Parse()

	// only flags given on the command line override file and environment
	overrides := make(map[string]any)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			overrides["width"] = *width
		case "height":
			overrides["height"] = *height
		case "listen":
			overrides["listen_addr"] = *listen
		case "shaders":
			overrides["shader_dir"] = *shaderDir
		case "mode":
			overrides["line_mode"] = *lineMode
		}
	})

	settings, err := config.Load(*configPath, overrides)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if *printConfig {
		return settings.Dump(os.Stdout)
	}

	level, _ := settings.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window, err := opengl.NewWindow(opengl.WindowConfig{
		Width:  settings.Width,
		Height: settings.Height,
		Title:  "Radar",
		VSync:  settings.VSync,
		Hidden: settings.Hidden,
	})
	if err != nil {
		return err
	}
	defer window.Destroy()

	dev := opengl.NewDevice(logger.With("component", "gl"))

	opts := []engine.Option{engine.WithLogger(logger.With("component", "engine"))}
	var hub *stream.Hub
	if settings.ListenAddr != "" {
		hub = stream.NewHub(logger.With("component", "stream"))
		opts = append(opts, engine.WithSink(hub))
	}

	eng, err := engine.New(settings, dev, window, opts...)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if hub != nil {
		srv := &http.Server{Addr: settings.ListenAddr, Handler: hub.Router(eng.Stats)}
		g.Go(func() error { return hub.Run(gctx) })
		g.Go(func() error {
			logger.Info("serving frames", "addr", settings.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("frame server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	runErr := eng.Run(gctx)
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
