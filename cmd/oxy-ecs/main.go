package main

import (
	_ "embed"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/Carmen-Shannon/oxy-ecs/engine"
	"github.com/Carmen-Shannon/oxy-ecs/engine/config"
	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/rendering"
	"github.com/Carmen-Shannon/oxy-ecs/engine/scenefile"
	"github.com/Carmen-Shannon/oxy-ecs/engine/window"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//go:embed default_scene.yaml
var defaultScene []byte

// GLFW must run on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML config file")
	profileMode := flag.String("profile", "", "capture a pprof profile: cpu, mem, allocs, block, mutex, trace")
	frames := flag.Int("frames", -1, "override [engine] frames (0 runs until the window closes)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *frames >= 0 {
		cfg.Engine.Frames = *frames
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if *profileMode != "" {
		p, err := startProfile(*profileMode)
		if err != nil {
			return err
		}
		defer p.Stop()
	}

	// 3. Window and device
	backend, _ := cfg.Backend()
	presentMode, _ := cfg.PresentMode()
	deviceOptions := []gpu.DeviceBuilderOption{
		gpu.WithBackend(backend),
		gpu.WithLogger(log),
		gpu.WithPresentMode(presentMode),
		gpu.WithForceFallbackAdapter(cfg.Renderer.ForceFallbackAdapter),
		gpu.WithSwapchainImages(cfg.Renderer.SwapchainImages),
	}

	var win window.Window
	if cfg.Window.Enabled {
		win, err = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
			window.WithLogger(log),
		)
		if err != nil {
			return err
		}
		width, height := win.Extent()
		deviceOptions = append(deviceOptions,
			gpu.WithSurfaceDescriptor(win.SurfaceDescriptor()),
			gpu.WithExtent(width, height))
	} else {
		deviceOptions = append(deviceOptions, gpu.WithExtent(cfg.Renderer.Width, cfg.Renderer.Height))
	}
	device := gpu.NewDevice(deviceOptions...)

	// 4. Registry, systems and scene
	reg := registry.NewRegistry(registry.WithDevice(device), registry.WithLogger(log))
	renderer := rendering.NewSystem(device,
		rendering.WithLogger(log),
		rendering.WithWorkers(cfg.Renderer.Workers),
	)
	if err := reg.AddSystem(renderer); err != nil {
		reg.Destroy()
		return fmt.Errorf("add rendering system: %w", err)
	}

	scene, err := loadScene(cfg.Scene)
	if err != nil {
		reg.Destroy()
		return err
	}
	if _, err := scene.Spawn(reg); err != nil {
		reg.Destroy()
		return fmt.Errorf("spawn scene: %w", err)
	}

	// 5. Engine loop
	e := engine.NewEngine(
		engine.WithLogger(log),
		engine.WithRegistry(reg),
		engine.WithWindow(win),
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithRenderFrameLimit(cfg.Engine.FrameLimit),
		engine.WithMaxFrames(cfg.Engine.Frames),
		engine.WithProfiling(cfg.Engine.Profiling),
		engine.WithProfiler(profiler.NewProfiler(
			profiler.WithLogger(log),
			profiler.WithInterval(cfg.Engine.ProfileInterval),
		)),
	)
	c := newControls(reg, win)
	e.SetTickCallback(c.tick)
	if err := e.Run(); err != nil {
		return err
	}

	stats := renderer.Stats()
	log.Info("rendering stats",
		zap.Int("ticks", stats.Ticks),
		zap.Int("presented", stats.Presented),
		zap.Int("skipped", stats.Skipped),
		zap.Int("output_recreations", stats.OutputRecreations))
	return nil
}

func loadScene(cfg config.SceneConfig) (*scenefile.Scene, error) {
	if cfg.Path == "" {
		return scenefile.Parse(defaultScene)
	}
	return scenefile.Load(cfg.Path)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// startProfile starts a pkg/profile capture written to the working directory.
func startProfile(mode string) (interface{ Stop() }, error) {
	var m func(*profile.Profile)
	switch strings.ToLower(mode) {
	case "cpu":
		m = profile.CPUProfile
	case "mem":
		m = profile.MemProfile
	case "allocs":
		m = profile.MemProfileAllocs
	case "block":
		m = profile.BlockProfile
	case "mutex":
		m = profile.MutexProfile
	case "trace":
		m = profile.TraceProfile
	default:
		return nil, fmt.Errorf("unknown profile mode %q", mode)
	}
	return profile.Start(m, profile.ProfilePath("."), profile.NoShutdownHook), nil
}
