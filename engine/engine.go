package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/rendering"
	"github.com/Carmen-Shannon/oxy-ecs/engine/window"
	"go.uber.org/zap"
)

// ErrLoopPanic is returned by Run when the loop goroutine panicked.
var ErrLoopPanic = errors.New("engine loop panicked")

// maxTickSteps bounds the fixed-rate tick callbacks run in one loop iteration after a stall.
const maxTickSteps = 5

// engine implements the Engine interface.
// Coordinates the loop goroutine, the quit goroutine and the window message loop.
type engine struct {
	logger *zap.Logger

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	resizeChannel   chan gpu.Extent    // Latest pending framebuffer size

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	registry registry.Registry
	window   window.Window

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        int           // loop iterations before quitting; 0 = unbounded
	frames           atomic.Int64

	failure atomic.Value // recovered panic value of the loop goroutine
}

// Engine is the main entry point for the engine.
// It drives the registry's systems in a single loop goroutine and manages the window.
type Engine interface {
	// Registry returns the registry whose systems the loop iterates.
	//
	// Returns:
	//   - registry.Registry: the registry
	Registry() registry.Registry

	// Window returns the window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, input processing and component updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each IterateSystems pass.
	//
	// Parameters:
	//   - callback: function to call each frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frames returns how many loop iterations have completed.
	//
	// Returns:
	//   - int: the completed iteration count
	Frames() int

	// Run starts the engine and blocks until the window closes, Quit is called or the frame
	// budget is spent. The registry is destroyed before Run returns.
	//
	// Returns:
	//   - error: ErrLoopPanic wrapping the panic value if the loop goroutine panicked
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Without WithRegistry the engine creates an empty registry with no device.
//
// Parameters:
//   - options: functional options for engine configuration (registry, window, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		logger:          zap.NewNop(),
		tickRateChannel: make(chan time.Duration, 1),
		resizeChannel:   make(chan gpu.Extent, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	e.logger = e.logger.Named("engine")
	if e.registry == nil {
		e.registry = registry.NewRegistry(registry.WithLogger(e.logger))
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height uint32) {
			replace(e.resizeChannel, gpu.Extent{Width: width, Height: height})
		})
	}

	return e
}

func (e *engine) Registry() registry.Registry {
	return e.registry
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Frames() int {
	return int(e.frames.Load())
}

func (e *engine) Run() error {
	e.running.Store(true)
	e.logger.Info("engine started",
		zap.Duration("tick_rate", e.engineTickRate),
		zap.Duration("frame_limit", e.renderFrameLimit),
		zap.Int("max_frames", e.maxFrames),
		zap.Bool("windowed", e.window != nil))
	e.handle()

	if e.window != nil {
		e.window.ProcessMessages(e.quitChannel)
		e.signalQuit()
	}
	e.wg.Wait()

	e.registry.Destroy()
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			e.logger.Warn("close window", zap.Error(err))
		}
	}
	if r := e.failure.Load(); r != nil {
		e.logger.Error("engine stopped after a panic", zap.Int("frames", e.Frames()))
		return fmt.Errorf("%w: %v", ErrLoopPanic, r)
	}
	e.logger.Info("engine stopped", zap.Int("frames", e.Frames()))
	return nil
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the loop and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleLoop()
	go e.handleQuit()
}

// handleLoop runs the frame loop: fixed-rate tick callbacks, one IterateSystems pass, the render
// callback and the profiler. Only this goroutine touches components while the engine runs.
// A panic is recovered only so Run can tear down in order and report it.
func (e *engine) handleLoop() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine loop panicked", zap.Any("panic", r))
			e.failure.Store(fmt.Sprint(r))
			e.signalQuit()
		}
	}()

	lastFrame := time.Now()
	var accumulator time.Duration

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		frameStart := time.Now()
		elapsed := frameStart.Sub(lastFrame)
		lastFrame = frameStart

		e.applyPending()

		accumulator += elapsed
		steps := 0
		for accumulator >= e.engineTickRate && steps < maxTickSteps {
			if e.tickCallback != nil {
				e.tickCallback(float32(e.engineTickRate.Seconds()))
			}
			accumulator -= e.engineTickRate
			steps++
		}
		if steps == maxTickSteps {
			accumulator = 0
		}

		e.registry.IterateSystems()

		if e.renderCallback != nil {
			e.renderCallback(float32(elapsed.Seconds()))
		}

		if e.profilingEnabled.Load() {
			e.profiler.Tick(e.frameCounters())
		}

		if n := e.frames.Add(1); e.maxFrames > 0 && n >= int64(e.maxFrames) {
			e.signalQuit()
			return
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// applyPending applies tick rate changes and swapchain resizes queued from other goroutines.
func (e *engine) applyPending() {
	select {
	case rate := <-e.tickRateChannel:
		e.engineTickRate = rate
	default:
	}
	select {
	case extent := <-e.resizeChannel:
		if d := e.registry.Device(); d != nil {
			e.logger.Debug("resizing swapchain",
				zap.Uint32("width", extent.Width), zap.Uint32("height", extent.Height))
			d.Swapchain().Resize(extent.Width, extent.Height)
		}
	default:
	}
}

// frameCounters reads the rendering system's cumulative counters, zero without one.
func (e *engine) frameCounters() profiler.Frame {
	s := rendering.Of(e.registry)
	if s == nil {
		return profiler.Frame{}
	}
	stats := s.Stats()
	return profiler.Frame{Presented: stats.Presented, Skipped: stats.Skipped}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect on the next loop iteration.
func (e *engine) SetTickRate(fps float64) {
	rate := tickDuration(fps)
	if e.running.Load() {
		replace(e.tickRateChannel, rate)
		return
	}
	e.engineTickRate = rate
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

// replace sends v on a one-slot channel, dropping any value still pending.
func replace[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func tickDuration(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
