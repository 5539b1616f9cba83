package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/light"
	"github.com/Carmen-Shannon/oxy-ecs/engine/mesh"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/rendering"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/cogentcore/webgpu/wgpu"
)

// fakeWindow reports one resize when its message loop starts, then waits for quit.
type fakeWindow struct {
	width, height uint32
	onResize      func(width, height uint32)
	closed        atomic.Bool
}

func (w *fakeWindow) SetResizeCallback(callback func(width, height uint32)) { w.onResize = callback }
func (w *fakeWindow) SetKeyDownCallback(func(keyCode uint32))                {}
func (w *fakeWindow) SetKeyUpCallback(func(keyCode uint32))                  {}
func (w *fakeWindow) Pressed(uint32) bool                                    { return false }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor             { return nil }
func (w *fakeWindow) IsRunning() bool                                        { return !w.closed.Load() }
func (w *fakeWindow) Extent() (uint32, uint32)                               { return w.width, w.height }

func (w *fakeWindow) Close() error {
	w.closed.Store(true)
	return nil
}

func (w *fakeWindow) ProcessMessages(quit <-chan struct{}) {
	if w.onResize != nil {
		w.onResize(w.width, w.height)
	}
	<-quit
}

func newTestRegistry(t *testing.T) (registry.Registry, gpu.HeadlessDevice, rendering.System) {
	t.Helper()
	d := gpu.NewHeadlessDevice(gpu.WithExtent(16, 16))
	r := registry.NewRegistry(registry.WithDevice(d))
	s := rendering.NewSystem(d, rendering.WithWorkers(1))
	if err := r.AddSystem(s); err != nil {
		t.Fatal(err)
	}

	e := r.CreateEntity()
	for _, c := range []registry.Component{
		transform.NewTransform(),
		mesh.NewMesh(mesh.WithPrimitive(mesh.PrimitiveQuad)),
		light.NewLight(),
	} {
		if err := r.AddComponent(e, c); err != nil {
			t.Fatal(err)
		}
	}
	return r, d, s
}

// go test -run ^TestRunStopsAfterMaxFrames$ ./engine -count 1
func TestRunStopsAfterMaxFrames(t *testing.T) {
	r, _, s := newTestRegistry(t)
	e := NewEngine(WithRegistry(r), WithMaxFrames(3), WithProfiling(true))

	var rendered int
	e.SetRenderCallback(func(float32) { rendered++ })
	if err := e.Run(); err != nil {
		t.Fatalf("Expected a clean run, got %v", err)
	}

	if got := e.Frames(); got != 3 {
		t.Errorf("Expected 3 frames, got %d", got)
	}
	if rendered != 3 {
		t.Errorf("Expected 3 render callbacks, got %d", rendered)
	}
	stats := s.Stats()
	if stats.Ticks != 3 || stats.Presented != 3 {
		t.Errorf("Expected 3 ticks and 3 presents, got %d ticks and %d presents", stats.Ticks, stats.Presented)
	}
	if !r.Destroyed() {
		t.Errorf("Expected Run to destroy the registry")
	}
}

// go test -run ^TestQuitFromRenderCallback$ ./engine -count 1
func TestQuitFromRenderCallback(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	e := NewEngine(WithRegistry(r), WithMaxFrames(1000))
	e.SetRenderCallback(func(float32) {
		if e.Frames() == 1 {
			e.Quit()
			e.Quit()
		}
	})
	if err := e.Run(); err != nil {
		t.Fatalf("Expected a clean run, got %v", err)
	}

	if got := e.Frames(); got != 2 {
		t.Errorf("Expected the loop to stop after the frame that quit, got %d frames", got)
	}
}

// go test -run ^TestTickCallbackRunsAtFixedRate$ ./engine -count 1
func TestTickCallbackRunsAtFixedRate(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	e := NewEngine(WithRegistry(r), WithTickRate(1000), WithRenderFrameLimit(200), WithMaxFrames(5))

	var ticks int
	var step float32
	e.SetTickCallback(func(dt float32) {
		ticks++
		step = dt
	})
	if err := e.Run(); err != nil {
		t.Fatalf("Expected a clean run, got %v", err)
	}

	if ticks == 0 {
		t.Fatalf("Expected tick callbacks between frames, got none")
	}
	if step != float32((time.Millisecond).Seconds()) {
		t.Errorf("Expected a fixed 1ms step, got %v", step)
	}
	if ticks > 4*maxTickSteps {
		t.Errorf("Expected at most %d ticks, got %d", 4*maxTickSteps, ticks)
	}
}

// go test -run ^TestWindowResizeReachesSwapchain$ ./engine -count 1
func TestWindowResizeReachesSwapchain(t *testing.T) {
	r, d, s := newTestRegistry(t)
	w := &fakeWindow{width: 40, height: 24}
	e := NewEngine(WithRegistry(r), WithWindow(w), WithMaxFrames(100000))

	var resized bool
	e.SetRenderCallback(func(float32) {
		if d.Swapchain().Extent() == (gpu.Extent{Width: 40, Height: 24}) {
			resized = s.OutputImage().Extent() == gpu.Extent{Width: 40, Height: 24}
			e.Quit()
		}
	})
	if err := e.Run(); err != nil {
		t.Fatalf("Expected a clean run, got %v", err)
	}

	if !resized {
		t.Fatalf("Expected the swapchain and output image to be resized to 40x24")
	}
	if got := s.Stats().OutputRecreations; got < 1 || got > 2 {
		t.Errorf("Expected 1 or 2 output recreations, got %d", got)
	}
	if !w.closed.Load() {
		t.Errorf("Expected Run to close the window")
	}
}

// faultySystem submits a command buffer that was never recorded.
type faultySystem struct {
	device gpu.Device
}

func (*faultySystem) Type() registry.SystemType { return registry.SystemUser }

func (s *faultySystem) Update(registry.Registry) {
	cb := s.device.CreateCommandBuffer("never recorded", gpu.QueueTransfer)
	s.device.Queue(gpu.QueueTransfer).Submit(gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}})
}

// go test -run ^TestRunReportsSubmissionFailure$ ./engine -count 1
func TestRunReportsSubmissionFailure(t *testing.T) {
	r, d, _ := newTestRegistry(t)
	if err := r.AddSystem(&faultySystem{device: d}); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(WithRegistry(r), WithMaxFrames(10))

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrLoopPanic) {
			t.Errorf("Expected ErrLoopPanic, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected Run to return after a failed submission, got a hang")
	}
	if !r.Destroyed() {
		t.Errorf("Expected the registry to be destroyed after the failure")
	}
	if !d.Stats().DeviceDestroyed {
		t.Errorf("Expected the device to be destroyed after the failure")
	}
}

// go test -run ^TestRunReportsCallbackPanic$ ./engine -count 1
func TestRunReportsCallbackPanic(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	e := NewEngine(WithRegistry(r), WithMaxFrames(10))
	e.SetRenderCallback(func(float32) { panic("boom") })

	err := e.Run()
	if !errors.Is(err, ErrLoopPanic) {
		t.Fatalf("Expected ErrLoopPanic, got %v", err)
	}
	if got := e.Frames(); got != 0 {
		t.Errorf("Expected no completed frames, got %d", got)
	}
}

// go test -run ^TestSetTickRate$ ./engine -count 1
func TestSetTickRate(t *testing.T) {
	e := NewEngine().(*engine)
	e.SetTickRate(120)
	if want := time.Second / 120; e.engineTickRate != want {
		t.Errorf("Expected %v, got %v", want, e.engineTickRate)
	}
	e.SetTickRate(0)
	if want := time.Second / 60; e.engineTickRate != want {
		t.Errorf("Expected %v, got %v", want, e.engineTickRate)
	}

	e.running.Store(true)
	e.SetTickRate(30)
	e.SetTickRate(10)
	e.applyPending()
	if want := time.Second / 10; e.engineTickRate != want {
		t.Errorf("Expected the latest pending rate %v, got %v", want, e.engineTickRate)
	}
}
