package window

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-ecs/common"
	"go.uber.org/zap"
)

func newTestWindow() *engineWindow {
	return &engineWindow{
		mu:      &sync.Mutex{},
		logger:  zap.NewNop(),
		pressed: make(map[uint32]bool),
	}
}

// go test -run ^TestKeyEventsTrackPressedState$ ./engine/window -count 1
func TestKeyEventsTrackPressedState(t *testing.T) {
	w := newTestWindow()
	var downs, ups []uint32
	w.SetKeyDownCallback(func(k uint32) { downs = append(downs, k) })
	w.SetKeyUpCallback(func(k uint32) { ups = append(ups, k) })

	w.keyEvent(common.KeyW, true)
	if !w.Pressed(common.KeyW) {
		t.Errorf("Expected W to be pressed")
	}
	w.keyEvent(common.KeyW, false)
	if w.Pressed(common.KeyW) {
		t.Errorf("Expected W to be released")
	}
	if len(downs) != 1 || len(ups) != 1 {
		t.Errorf("Expected 1 down and 1 up event, got %d and %d", len(downs), len(ups))
	}
}

// go test -run ^TestResizeEventUpdatesExtent$ ./engine/window -count 1
func TestResizeEventUpdatesExtent(t *testing.T) {
	w := newTestWindow()
	var gotW, gotH uint32
	w.SetResizeCallback(func(width, height uint32) { gotW, gotH = width, height })

	w.resizeEvent(800, 600)
	if width, height := w.Extent(); width != 800 || height != 600 {
		t.Errorf("Expected 800x600, got %dx%d", width, height)
	}
	if gotW != 800 || gotH != 600 {
		t.Errorf("Expected the callback to receive 800x600, got %dx%d", gotW, gotH)
	}

	w.resizeEvent(0, 0)
	if gotW != 0 || gotH != 0 {
		t.Errorf("Expected a minimized window to report 0x0, got %dx%d", gotW, gotH)
	}
}

// go test -run ^TestClosedWindowIsNotRunning$ ./engine/window -count 1
func TestClosedWindowIsNotRunning(t *testing.T) {
	w := newTestWindow()
	if w.IsRunning() {
		t.Errorf("Expected an uninitialized window not to run")
	}
	if w.SurfaceDescriptor() != nil {
		t.Errorf("Expected no surface descriptor without a platform window")
	}
	if err := w.Close(); err == nil {
		t.Errorf("Expected an error closing an uninitialized window")
	}
}
