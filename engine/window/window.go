package window

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// ErrWindowInit is returned when the platform window cannot be created.
var ErrWindowInit = errors.New("window initialization failed")

// Window provides platform windowing and input event handling.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new framebuffer width and height in pixels
	SetResizeCallback(callback func(width, height uint32))

	// SetKeyDownCallback sets the callback for key press and repeat events.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// Pressed reports whether a key is currently held. Safe to call from any goroutine.
	//
	// Parameters:
	//   - keyCode: one of the common.Key* codes
	//
	// Returns:
	//   - bool: true while the key is held
	Pressed(keyCode uint32) bool

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor for creating the presentation surface.
	// The descriptor is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still open.
	//
	// Returns:
	//   - bool: true if the window is running
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never initialized
	Close() error

	// ProcessMessages runs the window message loop on the calling goroutine, which must be the
	// main thread. Blocks until the window is closed or quit is closed.
	//
	// Parameters:
	//   - quit: closing this channel ends the loop
	ProcessMessages(quit <-chan struct{})

	// Extent returns the current framebuffer size in pixels.
	//
	// Returns:
	//   - uint32: width
	//   - uint32: height
	Extent() (uint32, uint32)
}

type engineWindow struct {
	mu     *sync.Mutex
	logger *zap.Logger

	title     string
	minWidth  int
	minHeight int
	maxWidth  int
	maxHeight int
	width     int
	height    int

	// internalWindow holds the platform window data (glfwWindow).
	internalWindow any

	pressed map[uint32]bool

	onResize  func(width, height uint32)
	onKeyDown func(keyCode uint32)
	onKeyUp   func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a new Window. Must be called from the main thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: ErrWindowInit wrapping the platform failure
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		mu:        &sync.Mutex{},
		logger:    zap.NewNop(),
		title:     "oxy-ecs",
		minWidth:  320,
		minHeight: 200,
		maxWidth:  3840,
		maxHeight: 2160,
		width:     1280,
		height:    720,
		pressed:   make(map[uint32]bool),
	}
	for _, opt := range options {
		opt(w)
	}
	w.logger = w.logger.Named("window")
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWindowInit, err)
	}
	w.logger.Debug("window created",
		zap.String("title", w.title), zap.Int("width", w.width), zap.Int("height", w.height))
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(width, height uint32)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) Pressed(keyCode uint32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pressed[keyCode]
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages(quit <-chan struct{}) {
	for w.IsRunning() {
		select {
		case <-quit:
			return
		default:
		}
		if !platformProcessMessages(w) {
			break
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Extent() (uint32, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return uint32(w.width), uint32(w.height)
}

// keyEvent records the key state and forwards the event to the registered callback.
func (w *engineWindow) keyEvent(keyCode uint32, down bool) {
	w.mu.Lock()
	w.pressed[keyCode] = down
	w.mu.Unlock()
	if down && w.onKeyDown != nil {
		w.onKeyDown(keyCode)
	}
	if !down && w.onKeyUp != nil {
		w.onKeyUp(keyCode)
	}
}

// resizeEvent stores the framebuffer size and forwards non-empty sizes to the resize callback.
func (w *engineWindow) resizeEvent(width, height int) {
	w.mu.Lock()
	w.width = width
	w.height = height
	w.mu.Unlock()
	if w.onResize != nil {
		w.onResize(uint32(max(width, 0)), uint32(max(height, 0)))
	}
}
