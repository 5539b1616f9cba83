package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// DeviceBuilderOption is a functional option for configuring a Device during construction.
type DeviceBuilderOption func(*deviceConfig)

// deviceConfig collects construction parameters shared by every backend.
type deviceConfig struct {
	backend              BackendType
	logger               *zap.Logger
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	forceFallbackAdapter bool
	presentMode          PresentMode
	extent               Extent
	swapchainImages      int
	manualFences         bool
}

func defaultDeviceConfig() *deviceConfig {
	return &deviceConfig{
		backend:         BackendTypeWGPU,
		logger:          zap.NewNop(),
		presentMode:     PresentModeVSync,
		extent:          Extent{Width: 1280, Height: 720},
		swapchainImages: 3,
	}
}

// WithBackend selects the device implementation.
//
// Parameters:
//   - backend: the BackendType to construct
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithBackend(backend BackendType) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.backend = backend
	}
}

// WithLogger sets the logger used for diagnostics and fatal native failures.
//
// Parameters:
//   - logger: the zap logger (nil keeps the no-op default)
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSurfaceDescriptor sets the platform surface the WebGPU swapchain presents to.
//
// Parameters:
//   - desc: the descriptor returned by the window collaborator
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.surfaceDescriptor = desc
	}
}

// WithForceFallbackAdapter requests the software adapter from WebGPU.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithPresentMode sets the swapchain present mode.
//
// Parameters:
//   - mode: the PresentMode to configure
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.presentMode = mode
	}
}

// WithExtent sets the initial swapchain extent.
//
// Parameters:
//   - width: width in pixels
//   - height: height in pixels
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithExtent(width, height uint32) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.extent = Extent{Width: width, Height: height}
	}
}

// WithSwapchainImages sets the number of headless swapchain images.
//
// Parameters:
//   - count: image count (values < 1 are ignored)
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithSwapchainImages(count int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if count > 0 {
			c.swapchainImages = count
		}
	}
}

// WithManualFences makes headless fences stay unsignaled after submission until
// HeadlessDevice.CompleteFences is called, simulating a GPU that is still busy.
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithManualFences() DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.manualFences = true
	}
}

// NewDevice creates a Device for the configured backend.
// The WebGPU backend panics when no adapter or device can be obtained.
//
// Parameters:
//   - options: functional options for device configuration
//
// Returns:
//   - Device: the newly created device
func NewDevice(options ...DeviceBuilderOption) Device {
	c := defaultDeviceConfig()
	for _, opt := range options {
		opt(c)
	}
	switch c.backend {
	case BackendTypeHeadless:
		return newHeadlessDevice(c)
	default:
		return newWGPUDevice(c)
	}
}

// NewHeadlessDevice creates a headless Device and exposes its inspection API.
//
// Parameters:
//   - options: functional options for device configuration; the backend option is ignored
//
// Returns:
//   - HeadlessDevice: the newly created headless device
func NewHeadlessDevice(options ...DeviceBuilderOption) HeadlessDevice {
	c := defaultDeviceConfig()
	for _, opt := range options {
		opt(c)
	}
	return newHeadlessDevice(c)
}
