package gpu

import (
	"fmt"
	"strings"
)

// BackendType identifies the implementation behind a Device.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU device, which requires a surface descriptor.
	BackendTypeWGPU BackendType = iota

	// BackendTypeHeadless selects the CPU-executed device used for tests and offscreen runs.
	BackendTypeHeadless
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeHeadless:
		return "headless"
	}
	return "unknown"
}

// ParseBackendType maps a configuration string onto a BackendType.
//
// Parameters:
//   - s: "wgpu" or "headless" (case-insensitive)
//
// Returns:
//   - BackendType: the parsed backend
//   - error: error if the name is unknown
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wgpu", "webgpu", "":
		return BackendTypeWGPU, nil
	case "headless":
		return BackendTypeHeadless, nil
	}
	return 0, fmt.Errorf("gpu: unknown backend %q", s)
}

// PresentMode controls how swapchain images are delivered to the display.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents immediately and may tear.
	PresentModeUncapped
)

// ParsePresentMode maps a configuration string onto a PresentMode.
//
// Parameters:
//   - s: "vsync" or "uncapped" (case-insensitive)
//
// Returns:
//   - PresentMode: the parsed mode
//   - error: error if the name is unknown
func ParsePresentMode(s string) (PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vsync", "fifo", "":
		return PresentModeVSync, nil
	case "uncapped", "immediate":
		return PresentModeUncapped, nil
	}
	return 0, fmt.Errorf("gpu: unknown present mode %q", s)
}

// AlignUp rounds v up to the next multiple of align. align must be a power of two.
func AlignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// BytesPerTexel returns the texel size of f in bytes.
func BytesPerTexel(f Format) uint32 {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm:
		return 4
	}
	return 4
}
