package camera

import "sync"

const (
	// DefaultFov is the vertical field of view of a new camera in degrees.
	DefaultFov = 45.0
	// DefaultNear is the near plane distance of a new camera.
	DefaultNear = 0.001
	// DefaultFar is the far plane distance of a new camera.
	DefaultFar = 1000.0
	// DefaultWidth is the horizontal resolution of a new camera.
	DefaultWidth = 1920
	// DefaultHeight is the vertical resolution of a new camera.
	DefaultHeight = 1080
)

// CameraBuilderOption is a function that configures a Camera during construction.
type CameraBuilderOption func(*Camera)

// WithFov is an option builder that sets the vertical field of view.
//
// Parameters:
//   - deg: field of view in degrees
//
// Returns:
//   - CameraBuilderOption: a function that applies the fov option to a Camera
func WithFov(deg float32) CameraBuilderOption {
	return func(c *Camera) {
		c.fov = deg
	}
}

// WithClip is an option builder that sets the near and far plane distances.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that applies the clip option to a Camera
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *Camera) {
		c.near = near
		c.far = far
	}
}

// WithResolution is an option builder that sets the output resolution.
//
// Parameters:
//   - width: width in pixels
//   - height: height in pixels
//
// Returns:
//   - CameraBuilderOption: a function that applies the resolution option to a Camera
func WithResolution(width, height uint32) CameraBuilderOption {
	return func(c *Camera) {
		if width > 0 && height > 0 {
			c.width = width
			c.height = height
		}
	}
}

// NewCamera creates a Camera with a 45 degree fov, a 0.001..1000 clip range and a 1920x1080
// resolution.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Camera: the new camera
func NewCamera(options ...CameraBuilderOption) *Camera {
	c := &Camera{
		mu:     &sync.Mutex{},
		fov:    DefaultFov,
		near:   DefaultNear,
		far:    DefaultFar,
		width:  DefaultWidth,
		height: DefaultHeight,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}
