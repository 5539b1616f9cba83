// Package camera provides the Camera component: a perspective projection placed by its entity's
// Transform.
package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera holds perspective settings. Its view matrix is derived from the sibling Transform on
// every call, so moving the Transform moves the camera.
type Camera struct {
	registry.Base

	mu     *sync.Mutex
	fov    float32 // degrees
	near   float32
	far    float32
	width  uint32
	height uint32
}

var _ registry.Component = &Camera{}

func (*Camera) Type() registry.ComponentType {
	return registry.ComponentCamera
}

func (*Camera) Requires() []registry.ComponentType {
	return []registry.ComponentType{registry.ComponentTransform}
}

// Fov returns the vertical field of view in degrees.
func (c *Camera) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

// SetFov sets the vertical field of view in degrees.
func (c *Camera) SetFov(deg float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = deg
}

// Near returns the near clipping plane distance.
func (c *Camera) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

// Far returns the far clipping plane distance.
func (c *Camera) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

// SetClip sets the near and far clipping plane distances.
func (c *Camera) SetClip(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
}

// Resolution returns the output resolution in pixels.
func (c *Camera) Resolution() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// SetResolution sets the output resolution. Zero dimensions are ignored.
//
// Parameters:
//   - width: width in pixels
//   - height: height in pixels
func (c *Camera) SetResolution(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
}

// Aspect returns width / height.
func (c *Camera) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float32(c.width) / float32(c.height)
}

// Projection returns the perspective projection matrix.
func (c *Camera) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mgl32.Perspective(mgl32.DegToRad(c.fov), float32(c.width)/float32(c.height), c.near, c.far)
}

// View returns the view matrix of the camera at the sibling Transform. Without a Transform the
// camera sits at the origin looking down -Z.
//
// Parameters:
//   - r: the registry holding the sibling Transform
//
// Returns:
//   - mgl32.Mat4: the view matrix
func (c *Camera) View(r registry.Registry) mgl32.Mat4 {
	eye, forward, up := mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}
	if tr := transform.Of(r, c.Owner()); tr != nil {
		eye, forward, up = tr.Position(), tr.Forward(), tr.Up()
	}
	return mgl32.LookAtV(eye, eye.Add(forward), up)
}

// Uniform builds the GPU camera record.
//
// Parameters:
//   - r: the registry holding the sibling Transform
//
// Returns:
//   - GPUCameraUniform: view-projection, its inverse and the eye position
func (c *Camera) Uniform(r registry.Registry) GPUCameraUniform {
	viewProj := c.Projection().Mul4(c.View(r))
	eye := mgl32.Vec3{}
	if tr := transform.Of(r, c.Owner()); tr != nil {
		eye = tr.Position()
	}
	return GPUCameraUniform{
		ViewProj:        viewProj,
		InverseViewProj: viewProj.Inv(),
		Position:        eye.Vec4(1),
	}
}

// Of returns the Camera attached to id, or nil.
func Of(r registry.Registry, id registry.EntityID) *Camera {
	return registry.Get[*Camera](r, id)
}

// Main returns the first attached camera in attach order, or nil.
func Main(r registry.Registry) *Camera {
	cams := registry.All[*Camera](r)
	if len(cams) == 0 {
		return nil
	}
	return cams[0]
}
