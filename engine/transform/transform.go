// Package transform provides the Transform component: position, rotation and scale of an entity.
package transform

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an entity in world space. Setters bump Version so views can tell
// whether the model matrix they last uploaded is stale.
type Transform struct {
	registry.Base

	mu       *sync.RWMutex
	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3
	static   bool
	version  uint64
}

var _ registry.Component = &Transform{}

func (*Transform) Type() registry.ComponentType {
	return registry.ComponentTransform
}

// Position returns the world-space position.
func (t *Transform) Position() mgl32.Vec3 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.position
}

// SetPosition sets the world-space position.
//
// Parameters:
//   - p: the new position
func (t *Transform) SetPosition(p mgl32.Vec3) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = p
	t.version++
}

// Translate moves the transform by delta.
//
// Parameters:
//   - delta: the offset to add to the position
func (t *Transform) Translate(delta mgl32.Vec3) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = t.position.Add(delta)
	t.version++
}

// Rotation returns the orientation quaternion.
func (t *Transform) Rotation() mgl32.Quat {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rotation
}

// SetRotation sets the orientation. The quaternion is normalized.
//
// Parameters:
//   - q: the new orientation
func (t *Transform) SetRotation(q mgl32.Quat) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rotation = q.Normalize()
	t.version++
}

// SetEuler sets the orientation from XYZ euler angles in degrees.
//
// Parameters:
//   - x, y, z: rotation around each axis in degrees
func (t *Transform) SetEuler(x, y, z float32) {
	t.SetRotation(mgl32.AnglesToQuat(mgl32.DegToRad(x), mgl32.DegToRad(y), mgl32.DegToRad(z), mgl32.XYZ))
}

// Scale returns the per-axis scale.
func (t *Transform) Scale() mgl32.Vec3 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scale
}

// SetScale sets the per-axis scale.
//
// Parameters:
//   - s: the new scale
func (t *Transform) SetScale(s mgl32.Vec3) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scale = s
	t.version++
}

// Static reports whether the transform is not expected to change after the first frame.
func (t *Transform) Static() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.static
}

// SetStatic marks the transform as static.
func (t *Transform) SetStatic(static bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.static = static
}

// Version increments on every setter call.
func (t *Transform) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// ModelMatrix returns translation * rotation * scale.
func (t *Transform) ModelMatrix() mgl32.Mat4 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return mgl32.Translate3D(t.position.X(), t.position.Y(), t.position.Z()).
		Mul4(t.rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.scale.X(), t.scale.Y(), t.scale.Z()))
}

// Forward returns the rotated -Z axis.
func (t *Transform) Forward() mgl32.Vec3 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rotation.Rotate(mgl32.Vec3{0, 0, -1}).Normalize()
}

// Up returns the rotated +Y axis.
func (t *Transform) Up() mgl32.Vec3 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rotation.Rotate(mgl32.Vec3{0, 1, 0}).Normalize()
}

// Of returns the Transform attached to id, or nil.
func Of(r registry.Registry, id registry.EntityID) *Transform {
	return registry.Get[*Transform](r, id)
}
