package transform

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// TransformBuilderOption is a functional option for configuring a Transform.
type TransformBuilderOption func(*Transform)

// WithPosition sets the initial position.
//
// Parameters:
//   - p: the position
//
// Returns:
//   - TransformBuilderOption: option function to apply
func WithPosition(p mgl32.Vec3) TransformBuilderOption {
	return func(t *Transform) {
		t.position = p
	}
}

// WithRotation sets the initial orientation.
//
// Parameters:
//   - q: the orientation, normalized on apply
//
// Returns:
//   - TransformBuilderOption: option function to apply
func WithRotation(q mgl32.Quat) TransformBuilderOption {
	return func(t *Transform) {
		t.rotation = q.Normalize()
	}
}

// WithScale sets the initial scale.
//
// Parameters:
//   - s: the scale
//
// Returns:
//   - TransformBuilderOption: option function to apply
func WithScale(s mgl32.Vec3) TransformBuilderOption {
	return func(t *Transform) {
		t.scale = s
	}
}

// WithStatic marks the transform as static.
//
// Returns:
//   - TransformBuilderOption: option function to apply
func WithStatic() TransformBuilderOption {
	return func(t *Transform) {
		t.static = true
	}
}

// NewTransform creates a Transform at the origin with identity rotation and unit scale.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Transform: the new transform
func NewTransform(options ...TransformBuilderOption) *Transform {
	t := &Transform{
		mu:       &sync.RWMutex{},
		rotation: mgl32.QuatIdent(),
		scale:    mgl32.Vec3{1, 1, 1},
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}
