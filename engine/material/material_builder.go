package material

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaterialBuilderOption is a functional option for configuring a Material.
type MaterialBuilderOption func(*Material)

// WithLabel sets the debug label of the material's GPU objects.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - MaterialBuilderOption: option function to apply
func WithLabel(label string) MaterialBuilderOption {
	return func(m *Material) {
		m.label = label
	}
}

// WithColor sets the RGBA base color.
//
// Parameters:
//   - c: the base color
//
// Returns:
//   - MaterialBuilderOption: option function to apply
func WithColor(c mgl32.Vec4) MaterialBuilderOption {
	return func(m *Material) {
		m.color = c
	}
}

// WithMetallic sets the metallic factor.
//
// Parameters:
//   - v: the factor, clamped to [0, 1]
//
// Returns:
//   - MaterialBuilderOption: option function to apply
func WithMetallic(v float32) MaterialBuilderOption {
	return func(m *Material) {
		m.metallic = mgl32.Clamp(v, 0, 1)
	}
}

// WithRoughness sets the roughness factor.
//
// Parameters:
//   - v: the factor, clamped to [0, 1]
//
// Returns:
//   - MaterialBuilderOption: option function to apply
func WithRoughness(v float32) MaterialBuilderOption {
	return func(m *Material) {
		m.roughness = mgl32.Clamp(v, 0, 1)
	}
}

// WithAlbedo sets the albedo texture. Invalid textures keep the white placeholder.
//
// Parameters:
//   - tex: the RGBA texture
//
// Returns:
//   - MaterialBuilderOption: option function to apply
func WithAlbedo(tex *common.Texture) MaterialBuilderOption {
	return func(m *Material) {
		if tex.Validate() == nil {
			m.albedo = tex
		}
	}
}

// NewMaterial creates a white, fully rough, non-metallic Material with a 1x1 white albedo.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Material: the new material
func NewMaterial(options ...MaterialBuilderOption) *Material {
	m := &Material{
		mu:        &sync.Mutex{},
		label:     "Material",
		color:     mgl32.Vec4{1, 1, 1, 1},
		roughness: 1,
		albedo:    common.SolidTexture(255, 255, 255, 255),
		dirty:     true,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}
