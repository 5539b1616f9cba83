package light

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultIntensity is the intensity of a new light.
	DefaultIntensity = 1.0
	// DefaultRange is the attenuation cutoff of a new point light.
	DefaultRange = 10.0
)

// LightBuilderOption is a function that configures a Light during construction.
type LightBuilderOption func(*Light)

// WithLabel is an option builder that sets the debug label of the light's GPU objects.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - LightBuilderOption: a function that applies the label option to a Light
func WithLabel(label string) LightBuilderOption {
	return func(l *Light) {
		l.label = label
	}
}

// WithType is an option builder that sets the kind of light source.
//
// Parameters:
//   - t: the light type
//
// Returns:
//   - LightBuilderOption: a function that applies the type option to a Light
func WithType(t LightType) LightBuilderOption {
	return func(l *Light) {
		l.lightType = t
	}
}

// WithColor is an option builder that sets the RGBA color of the light.
//
// Parameters:
//   - c: the color
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a Light
func WithColor(c mgl32.Vec4) LightBuilderOption {
	return func(l *Light) {
		l.color = c
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a Light
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *Light) {
		l.intensity = intensity
	}
}

// WithRange is an option builder that sets the attenuation cutoff distance.
//
// Parameters:
//   - r: the range in world units
//
// Returns:
//   - LightBuilderOption: a function that applies the range option to a Light
func WithRange(r float32) LightBuilderOption {
	return func(l *Light) {
		l.lightRange = r
	}
}

// WithStatic is an option builder that marks the light static.
//
// Returns:
//   - LightBuilderOption: a function that applies the static option to a Light
func WithStatic() LightBuilderOption {
	return func(l *Light) {
		l.static = true
	}
}

// NewLight creates an enabled white point light with intensity 1 and range 10.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Light: the new light
func NewLight(options ...LightBuilderOption) *Light {
	l := &Light{
		mu:         &sync.Mutex{},
		label:      "Light",
		lightType:  LightTypePoint,
		color:      mgl32.Vec4{1, 1, 1, 1},
		intensity:  DefaultIntensity,
		lightRange: DefaultRange,
		enabled:    true,
		forward:    mgl32.Vec3{0, 0, -1},
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}
