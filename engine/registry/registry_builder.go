package registry

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"go.uber.org/zap"
)

// RegistryBuilderOption is a functional option for configuring a Registry.
type RegistryBuilderOption func(*registry)

// WithDevice hands the GPU device to the registry. The registry destroys it last.
//
// Parameters:
//   - device: the device
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithDevice(device gpu.Device) RegistryBuilderOption {
	return func(r *registry) {
		r.device = device
	}
}

// WithLogger sets the registry logger. Components and systems log through it.
//
// Parameters:
//   - logger: the zap logger (nil keeps the no-op default)
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) RegistryBuilderOption {
	return func(r *registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty Registry.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Registry: the new registry
func NewRegistry(options ...RegistryBuilderOption) Registry {
	r := &registry{
		mu:     &sync.RWMutex{},
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Get returns the component of type T attached to id, or the zero T.
// T is the pointer type of a component whose Type method does not dereference its receiver.
func Get[T Component](r Registry, id EntityID) T {
	var zero T
	c, ok := r.GetComponent(id, zero.Type()).(T)
	if !ok {
		return zero
	}
	return c
}

// All returns every attached component of type T in attach order.
func All[T Component](r Registry) []T {
	var zero T
	cs := r.GetComponents(zero.Type())
	out := make([]T, 0, len(cs))
	for _, c := range cs {
		if t, ok := c.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// SystemOf returns the registered system of type T, or the zero T.
func SystemOf[T System](r Registry) T {
	var zero T
	s, ok := r.GetSystem(zero.Type()).(T)
	if !ok {
		return zero
	}
	return s
}
