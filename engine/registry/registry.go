// Package registry owns entities, their components and the singleton systems driven once per
// tick. It is the explicit context handed to every component hook and system update.
package registry

import (
	"errors"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"go.uber.org/zap"
)

var (
	ErrDuplicateComponent = errors.New("registry: entity already has a component of this type")
	ErrMissingDependency  = errors.New("registry: required sibling component is not attached")
	ErrComponentRequired  = errors.New("registry: component is required by a sibling")
	ErrUnknownEntity      = errors.New("registry: unknown or destroyed entity")
	ErrUnknownType        = errors.New("registry: type id out of range")
	ErrDuplicateSystem    = errors.New("registry: system of this type already registered")
	ErrNilComponent       = errors.New("registry: nil component")
	ErrNilSystem          = errors.New("registry: nil system")
	ErrRegistryDestroyed  = errors.New("registry: registry has been destroyed")
)

// Registry stores entities, components and systems. It is safe for concurrent readers; hooks
// and system updates run without the registry lock held so they may call back into it.
type Registry interface {
	// Device returns the GPU device the registry tears down last. May be nil.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// Logger returns the registry logger.
	//
	// Returns:
	//   - *zap.Logger: the logger
	Logger() *zap.Logger

	// CreateEntity allocates a new entity with no components.
	//
	// Returns:
	//   - EntityID: the new entity
	CreateEntity() EntityID

	// DestroyEntity runs OnDestroy for every component in reverse attach order, detaches them and
	// frees the id. Destroying a stale id is a no-op.
	//
	// Parameters:
	//   - id: the entity to destroy
	DestroyEntity(id EntityID)

	// Alive reports whether id refers to a live entity.
	//
	// Parameters:
	//   - id: the entity id
	//
	// Returns:
	//   - bool: true if the entity exists
	Alive(id EntityID) bool

	// Entities returns every live entity in index order.
	//
	// Returns:
	//   - []EntityID: the live entities
	Entities() []EntityID

	// AddComponent attaches c to id and then runs c.OnCreate.
	//
	// Parameters:
	//   - id: the owning entity
	//   - c: the component to attach
	//
	// Returns:
	//   - error: ErrNilComponent, ErrDuplicateComponent, ErrMissingDependency, ErrUnknownEntity,
	//     ErrUnknownType or ErrRegistryDestroyed; nothing changes on error
	AddComponent(id EntityID, c Component) error

	// RemoveComponent runs OnDestroy on the component of type t and then detaches it.
	// Removing an absent type is a no-op.
	//
	// Parameters:
	//   - id: the owning entity
	//   - t: the component type
	//
	// Returns:
	//   - error: ErrComponentRequired when a sibling requires t, ErrUnknownEntity or
	//     ErrRegistryDestroyed
	RemoveComponent(id EntityID, t ComponentType) error

	// ReplaceComponent removes the component of c's type, if any, and attaches c.
	//
	// Parameters:
	//   - id: the owning entity
	//   - c: the replacement component
	//
	// Returns:
	//   - error: ErrNilComponent or any error of RemoveComponent or AddComponent
	ReplaceComponent(id EntityID, c Component) error

	// GetComponent returns the component of type t attached to id, or nil.
	//
	// Parameters:
	//   - id: the owning entity
	//   - t: the component type
	//
	// Returns:
	//   - Component: the component or nil
	GetComponent(id EntityID, t ComponentType) Component

	// GetComponents returns every attached component of type t in attach order.
	//
	// Parameters:
	//   - t: the component type
	//
	// Returns:
	//   - []Component: a copy of the per-type index, empty if none
	GetComponents(t ComponentType) []Component

	// AddSystem registers a singleton system.
	//
	// Parameters:
	//   - s: the system
	//
	// Returns:
	//   - error: ErrNilSystem, ErrDuplicateSystem, ErrUnknownType or ErrRegistryDestroyed
	AddSystem(s System) error

	// GetSystem returns the system registered for t, or nil.
	//
	// Parameters:
	//   - t: the system type
	//
	// Returns:
	//   - System: the system or nil
	GetSystem(t SystemType) System

	// RemoveSystem unregisters the system of type t without destroying it.
	//
	// Parameters:
	//   - t: the system type
	//
	// Returns:
	//   - System: the removed system, nil if none was registered
	RemoveSystem(t SystemType) System

	// IterateSystems calls Update once on every system in registration order.
	IterateSystems()

	// Destroy waits for the device to go idle, destroys every entity, then every system, then the
	// device. Later calls are no-ops.
	Destroy()

	// Destroyed reports whether Destroy has run.
	Destroyed() bool
}

type registry struct {
	mu          *sync.RWMutex
	logger      *zap.Logger
	device      gpu.Device
	entities    entityPool
	index       [MaxComponentTypes][]Component
	systems     [MaxSystemTypes]System
	systemOrder []SystemType
	destroyed   bool
}

var _ Registry = &registry{}

func (r *registry) Device() gpu.Device {
	return r.device
}

func (r *registry) Logger() *zap.Logger {
	return r.logger
}

func (r *registry) CreateEntity() EntityID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		r.logger.Error("create entity", zap.Error(ErrRegistryDestroyed))
		return NoEntity
	}
	return r.entities.create()
}

func (r *registry) DestroyEntity(id EntityID) {
	if r.Destroyed() {
		r.logger.Error("destroy entity", zap.Uint64("entity", uint64(id)), zap.Error(ErrRegistryDestroyed))
		return
	}
	r.destroyEntity(id)
}

func (r *registry) destroyEntity(id EntityID) {
	r.mu.RLock()
	s := r.entities.slot(id)
	if s == nil {
		r.mu.RUnlock()
		return
	}
	order := slices.Clone(s.order)
	r.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		r.detach(id, order[i], false)
	}

	r.mu.Lock()
	r.entities.release(id)
	r.mu.Unlock()
}

func (r *registry) Alive(id EntityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities.slot(id) != nil
}

func (r *registry) Entities() []EntityID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities.live()
}

func (r *registry) AddComponent(id EntityID, c Component) error {
	if c == nil {
		r.logger.Error("add component rejected", zap.Uint64("entity", uint64(id)), zap.Error(ErrNilComponent))
		return ErrNilComponent
	}
	t := c.Type()
	r.mu.Lock()
	err := r.attach(id, c)
	r.mu.Unlock()
	if err != nil {
		r.logger.Error("add component rejected",
			zap.Uint64("entity", uint64(id)),
			zap.Stringer("type", t),
			zap.Error(err))
		return err
	}
	c.OnCreate(r)
	return nil
}

// attach links c into the entity slot and the per-type index; r.mu must be held.
func (r *registry) attach(id EntityID, c Component) error {
	if r.destroyed {
		return ErrRegistryDestroyed
	}
	t := c.Type()
	if !t.valid() {
		return ErrUnknownType
	}
	s := r.entities.slot(id)
	if s == nil {
		return ErrUnknownEntity
	}
	if s.components[t] != nil {
		return ErrDuplicateComponent
	}
	for _, dep := range c.Requires() {
		if !dep.valid() || s.components[dep] == nil {
			return ErrMissingDependency
		}
	}
	c.SetOwner(id)
	s.components[t] = c
	s.order = append(s.order, t)
	r.index[t] = append(r.index[t], c)
	return nil
}

func (r *registry) RemoveComponent(id EntityID, t ComponentType) error {
	return r.detach(id, t, true)
}

// detach runs OnDestroy outside the lock, then unlinks the component.
func (r *registry) detach(id EntityID, t ComponentType, checkRequired bool) error {
	r.mu.RLock()
	var err error
	var c Component
	switch s := r.entities.slot(id); {
	case r.destroyed && checkRequired:
		err = ErrRegistryDestroyed
	case !t.valid():
		err = ErrUnknownType
	case s == nil:
		err = ErrUnknownEntity
	default:
		c = s.components[t]
		if c != nil && checkRequired && requiredBySibling(s, t) {
			err = ErrComponentRequired
		}
	}
	r.mu.RUnlock()
	if err != nil {
		r.logger.Error("remove component rejected",
			zap.Uint64("entity", uint64(id)),
			zap.Stringer("type", t),
			zap.Error(err))
		return err
	}
	if c == nil {
		return nil
	}

	c.OnDestroy(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.entities.slot(id); s != nil && s.components[t] == c {
		s.components[t] = nil
		s.order = slices.DeleteFunc(s.order, func(o ComponentType) bool { return o == t })
	}
	if i := slices.Index(r.index[t], c); i >= 0 {
		r.index[t] = slices.Delete(r.index[t], i, i+1)
	}
	c.SetOwner(NoEntity)
	return nil
}

func requiredBySibling(s *entitySlot, t ComponentType) bool {
	for _, o := range s.order {
		if o == t {
			continue
		}
		if slices.Contains(s.components[o].Requires(), t) {
			return true
		}
	}
	return false
}

func (r *registry) ReplaceComponent(id EntityID, c Component) error {
	if c == nil {
		r.logger.Error("replace component rejected", zap.Uint64("entity", uint64(id)), zap.Error(ErrNilComponent))
		return ErrNilComponent
	}
	if err := r.RemoveComponent(id, c.Type()); err != nil {
		return err
	}
	return r.AddComponent(id, c)
}

func (r *registry) GetComponent(id EntityID, t ComponentType) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !t.valid() {
		return nil
	}
	s := r.entities.slot(id)
	if s == nil {
		return nil
	}
	return s.components[t]
}

func (r *registry) GetComponents(t ComponentType) []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !t.valid() {
		return nil
	}
	return slices.Clone(r.index[t])
}

func (r *registry) AddSystem(s System) error {
	if s == nil {
		r.logger.Error("add system rejected", zap.Error(ErrNilSystem))
		return ErrNilSystem
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := s.Type()
	var err error
	switch {
	case r.destroyed:
		err = ErrRegistryDestroyed
	case t < 0 || t >= MaxSystemTypes:
		err = ErrUnknownType
	case r.systems[t] != nil:
		err = ErrDuplicateSystem
	}
	if err != nil {
		r.logger.Error("add system rejected", zap.Stringer("type", t), zap.Error(err))
		return err
	}
	r.systems[t] = s
	r.systemOrder = append(r.systemOrder, t)
	return nil
}

func (r *registry) GetSystem(t SystemType) System {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t < 0 || t >= MaxSystemTypes {
		return nil
	}
	return r.systems[t]
}

func (r *registry) RemoveSystem(t SystemType) System {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t < 0 || t >= MaxSystemTypes || r.systems[t] == nil {
		return nil
	}
	s := r.systems[t]
	r.systems[t] = nil
	r.systemOrder = slices.DeleteFunc(r.systemOrder, func(o SystemType) bool { return o == t })
	return s
}

func (r *registry) IterateSystems() {
	r.mu.RLock()
	if r.destroyed {
		r.mu.RUnlock()
		r.logger.Error("iterate systems", zap.Error(ErrRegistryDestroyed))
		return
	}
	systems := make([]System, 0, len(r.systemOrder))
	for _, t := range r.systemOrder {
		systems = append(systems, r.systems[t])
	}
	r.mu.RUnlock()

	for _, s := range systems {
		s.Update(r)
	}
}

func (r *registry) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	r.mu.Unlock()

	if r.device != nil {
		for f := gpu.QueueGraphics; f <= gpu.QueuePresent; f++ {
			r.device.Queue(f).WaitIdle()
		}
		r.device.WaitIdle()
	}

	for _, id := range r.Entities() {
		r.destroyEntity(id)
	}

	r.mu.Lock()
	order := slices.Clone(r.systemOrder)
	systems := r.systems
	r.systems = [MaxSystemTypes]System{}
	r.systemOrder = nil
	r.mu.Unlock()
	for i := len(order) - 1; i >= 0; i-- {
		if d, ok := systems[order[i]].(Destroyer); ok {
			d.Destroy(r)
		}
	}

	if r.device != nil {
		r.device.Destroy()
	}
	r.logger.Debug("registry destroyed")
}

func (r *registry) Destroyed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.destroyed
}
