package registry

import "fmt"

// ComponentType is the stable integer id of a component kind.
type ComponentType int

const (
	ComponentTransform ComponentType = iota
	ComponentMesh
	ComponentCamera
	ComponentLight
	ComponentMaterial

	// ComponentUser is the first id available to application-defined components.
	ComponentUser
)

// MaxComponentTypes bounds the per-entity component slots.
const MaxComponentTypes = 32

func (t ComponentType) String() string {
	switch t {
	case ComponentTransform:
		return "Transform"
	case ComponentMesh:
		return "Mesh"
	case ComponentCamera:
		return "Camera"
	case ComponentLight:
		return "Light"
	case ComponentMaterial:
		return "Material"
	}
	return fmt.Sprintf("Component(%d)", int(t))
}

func (t ComponentType) valid() bool {
	return t >= 0 && t < MaxComponentTypes
}

// Component is typed data attached to at most one entity.
// Type must not dereference its receiver; the generic helpers call it on nil pointers.
type Component interface {
	// Type returns the stable type id of the component.
	//
	// Returns:
	//   - ComponentType: the component type
	Type() ComponentType

	// Owner returns the entity the component is attached to, or NoEntity.
	//
	// Returns:
	//   - EntityID: the owning entity
	Owner() EntityID

	// SetOwner is called by the Registry when the component is attached or detached.
	//
	// Parameters:
	//   - id: the new owner, NoEntity on detach
	SetOwner(id EntityID)

	// Requires lists the sibling component types that must be attached before this one.
	// The Registry rejects the attach otherwise and refuses to detach a required sibling.
	//
	// Returns:
	//   - []ComponentType: required sibling types
	Requires() []ComponentType

	// OnCreate runs once after the component has been attached.
	//
	// Parameters:
	//   - r: the owning registry
	OnCreate(r Registry)

	// OnDestroy runs once before the component is detached.
	//
	// Parameters:
	//   - r: the owning registry
	OnDestroy(r Registry)
}

// Base supplies the owner back-reference and no-op hooks. Embed it by value.
type Base struct {
	owner    EntityID
	attached bool
}

func (b *Base) Owner() EntityID {
	if !b.attached {
		return NoEntity
	}
	return b.owner
}

func (b *Base) SetOwner(id EntityID) {
	b.owner = id
	b.attached = id != NoEntity
}

func (b *Base) Requires() []ComponentType { return nil }
func (b *Base) OnCreate(Registry)         {}
func (b *Base) OnDestroy(Registry)        {}

// SystemType is the stable integer id of a system.
type SystemType int

const (
	SystemRendering SystemType = iota

	// SystemUser is the first id available to application-defined systems.
	SystemUser
)

// MaxSystemTypes bounds the number of registered systems.
const MaxSystemTypes = 16

func (t SystemType) String() string {
	if t == SystemRendering {
		return "Rendering"
	}
	return fmt.Sprintf("System(%d)", int(t))
}

// System is a process-wide singleton updated once per tick.
type System interface {
	// Type returns the stable type id of the system.
	//
	// Returns:
	//   - SystemType: the system type
	Type() SystemType

	// Update runs one tick.
	//
	// Parameters:
	//   - r: the registry driving the tick
	Update(r Registry)
}

// Destroyer is implemented by systems that own resources released when the registry is destroyed.
type Destroyer interface {
	Destroy(r Registry)
}
