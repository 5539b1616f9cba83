package registry

import (
	"errors"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
)

type counted struct {
	Base
	kind     ComponentType
	requires []ComponentType
	created  int
	destroys int
	log      *[]string
	name     string
}

func (c *counted) Type() ComponentType       { return c.kind }
func (c *counted) Requires() []ComponentType { return c.requires }
func (c *counted) OnCreate(Registry) {
	c.created++
	if c.log != nil {
		*c.log = append(*c.log, "create "+c.name)
	}
}
func (c *counted) OnDestroy(Registry) {
	c.destroys++
	if c.log != nil {
		*c.log = append(*c.log, "destroy "+c.name)
	}
}

type position struct {
	Base
	x float32
}

func (*position) Type() ComponentType { return ComponentUser }

type recordingSystem struct {
	kind      SystemType
	updates   int
	destroyed int
	log       *[]string
}

func (s *recordingSystem) Type() SystemType { return s.kind }
func (s *recordingSystem) Update(Registry) {
	s.updates++
	if s.log != nil {
		*s.log = append(*s.log, s.kind.String())
	}
}
func (s *recordingSystem) Destroy(Registry) { s.destroyed++ }

type physicsSystem struct{ steps int }

func (*physicsSystem) Type() SystemType  { return SystemUser }
func (p *physicsSystem) Update(Registry) { p.steps++ }

func indexed(r Registry, c Component) bool {
	return slices.Contains(r.GetComponents(c.Type()), c)
}

// go test -run ^TestHooksRunOncePerAddAndRemove$ ./engine/registry -count 1
func TestHooksRunOncePerAddAndRemove(t *testing.T) {
	r := NewRegistry()
	e := r.CreateEntity()

	for i := 1; i <= 3; i++ {
		c := &counted{kind: ComponentMesh}
		if err := r.AddComponent(e, c); err != nil {
			t.Fatalf("AddComponent failed: %v", err)
		}
		if c.created != 1 {
			t.Errorf("Expected OnCreate once, got %d", c.created)
		}
		if c.Owner() != e {
			t.Errorf("Expected owner %d, got %d", e, c.Owner())
		}
		if err := r.RemoveComponent(e, ComponentMesh); err != nil {
			t.Fatalf("RemoveComponent failed: %v", err)
		}
		if err := r.RemoveComponent(e, ComponentMesh); err != nil {
			t.Errorf("Expected second remove to be a no-op, got %v", err)
		}
		if c.destroys != 1 {
			t.Errorf("Expected OnDestroy once, got %d", c.destroys)
		}
		if c.Owner() != NoEntity {
			t.Error("Expected detached component to have no owner")
		}
	}
}

// go test -run ^TestDuplicateComponentRejected$ ./engine/registry -count 1
func TestDuplicateComponentRejected(t *testing.T) {
	r := NewRegistry()
	e := r.CreateEntity()
	first := &counted{kind: ComponentLight}
	second := &counted{kind: ComponentLight}

	if err := r.AddComponent(e, first); err != nil {
		t.Fatal(err)
	}
	if err := r.AddComponent(e, second); !errors.Is(err, ErrDuplicateComponent) {
		t.Errorf("Expected ErrDuplicateComponent, got %v", err)
	}
	if second.created != 0 || second.Owner() != NoEntity || indexed(r, second) {
		t.Error("Expected a rejected add to have no side effects")
	}
	if r.GetComponent(e, ComponentLight) != first {
		t.Error("Expected the first component to stay attached")
	}
}

// go test -run ^TestNilArgumentsRejected$ ./engine/registry -count 1
func TestNilArgumentsRejected(t *testing.T) {
	r := NewRegistry()
	e := r.CreateEntity()
	existing := &counted{kind: ComponentMesh}
	if err := r.AddComponent(e, existing); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{name: "add component", call: func() error { return r.AddComponent(e, nil) }, want: ErrNilComponent},
		{name: "replace component", call: func() error { return r.ReplaceComponent(e, nil) }, want: ErrNilComponent},
		{name: "add system", call: func() error { return r.AddSystem(nil) }, want: ErrNilSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if r.GetComponent(e, ComponentMesh) != existing || existing.destroys != 0 {
		t.Error("Expected the attached component to be untouched")
	}
	r.IterateSystems()
}

// go test -run ^TestIndexConsistency$ ./engine/registry -count 1
func TestIndexConsistency(t *testing.T) {
	r := NewRegistry()
	var ids []EntityID
	var comps []*counted
	for range 5 {
		e := r.CreateEntity()
		c := &counted{kind: ComponentMesh}
		_ = r.AddComponent(e, c)
		ids = append(ids, e)
		comps = append(comps, c)
	}
	_ = r.RemoveComponent(ids[1], ComponentMesh)
	r.DestroyEntity(ids[3])

	for i, e := range ids {
		local := r.GetComponent(e, ComponentMesh)
		global := indexed(r, comps[i])
		if (local != nil) != global {
			t.Errorf("Entity %d: local presence %v, index presence %v", i, local != nil, global)
		}
	}
	if n := len(r.GetComponents(ComponentMesh)); n != 3 {
		t.Errorf("Expected 3 indexed meshes, got %d", n)
	}
	if got := r.GetComponents(ComponentMesh); got[0] != comps[0] || got[1] != comps[2] || got[2] != comps[4] {
		t.Error("Expected the index to keep attach order")
	}
}

// go test -run ^TestDependencies$ ./engine/registry -count 1
func TestDependencies(t *testing.T) {
	r := NewRegistry()
	e := r.CreateEntity()
	light := &counted{kind: ComponentLight, requires: []ComponentType{ComponentTransform}}

	if err := r.AddComponent(e, light); !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("Expected ErrMissingDependency, got %v", err)
	}
	if light.created != 0 {
		t.Error("Expected OnCreate not to run for a rejected add")
	}

	transform := &counted{kind: ComponentTransform}
	_ = r.AddComponent(e, transform)
	if err := r.AddComponent(e, light); err != nil {
		t.Fatalf("Expected add to succeed once the dependency is attached, got %v", err)
	}
	if err := r.RemoveComponent(e, ComponentTransform); !errors.Is(err, ErrComponentRequired) {
		t.Errorf("Expected ErrComponentRequired, got %v", err)
	}
	if transform.destroys != 0 {
		t.Error("Expected a rejected remove not to run OnDestroy")
	}
	_ = r.RemoveComponent(e, ComponentLight)
	if err := r.RemoveComponent(e, ComponentTransform); err != nil {
		t.Errorf("Expected remove to succeed once no sibling requires it, got %v", err)
	}
}

// go test -run ^TestDestroyEntityReverseOrder$ ./engine/registry -count 1
func TestDestroyEntityReverseOrder(t *testing.T) {
	r := NewRegistry()
	e := r.CreateEntity()
	var log []string
	_ = r.AddComponent(e, &counted{kind: ComponentTransform, name: "transform", log: &log})
	_ = r.AddComponent(e, &counted{kind: ComponentMesh, name: "mesh", log: &log})
	_ = r.AddComponent(e, &counted{kind: ComponentLight, name: "light", log: &log, requires: []ComponentType{ComponentTransform}})

	r.DestroyEntity(e)
	r.DestroyEntity(e)

	want := []string{"create transform", "create mesh", "create light", "destroy light", "destroy mesh", "destroy transform"}
	if !slices.Equal(log, want) {
		t.Errorf("Expected hook order %v, got %v", want, log)
	}
	if r.Alive(e) {
		t.Error("Expected entity to be dead")
	}
	if err := r.AddComponent(e, &counted{kind: ComponentMesh}); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Expected ErrUnknownEntity for a stale id, got %v", err)
	}

	reused := r.CreateEntity()
	if reused.Index() != e.Index() || reused.Generation() != e.Generation()+1 {
		t.Errorf("Expected index %d to be reused with a new generation, got %d/%d", e.Index(), reused.Index(), reused.Generation())
	}
}

// go test -run ^TestGenericHelpers$ ./engine/registry -count 1
func TestGenericHelpers(t *testing.T) {
	r := NewRegistry()
	e := r.CreateEntity()
	p := &position{x: 4}
	_ = r.AddComponent(e, p)

	if got := Get[*position](r, e); got != p {
		t.Errorf("Expected Get to return the attached component, got %v", got)
	}
	if got := Get[*position](r, r.CreateEntity()); got != nil {
		t.Errorf("Expected nil for an entity without the component, got %v", got)
	}
	if all := All[*position](r); len(all) != 1 || all[0].x != 4 {
		t.Errorf("Unexpected All result %v", all)
	}

	s := &physicsSystem{}
	_ = r.AddSystem(s)
	if SystemOf[*physicsSystem](r) != s {
		t.Error("Expected SystemOf to return the registered system")
	}
}

// go test -run ^TestSystems$ ./engine/registry -count 1
func TestSystems(t *testing.T) {
	r := NewRegistry()
	var log []string
	a := &recordingSystem{kind: SystemUser + 1, log: &log}
	b := &recordingSystem{kind: SystemRendering, log: &log}
	_ = r.AddSystem(a)
	_ = r.AddSystem(b)
	if err := r.AddSystem(&recordingSystem{kind: SystemRendering}); !errors.Is(err, ErrDuplicateSystem) {
		t.Errorf("Expected ErrDuplicateSystem, got %v", err)
	}

	r.IterateSystems()
	r.IterateSystems()
	if want := []string{"System(2)", "Rendering", "System(2)", "Rendering"}; !slices.Equal(log, want) {
		t.Errorf("Expected registration order %v, got %v", want, log)
	}

	if r.RemoveSystem(SystemUser+1) != a || r.GetSystem(SystemUser+1) != nil {
		t.Error("Expected RemoveSystem to unregister the system")
	}
	r.IterateSystems()
	if a.updates != 2 || b.updates != 3 {
		t.Errorf("Expected 2 and 3 updates, got %d and %d", a.updates, b.updates)
	}
}

// go test -run ^TestDestroy$ ./engine/registry -count 1
func TestDestroy(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	r := NewRegistry(WithDevice(d))
	e := r.CreateEntity()
	c := &counted{kind: ComponentMesh}
	_ = r.AddComponent(e, c)
	s := &recordingSystem{kind: SystemRendering}
	_ = r.AddSystem(s)

	r.Destroy()
	r.Destroy()

	if c.destroys != 1 {
		t.Errorf("Expected component OnDestroy once, got %d", c.destroys)
	}
	if s.destroyed != 1 {
		t.Errorf("Expected system Destroy once, got %d", s.destroyed)
	}
	stats := d.Stats()
	if !stats.DeviceDestroyed || stats.IdleWaits == 0 {
		t.Errorf("Expected an idle wait and device destruction, got %+v", stats)
	}

	if id := r.CreateEntity(); id != NoEntity {
		t.Error("Expected CreateEntity on a destroyed registry to return NoEntity")
	}
	if err := r.AddComponent(e, &counted{kind: ComponentLight}); !errors.Is(err, ErrRegistryDestroyed) {
		t.Errorf("Expected ErrRegistryDestroyed, got %v", err)
	}
	if err := r.AddSystem(&recordingSystem{kind: SystemUser}); !errors.Is(err, ErrRegistryDestroyed) {
		t.Errorf("Expected ErrRegistryDestroyed, got %v", err)
	}
	r.IterateSystems()
	if s.updates != 0 {
		t.Error("Expected no updates after destroy")
	}
}
