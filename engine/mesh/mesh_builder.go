package mesh

import "sync"

// MeshBuilderOption is a functional option for configuring a Mesh.
type MeshBuilderOption func(*Mesh)

// WithLabel sets the debug label used for the mesh's GPU objects.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithLabel(label string) MeshBuilderOption {
	return func(m *Mesh) {
		m.label = label
	}
}

// WithGeometry sets the initial vertices and indices.
//
// Parameters:
//   - vertices: the vertices
//   - indices: the triangle indices
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithGeometry(vertices []Vertex, indices []uint32) MeshBuilderOption {
	return func(m *Mesh) {
		m.vertices = vertices
		m.indices = indices
	}
}

// WithPrimitive sets the initial geometry to a built-in shape.
//
// Parameters:
//   - p: the primitive
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithPrimitive(p Primitive) MeshBuilderOption {
	return func(m *Mesh) {
		m.vertices, m.indices = p.Geometry()
	}
}

// WithStatic marks the mesh static: after its first processed frame it is only re-uploaded when
// its geometry or Transform changes.
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithStatic() MeshBuilderOption {
	return func(m *Mesh) {
		m.static = true
	}
}

// WithDisabled creates the mesh excluded from rendering.
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithDisabled() MeshBuilderOption {
	return func(m *Mesh) {
		m.enabled = false
	}
}

// NewMesh creates an enabled, dirty Mesh. GPU objects are allocated after the mesh is attached.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Mesh: the new mesh
func NewMesh(options ...MeshBuilderOption) *Mesh {
	m := &Mesh{
		mu:      &sync.Mutex{},
		label:   "Mesh",
		enabled: true,
		dirty:   true,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}
