// Package mesh provides the Mesh component and its GPU view: vertex, index and model-uniform
// buffer pairs plus the per-mesh transform compute pass that bakes the model matrix into the
// device vertex buffer.
package mesh

import (
	"encoding/binary"
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/common"
	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/resource"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// TransformLayoutKey is the device cache key of the transform pass descriptor layout.
const TransformLayoutKey = "mesh_transform"

// TransformLayout returns the device-global layout of the transform pass:
// binding 0 is the vertex storage buffer, binding 1 the model uniform.
func TransformLayout(device gpu.Device) gpu.DescriptorLayout {
	return device.DescriptorLayout(TransformLayoutKey, TransformProgram.Bindings(0)...)
}

// NewTransformPipeline compiles the transform compute pass.
//
// Parameters:
//   - device: the device to compile on
//
// Returns:
//   - gpu.Pipeline: the transform pipeline
func NewTransformPipeline(device gpu.Device) gpu.Pipeline {
	return device.CreateComputePipeline(gpu.PipelineDescriptor{
		Label:      "Mesh Transform Pipeline",
		Source:     TransformShaderSource,
		EntryPoint: "main",
		Layouts:    []gpu.DescriptorLayout{TransformLayout(device)},
	})
}

// Mesh is indexed triangle geometry. Its GPU view is allocated on first Prepare and lives until
// the component is detached.
type Mesh struct {
	registry.Base

	mu       *sync.Mutex
	label    string
	vertices []Vertex
	indices  []uint32
	enabled  bool
	static   bool
	dirty    bool

	processed        bool
	transformVersion uint64

	logger     *zap.Logger
	device     gpu.Device
	vertexPair resource.BufferPair
	indexPair  resource.BufferPair
	modelPair  resource.BufferPair
	set        gpu.DescriptorSet
	command    gpu.CommandBuffer
}

var _ registry.Component = &Mesh{}

func (*Mesh) Type() registry.ComponentType {
	return registry.ComponentMesh
}

func (m *Mesh) OnCreate(r registry.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger = r.Logger().With(zap.String("component", "mesh"), zap.Uint64("entity", uint64(m.Owner())))
	m.device = r.Device()
	if m.device == nil {
		m.logger.Error("mesh attached to a registry without a device")
		return
	}
	pairLogger := resource.WithPairLogger(m.logger)
	m.vertexPair = resource.NewBufferPair(m.device, m.label+" Vertices", GPUVertexSize,
		resource.WithBufferUsage(gpu.BufferUsageVertex), pairLogger)
	m.indexPair = resource.NewBufferPair(m.device, m.label+" Indices", GPUIndexSize,
		resource.WithBufferUsage(gpu.BufferUsageIndex), pairLogger)
	m.modelPair = resource.NewBufferPair(m.device, m.label+" Model", uint64((&GPUModelUniform{}).Size()),
		resource.WithBufferUsage(gpu.BufferUsageUniform), pairLogger)
	m.dirty = true
}

func (m *Mesh) OnDestroy(registry.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.command != nil {
		m.command.Destroy()
		m.command = nil
	}
	if m.set != nil {
		m.set.Destroy()
		m.set = nil
	}
	for _, p := range []resource.BufferPair{m.vertexPair, m.indexPair, m.modelPair} {
		if p != nil {
			p.Destroy()
		}
	}
	m.vertexPair, m.indexPair, m.modelPair = nil, nil, nil
	m.processed = false
}

// Label returns the debug label of the mesh.
func (m *Mesh) Label() string {
	return m.label
}

// SetGeometry replaces the vertices and indices and marks the mesh dirty.
//
// Parameters:
//   - vertices: the new vertices
//   - indices: the new triangle indices
func (m *Mesh) SetGeometry(vertices []Vertex, indices []uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vertices = vertices
	m.indices = indices
	m.dirty = true
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vertices)
}

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.indices)
}

// Enabled reports whether the mesh takes part in rendering.
func (m *Mesh) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// SetEnabled includes or excludes the mesh from rendering.
func (m *Mesh) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled != enabled {
		m.enabled = enabled
		m.dirty = true
	}
}

// Static reports whether the mesh skips re-upload after its first processed frame.
func (m *Mesh) Static() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.static
}

// SetStatic marks the mesh static.
func (m *Mesh) SetStatic(static bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.static = static
}

// MarkDirty forces a re-upload on the next frame.
func (m *Mesh) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = true
}

// NeedsUpload reports whether the next Prepare has work to do. A static mesh that has been
// processed is skipped until its geometry or its Transform changes.
//
// Parameters:
//   - r: the registry, used to read the sibling Transform version
//
// Returns:
//   - bool: true if Prepare should run this frame
func (m *Mesh) NeedsUpload(r registry.Registry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || m.vertexPair == nil {
		return false
	}
	if m.dirty || !m.processed || !m.static {
		return true
	}
	if tr := transform.Of(r, m.Owner()); tr != nil && tr.Version() != m.transformVersion {
		return true
	}
	return false
}

// Prepare applies the latest Transform, writes vertex, index and model data into the staging
// buffers and, when any buffer was (re)allocated, rebinds the descriptor set and re-records the
// transform command. Safe to run concurrently with Prepare on other meshes.
//
// Parameters:
//   - r: the registry, used to read the sibling Transform
//   - pipeline: the transform pipeline from NewTransformPipeline
//
// Returns:
//   - gpu.CommandBuffer: the compute command to submit this frame, nil if there is nothing to do
func (m *Mesh) Prepare(r registry.Registry, pipeline gpu.Pipeline) gpu.CommandBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.vertexPair == nil {
		return nil
	}
	vertexCount := len(m.vertices)
	if vertexCount == 0 {
		m.vertexPair.Ensure(0)
		m.indexPair.Ensure(0)
		m.dirty = false
		return nil
	}

	actions := []resource.Action{
		m.vertexPair.Ensure(uint64(vertexCount)),
		m.indexPair.Ensure(uint64(len(m.indices))),
		m.modelPair.Ensure(1),
	}

	model := mgl32.Ident4()
	if tr := transform.Of(r, m.Owner()); tr != nil {
		model = tr.ModelMatrix()
		m.transformVersion = tr.Version()
	}
	m.vertexPair.Upload(m.marshalVertices())
	if len(m.indices) > 0 {
		m.indexPair.Upload(marshalIndices(m.indices))
	}
	m.modelPair.Upload(newModelUniform(model, vertexCount).Marshal())

	if m.set == nil {
		m.set = m.device.CreateDescriptorSet(m.label+" Transform Set", TransformLayout(m.device))
		m.command = m.device.CreateCommandBuffer(m.label+" Transform", gpu.QueueCompute)
	}
	if changed(actions) || !m.command.Recorded() {
		if err := m.set.Update(
			gpu.DescriptorWrite{Binding: 0, Buffer: m.vertexPair.Device()},
			gpu.DescriptorWrite{Binding: 1, Buffer: m.modelPair.Device()},
		); err != nil {
			return nil
		}
		m.record(pipeline, uint32(vertexCount))
	}

	m.dirty = false
	m.processed = true
	return m.command
}

func (m *Mesh) record(pipeline gpu.Pipeline, vertexCount uint32) {
	m.logger.Debug("recording mesh transform", zap.Uint32("vertices", vertexCount))
	m.command.Begin()
	m.vertexPair.Record(m.command)
	m.indexPair.Record(m.command)
	m.modelPair.Record(m.command)
	if pipeline != nil {
		m.command.BindPipeline(pipeline)
		m.command.BindDescriptorSets(m.set)
		m.command.Dispatch(common.CeilDiv(vertexCount, TransformWorkgroupSize), 1, 1)
	}
	m.command.End()
}

// VertexBuffer returns the device-local vertex buffer, nil before the first Prepare.
func (m *Mesh) VertexBuffer() gpu.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vertexPair == nil {
		return nil
	}
	return m.vertexPair.Device()
}

// IndexBuffer returns the device-local index buffer, nil when the mesh has no indices.
func (m *Mesh) IndexBuffer() gpu.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexPair == nil {
		return nil
	}
	return m.indexPair.Device()
}

// VertexPair returns the vertex staging/device pair.
func (m *Mesh) VertexPair() resource.BufferPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vertexPair
}

// IndexPair returns the index staging/device pair.
func (m *Mesh) IndexPair() resource.BufferPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexPair
}

// Processed reports whether Prepare has uploaded the mesh at least once.
func (m *Mesh) Processed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed
}

func (m *Mesh) marshalVertices() []byte {
	buf := make([]byte, len(m.vertices)*GPUVertexSize)
	for i, v := range m.vertices {
		g := v.gpu()
		g.MarshalTo(buf[i*GPUVertexSize:])
	}
	return buf
}

func marshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*GPUIndexSize)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*GPUIndexSize:], idx)
	}
	return buf
}

func changed(actions []resource.Action) bool {
	for _, a := range actions {
		if a != resource.ActionUpdate {
			return true
		}
	}
	return false
}

// Of returns the Mesh attached to id, or nil.
func Of(r registry.Registry, id registry.EntityID) *Mesh {
	return registry.Get[*Mesh](r, id)
}
