// Package material provides the Material component: a base color, metallic and roughness
// factors and an albedo texture, uploaded as a uniform buffer pair and a sampled image pair.
package material

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/common"
	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/resource"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// LayoutKey is the device cache key of the material descriptor layout.
const LayoutKey = "material"

// Layout returns the device-global material layout: binding 0 is the uniform, binding 1 the
// albedo image and binding 2 its sampler.
func Layout(device gpu.Device) gpu.DescriptorLayout {
	return device.DescriptorLayout(LayoutKey,
		gpu.DescriptorBinding{Binding: 0, Kind: gpu.DescriptorUniformBuffer},
		gpu.DescriptorBinding{Binding: 1, Kind: gpu.DescriptorSampledImage},
		gpu.DescriptorBinding{Binding: 2, Kind: gpu.DescriptorSampler},
	)
}

// Material describes the surface of the mesh on the same entity.
type Material struct {
	registry.Base

	mu          *sync.Mutex
	label       string
	color       mgl32.Vec4
	metallic    float32
	roughness   float32
	albedo      *common.Texture
	dirty       bool
	albedoDirty bool
	processed   bool
	uniformPair resource.BufferPair
	albedoPair  resource.ImagePair
	sampler     gpu.Sampler
	set         gpu.DescriptorSet
	command     gpu.CommandBuffer
	device      gpu.Device
	logger      *zap.Logger
}

var _ registry.Component = &Material{}

func (*Material) Type() registry.ComponentType {
	return registry.ComponentMaterial
}

func (m *Material) OnCreate(r registry.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger = r.Logger().With(zap.String("component", "material"), zap.Uint64("entity", uint64(m.Owner())))
	m.device = r.Device()
	if m.device == nil {
		m.logger.Error("material attached to a registry without a device")
		return
	}
	m.uniformPair = resource.NewBufferPair(m.device, m.label+" Uniform", GPUMaterialSize,
		resource.WithBufferUsage(gpu.BufferUsageUniform), resource.WithPairLogger(m.logger))
	m.albedoPair = resource.NewImagePair(m.device, m.label+" Albedo", gpu.FormatRGBA8Unorm, m.logger)
	m.command = m.device.CreateCommandBuffer(m.label+" Transfer", gpu.QueueTransfer)
	m.dirty = true
	m.albedoDirty = true
}

func (m *Material) OnDestroy(registry.Registry) {
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
	if m.sampler != nil {
		m.sampler.Destroy()
		m.sampler = nil
	}
	if m.uniformPair != nil {
		m.uniformPair.Destroy()
		m.uniformPair = nil
	}
	if m.albedoPair != nil {
		m.albedoPair.Destroy()
		m.albedoPair = nil
	}
	m.processed = false
}

// Color returns the RGBA base color.
func (m *Material) Color() mgl32.Vec4 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.color
}

// SetColor sets the RGBA base color.
func (m *Material) SetColor(c mgl32.Vec4) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.color = c
	m.dirty = true
}

// Metallic returns the metallic factor.
func (m *Material) Metallic() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metallic
}

// SetMetallic sets the metallic factor, clamped to [0, 1].
func (m *Material) SetMetallic(v float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metallic = mgl32.Clamp(v, 0, 1)
	m.dirty = true
}

// Roughness returns the roughness factor.
func (m *Material) Roughness() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roughness
}

// SetRoughness sets the roughness factor, clamped to [0, 1].
func (m *Material) SetRoughness(v float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roughness = mgl32.Clamp(v, 0, 1)
	m.dirty = true
}

// SetAlbedo replaces the albedo texture. An invalid texture is logged and ignored.
//
// Parameters:
//   - tex: the RGBA texture
//
// Returns:
//   - error: the validation error, if any
func (m *Material) SetAlbedo(tex *common.Texture) error {
	if err := tex.Validate(); err != nil {
		if m.logger != nil {
			m.logger.Error("rejecting albedo texture", zap.Error(err))
		}
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.albedo = tex
	m.albedoDirty = true
	m.dirty = true
	return nil
}

// NeedsUpload reports whether the next Prepare has work to do.
func (m *Material) NeedsUpload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uniformPair != nil && (m.dirty || !m.processed)
}

// Prepare writes the uniform and, if it changed, the albedo texels into staging. The descriptor
// set is rebound and the transfer command re-recorded only when a pair was (re)allocated.
//
// Returns:
//   - gpu.CommandBuffer: the transfer command to submit this frame, nil if detached or on a
//     descriptor mismatch
func (m *Material) Prepare() gpu.CommandBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.uniformPair == nil {
		return nil
	}
	uniformAction := m.uniformPair.Ensure(1)
	m.uniformPair.Upload((&GPUMaterial{Color: m.color, Metallic: m.metallic, Roughness: m.roughness}).Marshal())

	imageAction := m.albedoPair.Ensure(gpu.Extent{Width: m.albedo.Width, Height: m.albedo.Height})
	if m.albedoDirty || imageAction != resource.ActionUpdate {
		m.albedoPair.Upload(m.albedo.Pixels)
		m.albedoDirty = false
	}

	if m.set == nil {
		m.set = m.device.CreateDescriptorSet(m.label+" Set", Layout(m.device))
		m.sampler = m.device.CreateSampler(m.label + " Sampler")
	}
	if uniformAction != resource.ActionUpdate || imageAction != resource.ActionUpdate || !m.command.Recorded() {
		if err := m.set.Update(
			gpu.DescriptorWrite{Binding: 0, Buffer: m.uniformPair.Device()},
			gpu.DescriptorWrite{Binding: 1, Image: m.albedoPair.Image()},
			gpu.DescriptorWrite{Binding: 2, Sampler: m.sampler},
		); err != nil {
			return nil
		}
		m.command.Begin()
		m.uniformPair.Record(m.command)
		m.albedoPair.Record(m.command)
		m.command.End()
	}

	m.dirty = false
	m.processed = true
	return m.command
}

// DescriptorSet returns the material descriptor set, nil before the first Prepare.
func (m *Material) DescriptorSet() gpu.DescriptorSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set
}

// AlbedoPair returns the staging/image pair of the albedo texture.
func (m *Material) AlbedoPair() resource.ImagePair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.albedoPair
}

// Of returns the Material attached to id, or nil.
func Of(r registry.Registry, id registry.EntityID) *Material {
	return registry.Get[*Material](r, id)
}
