// Package light provides the Light component and its GPU view: a 64-byte light record in a
// staging/device buffer pair, copied on the transfer queue.
package light

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/resource"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// LightType identifies the kind of light source.
type LightType uint32

const (
	// LightTypePoint emits in all directions from the entity position and attenuates up to Range.
	LightTypePoint LightType = iota

	// LightTypeDirectional has no position, only the entity's forward direction.
	// It is never attenuated and is selected for every mesh.
	LightTypeDirectional
)

func (t LightType) String() string {
	switch t {
	case LightTypePoint:
		return "point"
	case LightTypeDirectional:
		return "directional"
	}
	return fmt.Sprintf("LightType(%d)", uint32(t))
}

// ParseLightType maps a name onto a LightType.
//
// Parameters:
//   - s: "point" or "directional" (case-insensitive)
//
// Returns:
//   - LightType: the light type
//   - error: error if the name is unknown
func ParseLightType(s string) (LightType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point", "":
		return LightTypePoint, nil
	case "directional":
		return LightTypeDirectional, nil
	}
	return 0, fmt.Errorf("light: unknown light type %q", s)
}

// Light is a light source placed by its entity's Transform.
type Light struct {
	registry.Base

	mu         *sync.Mutex
	label      string
	lightType  LightType
	color      mgl32.Vec4
	intensity  float32
	lightRange float32
	enabled    bool
	static     bool
	dirty      bool

	position         mgl32.Vec3
	forward          mgl32.Vec3
	processed        bool
	transformVersion uint64

	logger  *zap.Logger
	pair    resource.BufferPair
	command gpu.CommandBuffer
}

var _ registry.Component = &Light{}

func (*Light) Type() registry.ComponentType {
	return registry.ComponentLight
}

func (*Light) Requires() []registry.ComponentType {
	return []registry.ComponentType{registry.ComponentTransform}
}

func (l *Light) OnCreate(r registry.Registry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger = r.Logger().With(zap.String("component", "light"), zap.Uint64("entity", uint64(l.Owner())))
	if tr := transform.Of(r, l.Owner()); tr != nil {
		l.position = tr.Position()
		l.forward = tr.Forward()
		l.transformVersion = tr.Version()
	}
	device := r.Device()
	if device == nil {
		l.logger.Error("light attached to a registry without a device")
		return
	}
	l.pair = resource.NewBufferPair(device, l.label, GPULightSize,
		resource.WithBufferUsage(gpu.BufferUsageUniform), resource.WithPairLogger(l.logger))
	l.command = device.CreateCommandBuffer(l.label+" Transfer", gpu.QueueTransfer)
	l.dirty = true
}

func (l *Light) OnDestroy(registry.Registry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.command != nil {
		l.command.Destroy()
		l.command = nil
	}
	if l.pair != nil {
		l.pair.Destroy()
		l.pair = nil
	}
	l.processed = false
}

// LightType returns the kind of light source.
func (l *Light) LightType() LightType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lightType
}

// SetLightType changes the kind of light source.
func (l *Light) SetLightType(t LightType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lightType = t
	l.dirty = true
}

// Color returns the RGBA color.
func (l *Light) Color() mgl32.Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

// SetColor sets the RGBA color.
func (l *Light) SetColor(c mgl32.Vec4) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = c
	l.dirty = true
}

// Intensity returns the scalar intensity multiplier.
func (l *Light) Intensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intensity
}

// SetIntensity sets the scalar intensity multiplier.
func (l *Light) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = intensity
	l.dirty = true
}

// Range returns the attenuation cutoff distance of a point light.
func (l *Light) Range() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lightRange
}

// SetRange sets the attenuation cutoff distance.
func (l *Light) SetRange(r float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lightRange = r
	l.dirty = true
}

// Enabled reports whether the light contributes to rendering.
func (l *Light) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// SetEnabled includes or excludes the light from rendering.
func (l *Light) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetStatic marks the light static.
func (l *Light) SetStatic(static bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.static = static
}

// Position returns the world position captured at the last Prepare (or attach).
func (l *Light) Position() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

// Forward returns the world direction captured at the last Prepare (or attach).
func (l *Light) Forward() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.forward
}

// NeedsUpload reports whether the next Prepare has work to do.
//
// Parameters:
//   - r: the registry, used to read the sibling Transform version
//
// Returns:
//   - bool: true if Prepare should run this frame
func (l *Light) NeedsUpload(r registry.Registry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || l.pair == nil {
		return false
	}
	if l.dirty || !l.processed || !l.static {
		return true
	}
	tr := transform.Of(r, l.Owner())
	return tr != nil && tr.Version() != l.transformVersion
}

// Prepare captures the latest Transform, writes the light record into staging and returns the
// transfer command that copies it to the device buffer. The command is recorded once and only
// re-recorded if the pair was reallocated.
//
// Parameters:
//   - r: the registry, used to read the sibling Transform
//
// Returns:
//   - gpu.CommandBuffer: the transfer command to submit this frame, nil if detached
func (l *Light) Prepare(r registry.Registry) gpu.CommandBuffer {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pair == nil {
		return nil
	}
	if tr := transform.Of(r, l.Owner()); tr != nil {
		l.position = tr.Position()
		l.forward = tr.Forward()
		l.transformVersion = tr.Version()
	}

	action := l.pair.Ensure(1)
	l.pair.Upload(l.gpu().Marshal())
	if action != resource.ActionUpdate || !l.command.Recorded() {
		l.command.Begin()
		l.pair.Record(l.command)
		l.command.End()
	}

	l.dirty = false
	l.processed = true
	return l.command
}

// Buffer returns the device-local light record, nil before the first Prepare.
func (l *Light) Buffer() gpu.Buffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pair == nil {
		return nil
	}
	return l.pair.Device()
}

// Pair returns the staging/device pair of the light record.
func (l *Light) Pair() resource.BufferPair {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pair
}

// must be called with mu held.
func (l *Light) gpu() *GPULight {
	return &GPULight{
		Position:  [4]float32{l.position[0], l.position[1], l.position[2], 1},
		Forward:   [4]float32{l.forward[0], l.forward[1], l.forward[2], 0},
		Color:     l.color,
		LightType: uint32(l.lightType),
		Intensity: l.intensity,
		Range:     l.lightRange,
	}
}

// Of returns the Light attached to id, or nil.
func Of(r registry.Registry, id registry.EntityID) *Light {
	return registry.Get[*Light](r, id)
}
