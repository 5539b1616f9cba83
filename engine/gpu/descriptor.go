package gpu

import (
	"sync"

	"go.uber.org/zap"
)

// descriptorLayout is the backend-neutral part of a DescriptorLayout. native holds the
// backend object (a *wgpu.BindGroupLayout for the WebGPU device, nil for headless).
type descriptorLayout struct {
	key      string
	bindings []DescriptorBinding
	native   any
}

var _ DescriptorLayout = &descriptorLayout{}

func (l *descriptorLayout) Key() string {
	return l.key
}

func (l *descriptorLayout) Bindings() []DescriptorBinding {
	return l.bindings
}

// descriptorSet stores the resources bound to each binding of its layout. Backends that need
// a native object rebuild it lazily whenever the generation moves past the one it was built for.
type descriptorSet struct {
	mu         *sync.RWMutex
	logger     *zap.Logger
	label      string
	layout     *descriptorLayout
	writes     map[uint32]DescriptorWrite
	generation uint64
	destroyed  bool

	// native is the backend object built for nativeGeneration.
	native           any
	nativeGeneration uint64
	release          func(native any)
}

var _ DescriptorSet = &descriptorSet{}

func newDescriptorSet(logger *zap.Logger, label string, layout DescriptorLayout, release func(any)) *descriptorSet {
	l, ok := layout.(*descriptorLayout)
	if !ok {
		logger.Panic("foreign descriptor layout", zap.String("set", label))
	}
	return &descriptorSet{
		mu:      &sync.RWMutex{},
		logger:  logger,
		label:   label,
		layout:  l,
		writes:  make(map[uint32]DescriptorWrite, len(l.bindings)),
		release: release,
	}
}

func (s *descriptorSet) Label() string {
	return s.label
}

func (s *descriptorSet) Layout() DescriptorLayout {
	return s.layout
}

func (s *descriptorSet) Update(writes ...DescriptorWrite) error {
	if err := validateWrites(s.layout, writes); err != nil {
		s.logger.Error("descriptor set update rejected",
			zap.String("set", s.label),
			zap.Int("writes", len(writes)),
			zap.Int("bindings", len(s.layout.bindings)),
			zap.Error(err))
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		s.writes[w.Binding] = w
	}
	s.generation++
	return nil
}

func (s *descriptorSet) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *descriptorSet) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	if s.native != nil && s.release != nil {
		s.release(s.native)
	}
	s.native = nil
}

// write returns the resource bound at binding.
func (s *descriptorSet) write(binding uint32) (DescriptorWrite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.writes[binding]
	return w, ok
}

// validateWrites checks that writes bind every layout binding exactly once with a resource of
// the kind the binding expects.
func validateWrites(layout *descriptorLayout, writes []DescriptorWrite) error {
	if len(writes) != len(layout.bindings) {
		return ErrDescriptorMismatch
	}
	kinds := make(map[uint32]DescriptorKind, len(layout.bindings))
	for _, b := range layout.bindings {
		kinds[b.Binding] = b.Kind
	}
	seen := make(map[uint32]bool, len(writes))
	for _, w := range writes {
		kind, ok := kinds[w.Binding]
		if !ok || seen[w.Binding] {
			return ErrDescriptorMismatch
		}
		seen[w.Binding] = true
		switch kind {
		case DescriptorStorageBuffer, DescriptorReadOnlyStorageBuffer, DescriptorUniformBuffer:
			if w.Buffer == nil || w.Image != nil || w.Sampler != nil {
				return ErrDescriptorMismatch
			}
		case DescriptorSampledImage:
			if w.Image == nil || w.Buffer != nil || w.Sampler != nil {
				return ErrDescriptorMismatch
			}
		case DescriptorSampler:
			if w.Sampler == nil || w.Buffer != nil || w.Image != nil {
				return ErrDescriptorMismatch
			}
		}
	}
	return nil
}

// pipeline is shared by both backends; native holds the backend pipeline object.
type pipeline struct {
	label     string
	layouts   []DescriptorLayout
	native    any
	release   func(native any)
	destroyed bool
}

var _ Pipeline = &pipeline{}

func (p *pipeline) Label() string {
	return p.label
}

func (p *pipeline) Layouts() []DescriptorLayout {
	return p.layouts
}

func (p *pipeline) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	if p.native != nil && p.release != nil {
		p.release(p.native)
	}
	p.native = nil
}
