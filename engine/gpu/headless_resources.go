package gpu

import (
	"fmt"

	"go.uber.org/zap"
)

type headlessBuffer struct {
	device    *headlessDevice
	desc      BufferDescriptor
	data      []byte
	destroyed bool
}

var _ Buffer = &headlessBuffer{}

func (b *headlessBuffer) Label() string {
	return b.desc.Label
}

func (b *headlessBuffer) Size() uint64 {
	return b.desc.Size
}

func (b *headlessBuffer) Memory() MemoryKind {
	return b.desc.Memory
}

func (b *headlessBuffer) SetData(offset uint64, data []byte) {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	switch {
	case b.destroyed:
		b.device.logger.Error("write to destroyed buffer", zap.String("buffer", b.desc.Label))
	case b.desc.Memory != MemoryHostVisible:
		b.device.logger.Error("host write to device-local buffer", zap.String("buffer", b.desc.Label))
	case offset+uint64(len(data)) > b.desc.Size:
		b.device.logger.Error("host write past end of buffer",
			zap.String("buffer", b.desc.Label),
			zap.Uint64("offset", offset),
			zap.Int("len", len(data)),
			zap.Uint64("size", b.desc.Size))
	default:
		copy(b.data[offset:], data)
	}
}

func (b *headlessBuffer) Destroy() {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.data = nil
	b.device.stats.BuffersDestroyed++
}

type headlessImage struct {
	device    *headlessDevice
	desc      ImageDescriptor
	texels    []byte
	layout    ImageLayout
	swapchain bool
	destroyed bool
}

var _ Image = &headlessImage{}

func newHeadlessImage(d *headlessDevice, desc ImageDescriptor, swapchain bool) *headlessImage {
	size := uint64(desc.Extent.Width) * uint64(desc.Extent.Height) * uint64(BytesPerTexel(desc.Format))
	return &headlessImage{
		device:    d,
		desc:      desc,
		texels:    make([]byte, size),
		layout:    LayoutUndefined,
		swapchain: swapchain,
	}
}

func (i *headlessImage) Label() string {
	return i.desc.Label
}

func (i *headlessImage) Extent() Extent {
	return i.desc.Extent
}

func (i *headlessImage) Format() Format {
	return i.desc.Format
}

func (i *headlessImage) String() string {
	return i.desc.Label
}

func (i *headlessImage) Destroy() {
	if i.swapchain {
		i.device.logger.Warn("swapchain images are owned by the swapchain", zap.String("image", i.desc.Label))
		return
	}
	i.device.mu.Lock()
	defer i.device.mu.Unlock()
	if i.destroyed {
		return
	}
	i.destroyed = true
	i.texels = nil
	i.device.stats.ImagesDestroyed++
}

type headlessSampler struct {
	label string
}

func (s *headlessSampler) Destroy() {}

// headlessDescriptorSet counts successful updates on the owning device.
type headlessDescriptorSet struct {
	*descriptorSet
	device *headlessDevice
}

func (s *headlessDescriptorSet) Update(writes ...DescriptorWrite) error {
	if err := s.descriptorSet.Update(writes...); err != nil {
		return err
	}
	s.device.mu.Lock()
	s.device.stats.SetUpdates++
	s.device.mu.Unlock()
	return nil
}

type headlessSwapchain struct {
	device *headlessDevice
	extent Extent
	count  int
	images []*headlessImage
	next   uint32
}

var _ Swapchain = &headlessSwapchain{}

func newHeadlessSwapchain(d *headlessDevice, extent Extent, count int) *headlessSwapchain {
	s := &headlessSwapchain{device: d, extent: extent, count: count}
	s.createImages()
	return s
}

func (s *headlessSwapchain) createImages() {
	s.images = make([]*headlessImage, s.count)
	for i := range s.images {
		s.images[i] = newHeadlessImage(s.device, ImageDescriptor{
			Label:  fmt.Sprintf("swapchain[%d]", i),
			Extent: s.extent,
			Format: FormatRGBA8Unorm,
			Usage:  ImageUsageTransferDst,
		}, true)
		s.images[i].layout = LayoutPresent
	}
	s.next = 0
}

// destroyImages must be called with device.mu held.
func (s *headlessSwapchain) destroyImages() {
	for _, img := range s.images {
		img.destroyed = true
		img.texels = nil
	}
}

func (s *headlessSwapchain) Extent() Extent {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	return s.extent
}

func (s *headlessSwapchain) Format() Format {
	return FormatRGBA8Unorm
}

func (s *headlessSwapchain) Resize(width, height uint32) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if width == s.extent.Width && height == s.extent.Height {
		return
	}
	s.destroyImages()
	s.extent = Extent{Width: width, Height: height}
	if s.extent.Empty() {
		s.images = nil
		return
	}
	s.createImages()
}

func (s *headlessSwapchain) AcquireNextImage(signal Semaphore) uint32 {
	s.device.mu.Lock()
	if len(s.images) == 0 {
		s.device.mu.Unlock()
		s.device.logger.Panic("acquire on a zero-sized swapchain")
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	s.device.mu.Unlock()
	if signal != nil {
		asSemaphore(s.device.logger, signal).signal()
	}
	return idx
}

func (s *headlessSwapchain) Image(index uint32) Image {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if int(index) >= len(s.images) {
		s.device.logger.Panic("swapchain image index out of range", zap.Uint32("index", index))
	}
	return s.images[index]
}

func (s *headlessSwapchain) Present(index uint32, queue Queue, wait []Semaphore) {
	consumeAll(s.device.logger, wait)
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if int(index) >= len(s.images) {
		s.device.logger.Panic("present of an unknown swapchain image", zap.Uint32("index", index))
	}
	if s.images[index].layout != LayoutPresent {
		s.device.stats.LayoutMismatches++
		s.device.logger.Warn("presenting image not in present layout", zap.Uint32("index", index))
	}
	s.device.stats.Presents++
}

func (s *headlessSwapchain) Destroy() {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.destroyImages()
	s.images = nil
}
