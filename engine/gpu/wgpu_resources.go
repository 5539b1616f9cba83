package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

type wgpuBuffer struct {
	device    *wgpuDevice
	desc      BufferDescriptor
	native    *wgpu.Buffer
	destroyed bool
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string {
	return b.desc.Label
}

func (b *wgpuBuffer) Size() uint64 {
	return b.desc.Size
}

func (b *wgpuBuffer) Memory() MemoryKind {
	return b.desc.Memory
}

func (b *wgpuBuffer) SetData(offset uint64, data []byte) {
	switch {
	case b.destroyed:
		b.device.logger.Error("write to destroyed buffer", zap.String("buffer", b.desc.Label))
		return
	case b.desc.Memory != MemoryHostVisible:
		b.device.logger.Error("host write to device-local buffer", zap.String("buffer", b.desc.Label))
		return
	case offset+uint64(len(data)) > b.desc.Size:
		b.device.logger.Error("host write past end of buffer",
			zap.String("buffer", b.desc.Label),
			zap.Uint64("offset", offset),
			zap.Int("len", len(data)),
			zap.Uint64("size", b.desc.Size))
		return
	}
	// WriteBuffer requires 4 byte aligned sizes.
	if pad := AlignUp(uint64(len(data)), 4) - uint64(len(data)); pad > 0 {
		data = append(append(make([]byte, 0, len(data)+int(pad)), data...), make([]byte, pad)...)
	}
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	b.device.queue.WriteBuffer(b.native, offset, data)
}

func (b *wgpuBuffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	b.native.Destroy()
	b.native.Release()
}

func nativeBuffer(b Buffer) *wgpu.Buffer {
	return b.(*wgpuBuffer).native
}

type wgpuImage struct {
	device    *wgpuDevice
	desc      ImageDescriptor
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	swapchain bool
	destroyed bool
}

var _ Image = &wgpuImage{}

func (i *wgpuImage) Label() string {
	return i.desc.Label
}

func (i *wgpuImage) Extent() Extent {
	return i.desc.Extent
}

func (i *wgpuImage) Format() Format {
	return i.desc.Format
}

func (i *wgpuImage) Destroy() {
	if i.destroyed || i.swapchain {
		return
	}
	i.destroyed = true
	i.device.mu.Lock()
	defer i.device.mu.Unlock()
	if i.view != nil {
		i.view.Release()
	}
	i.texture.Destroy()
	i.texture.Release()
}

type wgpuSampler struct {
	native *wgpu.Sampler
}

func (s *wgpuSampler) Destroy() {
	if s.native != nil {
		s.native.Release()
		s.native = nil
	}
}

// wgpuSwapchain wraps the configured surface. WebGPU hands out one current texture at a time,
// so the acquired index is always zero.
type wgpuSwapchain struct {
	device      *wgpuDevice
	surface     *wgpu.Surface
	presentMode wgpu.PresentMode
	alphaMode   wgpu.CompositeAlphaMode
	format      Format
	extent      Extent
	current     *wgpuImage
}

var _ Swapchain = &wgpuSwapchain{}

func newWGPUSwapchain(d *wgpuDevice, surface *wgpu.Surface, mode PresentMode, extent Extent) *wgpuSwapchain {
	s := &wgpuSwapchain{
		device:      d,
		surface:     surface,
		presentMode: wgpu.PresentModeImmediate,
		format:      FormatBGRA8Unorm,
	}
	if mode == PresentModeVSync {
		s.presentMode = wgpu.PresentModeFifo
	}
	if surface == nil {
		s.extent = extent
		return s
	}
	capabilities := surface.GetCapabilities(d.adapter)
	s.format = FormatRGBA8Unorm
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatBGRA8Unorm {
			s.format = FormatBGRA8Unorm
			break
		}
	}
	s.alphaMode = capabilities.AlphaModes[0]
	s.configure(extent)
	return s
}

func (s *wgpuSwapchain) configure(extent Extent) {
	s.extent = extent
	if s.surface == nil || extent.Empty() {
		return
	}
	s.surface.Configure(s.device.adapter, s.device.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst,
		Format:      textureFormat(s.format),
		Width:       extent.Width,
		Height:      extent.Height,
		PresentMode: s.presentMode,
		AlphaMode:   s.alphaMode,
	})
}

func (s *wgpuSwapchain) Extent() Extent {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	return s.extent
}

func (s *wgpuSwapchain) Format() Format {
	return s.format
}

func (s *wgpuSwapchain) Resize(width, height uint32) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.configure(Extent{Width: width, Height: height})
}

func (s *wgpuSwapchain) AcquireNextImage(signal Semaphore) uint32 {
	s.device.mu.Lock()
	if s.surface == nil {
		s.device.mu.Unlock()
		s.device.logger.Panic("acquire on a device without a surface")
	}
	if s.current != nil {
		s.device.mu.Unlock()
		s.device.logger.Panic("previous swapchain image not yet presented")
	}
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		s.device.mu.Unlock()
		s.device.logger.Panic("acquire surface texture", zap.Error(err))
	}
	s.current = &wgpuImage{
		device:    s.device,
		desc:      ImageDescriptor{Label: "swapchain", Extent: s.extent, Format: s.format, Usage: ImageUsageTransferDst},
		texture:   tex,
		swapchain: true,
	}
	s.device.mu.Unlock()
	if signal != nil {
		asSemaphore(s.device.logger, signal).signal()
	}
	return 0
}

func (s *wgpuSwapchain) Image(index uint32) Image {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if index != 0 || s.current == nil {
		s.device.logger.Panic("swapchain image is not acquired", zap.Uint32("index", index))
	}
	return s.current
}

func (s *wgpuSwapchain) Present(index uint32, queue Queue, wait []Semaphore) {
	consumeAll(s.device.logger, wait)
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if s.current == nil {
		return
	}
	s.surface.Present()
	s.current.texture.Release()
	s.current = nil
}

func (s *wgpuSwapchain) Destroy() {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.release()
}

// release must be called with device.mu held.
func (s *wgpuSwapchain) release() {
	if s.current != nil {
		s.current.texture.Release()
		s.current = nil
	}
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
}
