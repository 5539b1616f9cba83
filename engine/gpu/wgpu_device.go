package gpu

import (
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// wgpuDevice maps the explicit API onto WebGPU. WebGPU exposes a single hardware queue, so every
// family resolves to it and submissions execute in the order they are made; semaphores are
// validated but need no native object.
type wgpuDevice struct {
	mu        *sync.Mutex
	logger    *zap.Logger
	instance  *wgpu.Instance
	adapter   *wgpu.Adapter
	device    *wgpu.Device
	queue     *wgpu.Queue
	queues    [queueFamilyCount]*wgpuQueue
	layouts   map[string]*descriptorLayout
	swapchain *wgpuSwapchain
	destroyed bool
}

var _ Device = &wgpuDevice{}

func newWGPUDevice(c *deviceConfig) *wgpuDevice {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:       &sync.Mutex{},
		logger:   c.logger.Named("gpu.wgpu"),
		instance: wgpu.CreateInstance(nil),
		layouts:  make(map[string]*descriptorLayout),
	}

	var surface *wgpu.Surface
	if c.surfaceDescriptor != nil {
		surface = d.instance.CreateSurface(c.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: c.forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		d.logger.Panic("request adapter", zap.Error(err))
	}
	d.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 4
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		d.logger.Panic("request device", zap.Error(err))
	}
	d.device = dev
	d.queue = dev.GetQueue()

	for f := QueueGraphics; f < queueFamilyCount; f++ {
		d.queues[f] = &wgpuQueue{device: d, family: f}
	}
	d.swapchain = newWGPUSwapchain(d, surface, c.presentMode, c.extent)
	return d
}

func (d *wgpuDevice) Backend() BackendType {
	return BackendTypeWGPU
}

func (d *wgpuDevice) Queue(family QueueFamily) Queue {
	if family < 0 || family >= queueFamilyCount {
		d.logger.Panic("unknown queue family", zap.Int("family", int(family)))
	}
	return d.queues[family]
}

func (d *wgpuDevice) CreateBuffer(desc BufferDescriptor) Buffer {
	if desc.Size == 0 {
		d.logger.Panic("buffer allocation of zero bytes", zap.String("label", desc.Label))
	}
	usage := bufferUsage(desc.Usage)
	if desc.Memory == MemoryHostVisible {
		usage |= wgpu.BufferUsageCopyDst
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  AlignUp(desc.Size, 4),
		Usage: usage,
	})
	if err != nil {
		d.logger.Panic("create buffer", zap.String("label", desc.Label), zap.Error(err))
	}
	return &wgpuBuffer{device: d, desc: desc, native: buf}
}

func (d *wgpuDevice) CreateImage(desc ImageDescriptor) Image {
	if desc.Extent.Empty() {
		d.logger.Panic("image allocation with empty extent", zap.String("label", desc.Label))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     imageUsage(desc.Usage),
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Extent.Width,
			Height:             desc.Extent.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        textureFormat(desc.Format),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		d.logger.Panic("create texture", zap.String("label", desc.Label), zap.Error(err))
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		d.logger.Panic("create texture view", zap.String("label", desc.Label), zap.Error(err))
	}
	return &wgpuImage{device: d, desc: desc, texture: tex, view: view}
}

func (d *wgpuDevice) CreateSampler(label string) Sampler {
	d.mu.Lock()
	defer d.mu.Unlock()
	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		d.logger.Panic("create sampler", zap.String("label", label), zap.Error(err))
	}
	return &wgpuSampler{native: samp}
}

func (d *wgpuDevice) DescriptorLayout(key string, bindings ...DescriptorBinding) DescriptorLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.layouts[key]; ok {
		return l
	}
	entries := make([]wgpu.BindGroupLayoutEntry, len(bindings))
	for i, b := range bindings {
		entries[i] = layoutEntry(b)
	}
	bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   key,
		Entries: entries,
	})
	if err != nil {
		d.logger.Panic("create bind group layout", zap.String("key", key), zap.Error(err))
	}
	l := &descriptorLayout{key: key, bindings: append([]DescriptorBinding(nil), bindings...), native: bgl}
	d.layouts[key] = l
	return l
}

func (d *wgpuDevice) CreateDescriptorSet(label string, layout DescriptorLayout) DescriptorSet {
	return newDescriptorSet(d.logger, label, layout, func(native any) {
		native.(*wgpu.BindGroup).Release()
	})
}

func (d *wgpuDevice) CreateComputePipeline(desc PipelineDescriptor) Pipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		d.logger.Panic("create shader module", zap.String("label", desc.Label), zap.Error(err))
	}
	defer module.Release()

	groups := make([]*wgpu.BindGroupLayout, len(desc.Layouts))
	for i, l := range desc.Layouts {
		dl, ok := l.(*descriptorLayout)
		if !ok {
			d.logger.Panic("foreign descriptor layout", zap.String("pipeline", desc.Label))
		}
		groups[i] = dl.native.(*wgpu.BindGroupLayout)
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		d.logger.Panic("create pipeline layout", zap.String("label", desc.Label), zap.Error(err))
	}
	defer layout.Release()

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		d.logger.Panic("create compute pipeline", zap.String("label", desc.Label), zap.Error(err))
	}
	return &pipeline{
		label:   desc.Label,
		layouts: desc.Layouts,
		native:  created,
		release: func(native any) { native.(*wgpu.ComputePipeline).Release() },
	}
}

func (d *wgpuDevice) CreateCommandBuffer(label string, family QueueFamily) CommandBuffer {
	return newCommandBuffer(d.logger, label, family)
}

func (d *wgpuDevice) CreateSemaphore(label string) Semaphore {
	return newSemaphore(d.logger, label)
}

func (d *wgpuDevice) CreateFence(label string, signaled bool) Fence {
	return newFence(d.logger, label, signaled, d.poll)
}

func (d *wgpuDevice) Swapchain() Swapchain {
	return d.swapchain
}

func (d *wgpuDevice) WaitIdle() {
	d.poll(true)
}

func (d *wgpuDevice) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	for key, l := range d.layouts {
		l.native.(*wgpu.BindGroupLayout).Release()
		delete(d.layouts, key)
	}
	d.swapchain.release()
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}

func (d *wgpuDevice) poll(wait bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.device.Poll(wait, nil)
}

func (d *wgpuDevice) submit(family QueueFamily, info SubmitInfo) {
	consumeAll(d.logger, info.Wait)
	d.encodeAndSubmit(family, info)
	signalAll(d.logger, info.Signal)
}

// encodeAndSubmit encodes every command of info into one native command buffer and submits it.
func (d *wgpuDevice) encodeAndSubmit(family QueueFamily, info SubmitInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: family.String()})
	if err != nil {
		d.logger.Panic("create command encoder", zap.Error(err))
	}
	defer encoder.Release()
	for _, c := range info.Commands {
		d.encode(encoder, c)
	}
	cb, err := encoder.Finish(nil)
	if err != nil {
		d.logger.Panic("finish command encoder", zap.Error(err))
	}
	d.queue.Submit(cb)
	cb.Release()

	if info.Fence != nil {
		f := asFence(d.logger, info.Fence)
		f.arm()
		d.queue.OnSubmittedWorkDone(func(status wgpu.QueueWorkDoneStatus) {
			if status != wgpu.QueueWorkDoneStatusSuccess {
				d.logger.Error("submitted work failed", zap.Uint32("status", uint32(status)))
			}
			f.signal()
		})
	}
}

// encode replays one recorded command buffer into encoder; d.mu must be held.
func (d *wgpuDevice) encode(encoder *wgpu.CommandEncoder, cb CommandBuffer) {
	c, ok := cb.(*commandBuffer)
	if !ok {
		d.logger.Panic("foreign command buffer submitted", zap.String("command", cb.Label()))
	}
	commands, ok := c.snapshot()
	if !ok {
		d.logger.Panic("submission of a command buffer that is not recorded", zap.String("command", c.label))
	}

	var bound *wgpu.ComputePipeline
	var groups []*wgpu.BindGroup
	for _, cmd := range commands {
		switch cmd.kind {
		case cmdCopyBuffer:
			encoder.CopyBufferToBuffer(nativeBuffer(cmd.src), cmd.srcOffset, nativeBuffer(cmd.dst), cmd.offset, AlignUp(cmd.size, 4))
		case cmdCopyBufferToImage:
			dst := cmd.dstImage.(*wgpuImage)
			extent := dst.Extent()
			encoder.CopyBufferToTexture(
				&wgpu.ImageCopyBuffer{
					Layout: wgpu.TextureDataLayout{
						Offset:       0,
						BytesPerRow:  cmd.rowPitch,
						RowsPerImage: extent.Height,
					},
					Buffer: nativeBuffer(cmd.src),
				},
				&wgpu.ImageCopyTexture{
					Texture:  dst.texture,
					MipLevel: 0,
					Origin:   wgpu.Origin3D{},
					Aspect:   wgpu.TextureAspectAll,
				},
				&wgpu.Extent3D{Width: extent.Width, Height: extent.Height, DepthOrArrayLayers: 1},
			)
		case cmdBlitImage:
			src := cmd.image.(*wgpuImage)
			dst := cmd.dstImage.(*wgpuImage)
			se, de := src.Extent(), dst.Extent()
			encoder.CopyTextureToTexture(
				&wgpu.ImageCopyTexture{Texture: src.texture, Aspect: wgpu.TextureAspectAll},
				&wgpu.ImageCopyTexture{Texture: dst.texture, Aspect: wgpu.TextureAspectAll},
				&wgpu.Extent3D{Width: min(se.Width, de.Width), Height: min(se.Height, de.Height), DepthOrArrayLayers: 1},
			)
		case cmdTransitionImage:
			// WebGPU tracks resource state itself.
		case cmdBindPipeline:
			p := cmd.pipeline.(*pipeline)
			bound = p.native.(*wgpu.ComputePipeline)
		case cmdBindDescriptorSets:
			groups = groups[:0]
			for _, s := range cmd.sets {
				groups = append(groups, d.bindGroup(s))
			}
		case cmdDispatch:
			if bound == nil {
				d.logger.Panic("dispatch without a bound pipeline", zap.String("command", c.label))
			}
			pass := encoder.BeginComputePass(nil)
			pass.SetPipeline(bound)
			for i, g := range groups {
				pass.SetBindGroup(uint32(i), g, nil)
			}
			pass.DispatchWorkgroups(cmd.x, cmd.y, cmd.z)
			pass.End()
			pass.Release()
		}
	}
}

// bindGroup returns the native bind group of s, rebuilding it when the set was updated since
// the last build; d.mu must be held.
func (d *wgpuDevice) bindGroup(ds DescriptorSet) *wgpu.BindGroup {
	s, ok := ds.(*descriptorSet)
	if !ok {
		d.logger.Panic("foreign descriptor set", zap.String("set", ds.Label()))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.native != nil && s.nativeGeneration == s.generation {
		return s.native.(*wgpu.BindGroup)
	}
	if s.generation == 0 {
		d.logger.Panic("descriptor set bound before its first update", zap.String("set", s.label))
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(s.layout.bindings))
	for _, b := range s.layout.bindings {
		w := s.writes[b.Binding]
		switch {
		case w.Buffer != nil:
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: b.Binding,
				Buffer:  nativeBuffer(w.Buffer),
				Offset:  0,
				Size:    wgpu.WholeSize,
			})
		case w.Image != nil:
			entries = append(entries, wgpu.BindGroupEntry{
				Binding:     b.Binding,
				TextureView: w.Image.(*wgpuImage).view,
			})
		case w.Sampler != nil:
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: b.Binding,
				Sampler: w.Sampler.(*wgpuSampler).native,
			})
		}
	}
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   s.label,
		Layout:  s.layout.native.(*wgpu.BindGroupLayout),
		Entries: entries,
	})
	if err != nil {
		d.logger.Panic("create bind group", zap.String("set", s.label), zap.Error(err))
	}
	if s.native != nil {
		s.native.(*wgpu.BindGroup).Release()
	}
	s.native = bg
	s.nativeGeneration = s.generation
	return bg
}

type wgpuQueue struct {
	device *wgpuDevice
	family QueueFamily
}

var _ Queue = &wgpuQueue{}

func (q *wgpuQueue) Family() QueueFamily {
	return q.family
}

func (q *wgpuQueue) Submit(info SubmitInfo) {
	q.device.submit(q.family, info)
}

func (q *wgpuQueue) WaitIdle() {
	q.device.poll(true)
}

func layoutEntry(b DescriptorBinding) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{
		Binding:    b.Binding,
		Visibility: wgpu.ShaderStageCompute,
	}
	switch b.Kind {
	case DescriptorStorageBuffer:
		e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
	case DescriptorReadOnlyStorageBuffer:
		e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
	case DescriptorUniformBuffer:
		e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
	case DescriptorSampledImage:
		e.Texture = wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeFloat,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	case DescriptorSampler:
		e.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
	}
	return e
}

func bufferUsage(u BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&BufferUsageTransferSrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&BufferUsageTransferDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	return out
}

func imageUsage(u ImageUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&ImageUsageTransferSrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&ImageUsageTransferDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&ImageUsageSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&ImageUsageStorage != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	return out
}

func textureFormat(f Format) wgpu.TextureFormat {
	if f == FormatBGRA8Unorm {
		return wgpu.TextureFormatBGRA8Unorm
	}
	return wgpu.TextureFormatRGBA8Unorm
}
