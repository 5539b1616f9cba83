package gpu

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HeadlessStats counts object lifetimes and queue activity on a headless device.
type HeadlessStats struct {
	BuffersCreated    int
	BuffersDestroyed  int
	ImagesCreated     int
	ImagesDestroyed   int
	SetsCreated       int
	SetUpdates        int
	CommandBuffers    int
	Submissions       int
	Presents          int
	LayoutMismatches  int
	LayoutsDestroyed  int
	IdleWaits         int
	DeviceDestroyed   bool
	PendingFenceCount int
}

// SubmissionRecord describes one executed submission, in execution order.
type SubmissionRecord struct {
	Family   QueueFamily
	Commands []string
	Wait     []string
	Signal   []string
	Fence    bool
}

// DispatchRecord describes one executed compute dispatch.
type DispatchRecord struct {
	Command  string
	Pipeline string
	Sets     []string
	X, Y, Z  uint32
}

// HeadlessDevice is a Device that executes transfers on the CPU and records every submission
// and dispatch for inspection.
type HeadlessDevice interface {
	Device

	// CompleteFences signals every fence whose submission has executed. Only meaningful with
	// WithManualFences; otherwise fences signal on submission.
	CompleteFences()

	// Stats returns a snapshot of the device counters.
	//
	// Returns:
	//   - HeadlessStats: the counters
	Stats() HeadlessStats

	// Submissions returns the executed submissions in order.
	//
	// Returns:
	//   - []SubmissionRecord: a copy of the submission log
	Submissions() []SubmissionRecord

	// Dispatches returns the executed compute dispatches in order.
	//
	// Returns:
	//   - []DispatchRecord: a copy of the dispatch log
	Dispatches() []DispatchRecord

	// ClearRecords empties the submission and dispatch logs.
	ClearRecords()

	// ReadBuffer returns a copy of a buffer's contents.
	//
	// Parameters:
	//   - b: a buffer created by this device
	//
	// Returns:
	//   - []byte: the buffer contents, nil for foreign or destroyed buffers
	ReadBuffer(b Buffer) []byte

	// ReadImage returns a copy of an image's texels.
	//
	// Parameters:
	//   - img: an image created by this device or its swapchain
	//
	// Returns:
	//   - []byte: tightly packed texels, nil for foreign or destroyed images
	ReadImage(img Image) []byte

	// ImageLayout returns the layout an image was last transitioned to.
	//
	// Parameters:
	//   - img: an image created by this device or its swapchain
	//
	// Returns:
	//   - ImageLayout: the current layout
	ImageLayout(img Image) ImageLayout
}

type headlessDevice struct {
	mu           *sync.Mutex
	logger       *zap.Logger
	queues       [queueFamilyCount]*headlessQueue
	layouts      map[string]*descriptorLayout
	swapchain    *headlessSwapchain
	manualFences bool
	pending      []*fence
	stats        HeadlessStats
	submissions  []SubmissionRecord
	dispatches   []DispatchRecord
	destroyed    bool
}

var _ HeadlessDevice = &headlessDevice{}

func newHeadlessDevice(c *deviceConfig) *headlessDevice {
	d := &headlessDevice{
		mu:           &sync.Mutex{},
		logger:       c.logger.Named("gpu.headless"),
		layouts:      make(map[string]*descriptorLayout),
		manualFences: c.manualFences,
	}
	for f := QueueGraphics; f < queueFamilyCount; f++ {
		d.queues[f] = &headlessQueue{device: d, family: f}
	}
	d.swapchain = newHeadlessSwapchain(d, c.extent, c.swapchainImages)
	return d
}

func (d *headlessDevice) Backend() BackendType {
	return BackendTypeHeadless
}

func (d *headlessDevice) Queue(family QueueFamily) Queue {
	if family < 0 || family >= queueFamilyCount {
		d.logger.Panic("unknown queue family", zap.Int("family", int(family)))
	}
	return d.queues[family]
}

func (d *headlessDevice) CreateBuffer(desc BufferDescriptor) Buffer {
	if desc.Size == 0 {
		d.logger.Panic("buffer allocation of zero bytes", zap.String("label", desc.Label))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.BuffersCreated++
	return &headlessBuffer{device: d, desc: desc, data: make([]byte, desc.Size)}
}

func (d *headlessDevice) CreateImage(desc ImageDescriptor) Image {
	if desc.Extent.Empty() {
		d.logger.Panic("image allocation with empty extent", zap.String("label", desc.Label))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.ImagesCreated++
	return newHeadlessImage(d, desc, false)
}

func (d *headlessDevice) CreateSampler(label string) Sampler {
	return &headlessSampler{label: label}
}

func (d *headlessDevice) DescriptorLayout(key string, bindings ...DescriptorBinding) DescriptorLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.layouts[key]; ok {
		return l
	}
	l := &descriptorLayout{key: key, bindings: append([]DescriptorBinding(nil), bindings...)}
	d.layouts[key] = l
	return l
}

func (d *headlessDevice) CreateDescriptorSet(label string, layout DescriptorLayout) DescriptorSet {
	d.mu.Lock()
	d.stats.SetsCreated++
	d.mu.Unlock()
	return &headlessDescriptorSet{descriptorSet: newDescriptorSet(d.logger, label, layout, nil), device: d}
}

func (d *headlessDevice) CreateComputePipeline(desc PipelineDescriptor) Pipeline {
	if desc.EntryPoint == "" {
		d.logger.Panic("compute pipeline without entry point", zap.String("label", desc.Label))
	}
	return &pipeline{label: desc.Label, layouts: desc.Layouts}
}

func (d *headlessDevice) CreateCommandBuffer(label string, family QueueFamily) CommandBuffer {
	d.mu.Lock()
	d.stats.CommandBuffers++
	d.mu.Unlock()
	return newCommandBuffer(d.logger, label, family)
}

func (d *headlessDevice) CreateSemaphore(label string) Semaphore {
	return newSemaphore(d.logger, label)
}

func (d *headlessDevice) CreateFence(label string, signaled bool) Fence {
	return newFence(d.logger, label, signaled, d.pollFences)
}

func (d *headlessDevice) Swapchain() Swapchain {
	return d.swapchain
}

func (d *headlessDevice) WaitIdle() {
	d.mu.Lock()
	d.stats.IdleWaits++
	d.mu.Unlock()
	d.CompleteFences()
}

func (d *headlessDevice) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.stats.LayoutsDestroyed += len(d.layouts)
	d.layouts = map[string]*descriptorLayout{}
	d.swapchain.destroyImages()
	d.stats.DeviceDestroyed = true
}

func (d *headlessDevice) CompleteFences() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, f := range pending {
		f.signal()
	}
}

func (d *headlessDevice) pollFences(wait bool) {
	if wait {
		d.CompleteFences()
	}
}

func (d *headlessDevice) Stats() HeadlessStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.PendingFenceCount = len(d.pending)
	return s
}

func (d *headlessDevice) Submissions() []SubmissionRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SubmissionRecord(nil), d.submissions...)
}

func (d *headlessDevice) Dispatches() []DispatchRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DispatchRecord(nil), d.dispatches...)
}

func (d *headlessDevice) ClearRecords() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = nil
	d.dispatches = nil
}

func (d *headlessDevice) ReadBuffer(b Buffer) []byte {
	hb, ok := b.(*headlessBuffer)
	if !ok {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if hb.destroyed {
		return nil
	}
	return append([]byte(nil), hb.data...)
}

func (d *headlessDevice) ReadImage(img Image) []byte {
	hi, ok := img.(*headlessImage)
	if !ok {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if hi.destroyed {
		return nil
	}
	return append([]byte(nil), hi.texels...)
}

func (d *headlessDevice) ImageLayout(img Image) ImageLayout {
	hi, ok := img.(*headlessImage)
	if !ok {
		return LayoutUndefined
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return hi.layout
}

// submit executes info synchronously in submission order.
func (d *headlessDevice) submit(family QueueFamily, info SubmitInfo) {
	consumeAll(d.logger, info.Wait)
	d.replay(family, info)
	signalAll(d.logger, info.Signal)

	if info.Fence == nil {
		return
	}
	f := asFence(d.logger, info.Fence)
	f.arm()
	if d.manualFences {
		d.mu.Lock()
		d.pending = append(d.pending, f)
		d.mu.Unlock()
		return
	}
	f.signal()
}

// replay executes the commands of info and records the submission.
func (d *headlessDevice) replay(family QueueFamily, info SubmitInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	record := SubmissionRecord{Family: family, Fence: info.Fence != nil}
	for _, c := range info.Commands {
		record.Commands = append(record.Commands, c.Label())
		d.execute(c)
	}
	for _, s := range info.Wait {
		record.Wait = append(record.Wait, s.Label())
	}
	for _, s := range info.Signal {
		record.Signal = append(record.Signal, s.Label())
	}
	d.submissions = append(d.submissions, record)
	d.stats.Submissions++
}

// execute replays one command buffer; d.mu must be held.
func (d *headlessDevice) execute(cb CommandBuffer) {
	c, ok := cb.(*commandBuffer)
	if !ok {
		d.logger.Panic("foreign command buffer submitted", zap.String("command", cb.Label()))
	}
	commands, ok := c.snapshot()
	if !ok {
		d.logger.Panic("submission of a command buffer that is not recorded", zap.String("command", c.label))
	}

	var bound Pipeline
	var sets []DescriptorSet
	for _, cmd := range commands {
		switch cmd.kind {
		case cmdCopyBuffer:
			src := d.liveBuffer(cmd.src, c.label)
			dst := d.liveBuffer(cmd.dst, c.label)
			if cmd.srcOffset+cmd.size > uint64(len(src.data)) || cmd.offset+cmd.size > uint64(len(dst.data)) {
				d.logger.Panic("buffer copy out of range",
					zap.String("command", c.label),
					zap.String("src", src.desc.Label),
					zap.String("dst", dst.desc.Label),
					zap.Uint64("size", cmd.size))
			}
			copy(dst.data[cmd.offset:cmd.offset+cmd.size], src.data[cmd.srcOffset:cmd.srcOffset+cmd.size])
		case cmdCopyBufferToImage:
			src := d.liveBuffer(cmd.src, c.label)
			dst := d.liveImage(cmd.dstImage, c.label)
			row := uint64(dst.desc.Extent.Width) * uint64(BytesPerTexel(dst.desc.Format))
			for y := uint64(0); y < uint64(dst.desc.Extent.Height); y++ {
				start := y * uint64(cmd.rowPitch)
				if start+row > uint64(len(src.data)) {
					d.logger.Panic("buffer to image copy out of range", zap.String("command", c.label))
				}
				copy(dst.texels[y*row:(y+1)*row], src.data[start:start+row])
			}
		case cmdBlitImage:
			src := d.liveImage(cmd.image, c.label)
			dst := d.liveImage(cmd.dstImage, c.label)
			blit(src, dst)
		case cmdTransitionImage:
			img := d.liveImage(cmd.image, c.label)
			if cmd.from != LayoutUndefined && img.layout != cmd.from {
				d.stats.LayoutMismatches++
				d.logger.Warn("image layout mismatch",
					zap.String("image", img.desc.Label),
					zap.Int("expected", int(cmd.from)),
					zap.Int("actual", int(img.layout)))
			}
			img.layout = cmd.to
		case cmdBindPipeline:
			bound = cmd.pipeline
		case cmdBindDescriptorSets:
			sets = cmd.sets
		case cmdDispatch:
			if bound == nil {
				d.logger.Panic("dispatch without a bound pipeline", zap.String("command", c.label))
			}
			rec := DispatchRecord{Command: c.label, Pipeline: bound.Label(), X: cmd.x, Y: cmd.y, Z: cmd.z}
			for _, s := range sets {
				rec.Sets = append(rec.Sets, s.Label())
			}
			d.dispatches = append(d.dispatches, rec)
		}
	}
}

func (d *headlessDevice) liveBuffer(b Buffer, command string) *headlessBuffer {
	hb, ok := b.(*headlessBuffer)
	if !ok || hb.destroyed {
		d.logger.Panic("command references a destroyed or foreign buffer",
			zap.String("command", command), zap.String("buffer", labelOf(b)))
	}
	return hb
}

func (d *headlessDevice) liveImage(img Image, command string) *headlessImage {
	hi, ok := img.(*headlessImage)
	if !ok || hi.destroyed {
		d.logger.Panic("command references a destroyed or foreign image",
			zap.String("command", command), zap.String("image", fmt.Sprint(img)))
	}
	return hi
}

func labelOf(b Buffer) string {
	if b == nil {
		return "<nil>"
	}
	return b.Label()
}

// blit copies the overlapping region of two images row by row.
func blit(src, dst *headlessImage) {
	w := min(src.desc.Extent.Width, dst.desc.Extent.Width)
	h := min(src.desc.Extent.Height, dst.desc.Extent.Height)
	bpp := BytesPerTexel(src.desc.Format)
	row := w * bpp
	for y := range h {
		so := y * src.desc.Extent.Width * bpp
		do := y * dst.desc.Extent.Width * bpp
		copy(dst.texels[do:do+row], src.texels[so:so+row])
	}
}

type headlessQueue struct {
	device *headlessDevice
	family QueueFamily
}

var _ Queue = &headlessQueue{}

func (q *headlessQueue) Family() QueueFamily {
	return q.family
}

func (q *headlessQueue) Submit(info SubmitInfo) {
	q.device.submit(q.family, info)
}

func (q *headlessQueue) WaitIdle() {
	q.device.CompleteFences()
}
