// Package gpu is the narrow graphics-API layer consumed by the registry, the component views and
// the rendering system. It models an explicit API (queues per family, staging and device buffers,
// images, command buffers, semaphores and fences) and ships two backends: a WebGPU backend for
// real presentation and a headless backend that executes transfers on the CPU.
package gpu

import "errors"

// ErrDescriptorMismatch is returned when a descriptor set update does not supply exactly one
// resource per binding of its layout.
var ErrDescriptorMismatch = errors.New("gpu: descriptor content count does not match layout")

// QueueFamily names a hardware queue family.
type QueueFamily int

const (
	// QueueGraphics executes blits, layout transitions and presentation-bound work.
	QueueGraphics QueueFamily = iota
	// QueueCompute executes compute dispatches.
	QueueCompute
	// QueueTransfer executes buffer and image copies.
	QueueTransfer
	// QueuePresent hands swapchain images to the display.
	QueuePresent

	queueFamilyCount
)

func (f QueueFamily) String() string {
	switch f {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	case QueuePresent:
		return "present"
	}
	return "unknown"
}

// MemoryKind selects where a buffer lives.
type MemoryKind int

const (
	// MemoryDeviceLocal buffers are only reachable through GPU commands.
	MemoryDeviceLocal MemoryKind = iota
	// MemoryHostVisible buffers accept SetData from the CPU.
	MemoryHostVisible
)

// BufferUsage is a bit set describing how a buffer is bound.
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageStorage
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageIndex
)

// ImageUsage is a bit set describing how an image is used.
type ImageUsage uint32

const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageStorage
)

// Format is the texel format of an image.
type Format int

const (
	// FormatRGBA8Unorm is four 8-bit unsigned normalized channels in RGBA order.
	FormatRGBA8Unorm Format = iota
	// FormatBGRA8Unorm is four 8-bit unsigned normalized channels in BGRA order.
	FormatBGRA8Unorm
)

// CopyPitchAlignment is the required alignment in bytes of the row pitch of buffer-to-image copies.
const CopyPitchAlignment = 256

// ImageLayout tracks the access state of an image between commands.
type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutTransferDst
	LayoutTransferSrc
	LayoutShaderRead
	LayoutGeneral
	LayoutPresent
)

// Extent is a two dimensional size in texels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either dimension is zero.
func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// BufferDescriptor describes a buffer allocation.
type BufferDescriptor struct {
	Label  string
	Size   uint64
	Usage  BufferUsage
	Memory MemoryKind
}

// ImageDescriptor describes a 2D image allocation.
type ImageDescriptor struct {
	Label  string
	Extent Extent
	Format Format
	Usage  ImageUsage
}

// DescriptorKind is the resource type expected at a descriptor binding.
type DescriptorKind int

const (
	DescriptorStorageBuffer DescriptorKind = iota
	DescriptorReadOnlyStorageBuffer
	DescriptorUniformBuffer
	DescriptorSampledImage
	DescriptorSampler
)

// DescriptorBinding is one entry of a descriptor layout.
type DescriptorBinding struct {
	Binding uint32
	Kind    DescriptorKind
}

// DescriptorWrite binds one resource to one binding. Exactly one of Buffer, Image or Sampler is set.
type DescriptorWrite struct {
	Binding uint32
	Buffer  Buffer
	Image   Image
	Sampler Sampler
}

// PipelineDescriptor describes a compute pipeline built from WGSL source.
type PipelineDescriptor struct {
	Label      string
	Source     string
	EntryPoint string
	Layouts    []DescriptorLayout
}

// SubmitInfo is one queue submission: the commands to run, the semaphores that must be signaled
// before they start, the semaphores they signal and an optional fence signaled on completion.
type SubmitInfo struct {
	Commands []CommandBuffer
	Wait     []Semaphore
	Signal   []Semaphore
	Fence    Fence
}

// Buffer is a linear GPU allocation.
type Buffer interface {
	// Label returns the debug label of the buffer.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Size returns the allocation size in bytes.
	//
	// Returns:
	//   - uint64: the size in bytes
	Size() uint64

	// Memory returns where the buffer lives.
	//
	// Returns:
	//   - MemoryKind: host-visible or device-local
	Memory() MemoryKind

	// SetData writes data into a host-visible buffer at the given byte offset.
	// Writes to device-local buffers or past the end of the allocation are logged and dropped.
	//
	// Parameters:
	//   - offset: destination byte offset
	//   - data: the bytes to write
	SetData(offset uint64, data []byte)

	// Destroy releases the allocation. Safe to call more than once.
	Destroy()
}

// Image is a 2D GPU texture.
type Image interface {
	Label() string
	Extent() Extent
	Format() Format
	Destroy()
}

// Sampler is an opaque texture sampler.
type Sampler interface {
	Destroy()
}

// DescriptorLayout is a device-global description of a descriptor set's bindings.
// Layouts are owned by the Device and destroyed with it.
type DescriptorLayout interface {
	// Key returns the cache key the layout was created under.
	//
	// Returns:
	//   - string: the layout key
	Key() string

	// Bindings returns the bindings of the layout in declaration order.
	//
	// Returns:
	//   - []DescriptorBinding: the layout bindings
	Bindings() []DescriptorBinding
}

// DescriptorSet binds concrete resources to a DescriptorLayout.
type DescriptorSet interface {
	// Label returns the debug label of the set.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Layout returns the layout the set was allocated from.
	//
	// Returns:
	//   - DescriptorLayout: the layout
	Layout() DescriptorLayout

	// Update rebinds every binding of the set. The writes must cover each layout binding exactly
	// once; otherwise the call is logged, nothing changes and ErrDescriptorMismatch is returned.
	//
	// Parameters:
	//   - writes: one DescriptorWrite per layout binding
	//
	// Returns:
	//   - error: ErrDescriptorMismatch when the writes do not match the layout
	Update(writes ...DescriptorWrite) error

	// Generation increments every time Update succeeds.
	//
	// Returns:
	//   - uint64: the current binding generation
	Generation() uint64

	// Destroy releases the set. Safe to call more than once.
	Destroy()
}

// Pipeline is an opaque compute pipeline bound at dispatch time.
type Pipeline interface {
	Label() string
	Layouts() []DescriptorLayout
	Destroy()
}

// CommandBuffer records GPU work for later submission. A recorded buffer can be submitted any
// number of times; Begin discards the previous recording.
type CommandBuffer interface {
	// Label returns the debug label of the command buffer.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Family returns the queue family the buffer was allocated for.
	//
	// Returns:
	//   - QueueFamily: the owning queue family
	Family() QueueFamily

	// Begin starts a new recording, discarding any previous one.
	Begin()

	// End closes the recording.
	End()

	// Recorded reports whether the buffer holds a closed recording.
	//
	// Returns:
	//   - bool: true after End until the next Begin
	Recorded() bool

	// CopyBuffer records a buffer-to-buffer copy.
	//
	// Parameters:
	//   - src: the source buffer
	//   - srcOffset: byte offset into src
	//   - dst: the destination buffer
	//   - dstOffset: byte offset into dst
	//   - size: number of bytes to copy
	CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64)

	// CopyBufferToImage records a copy of tightly rowPitch-strided texel rows into an image.
	//
	// Parameters:
	//   - src: the source buffer
	//   - dst: the destination image
	//   - rowPitch: bytes between the starts of consecutive rows in src
	CopyBufferToImage(src Buffer, dst Image, rowPitch uint32)

	// BlitImage records a full-extent copy between two images of equal extent.
	//
	// Parameters:
	//   - src: the source image
	//   - dst: the destination image
	BlitImage(src, dst Image)

	// TransitionImage records an image layout transition.
	//
	// Parameters:
	//   - img: the image to transition
	//   - from: the expected current layout
	//   - to: the new layout
	TransitionImage(img Image, from, to ImageLayout)

	// BindPipeline records the pipeline used by following dispatches.
	//
	// Parameters:
	//   - p: the compute pipeline
	BindPipeline(p Pipeline)

	// BindDescriptorSets records the descriptor sets bound at groups 0..len(sets)-1.
	//
	// Parameters:
	//   - sets: the descriptor sets in group order
	BindDescriptorSets(sets ...DescriptorSet)

	// Dispatch records a compute dispatch.
	//
	// Parameters:
	//   - x, y, z: workgroup counts per dimension
	Dispatch(x, y, z uint32)

	// Destroy releases the command buffer. Safe to call more than once.
	Destroy()
}

// Semaphore orders one submission after another on the GPU timeline.
type Semaphore interface {
	Label() string
	Destroy()
}

// Fence is a CPU-observable completion signal.
type Fence interface {
	// Signaled polls the fence without blocking.
	//
	// Returns:
	//   - bool: true if the fence has been signaled since its last reset
	Signaled() bool

	// Wait blocks until the fence is signaled.
	Wait()

	// Reset returns the fence to the unsignaled state.
	Reset()

	// Destroy releases the fence. Safe to call more than once.
	Destroy()
}

// Queue accepts submissions for a single queue family.
type Queue interface {
	// Family returns the family this queue belongs to.
	//
	// Returns:
	//   - QueueFamily: the queue family
	Family() QueueFamily

	// Submit enqueues a submission. Every semaphore in info.Wait must have been signaled by an
	// earlier submission and is consumed by this one.
	//
	// Parameters:
	//   - info: the submission description
	Submit(info SubmitInfo)

	// WaitIdle blocks until all work submitted to this queue has completed.
	WaitIdle()
}

// Swapchain is the presentation collaborator.
type Swapchain interface {
	// Extent returns the current presentable extent.
	//
	// Returns:
	//   - Extent: the swapchain extent
	Extent() Extent

	// Format returns the texel format of the swapchain images.
	//
	// Returns:
	//   - Format: the swapchain image format
	Format() Format

	// Resize reconfigures the swapchain for a new surface extent.
	//
	// Parameters:
	//   - width: new width in pixels
	//   - height: new height in pixels
	Resize(width, height uint32)

	// AcquireNextImage acquires the next presentable image and arranges for signal to be
	// signaled when it is ready.
	//
	// Parameters:
	//   - signal: semaphore signaled once the image can be written
	//
	// Returns:
	//   - uint32: the acquired image index
	AcquireNextImage(signal Semaphore) uint32

	// Image returns the swapchain image at index.
	//
	// Parameters:
	//   - index: an index returned by AcquireNextImage
	//
	// Returns:
	//   - Image: the swapchain image
	Image(index uint32) Image

	// Present queues the image for display once every semaphore in wait is signaled.
	//
	// Parameters:
	//   - index: the acquired image index
	//   - queue: the present queue
	//   - wait: semaphores gating presentation
	Present(index uint32, queue Queue, wait []Semaphore)

	// Destroy releases the swapchain.
	Destroy()
}

// Device is the graphics-API device/queue provider.
type Device interface {
	// Backend returns which implementation backs this device.
	//
	// Returns:
	//   - BackendType: the backend type
	Backend() BackendType

	// Queue returns the queue for the given family.
	//
	// Parameters:
	//   - family: the queue family
	//
	// Returns:
	//   - Queue: the family's queue
	Queue(family QueueFamily) Queue

	// CreateBuffer allocates a buffer. Allocation failure is fatal.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - Buffer: the new buffer
	CreateBuffer(desc BufferDescriptor) Buffer

	// CreateImage allocates a 2D image. Allocation failure is fatal.
	//
	// Parameters:
	//   - desc: the image description
	//
	// Returns:
	//   - Image: the new image
	CreateImage(desc ImageDescriptor) Image

	// CreateSampler creates a linear, repeating sampler.
	//
	// Parameters:
	//   - label: debug label
	//
	// Returns:
	//   - Sampler: the new sampler
	CreateSampler(label string) Sampler

	// DescriptorLayout returns the device-global layout registered under key, creating it from
	// bindings on first use.
	//
	// Parameters:
	//   - key: cache key for the layout
	//   - bindings: the layout bindings, used only on creation
	//
	// Returns:
	//   - DescriptorLayout: the cached layout
	DescriptorLayout(key string, bindings ...DescriptorBinding) DescriptorLayout

	// CreateDescriptorSet allocates an empty descriptor set for layout.
	//
	// Parameters:
	//   - label: debug label
	//   - layout: the layout to allocate from
	//
	// Returns:
	//   - DescriptorSet: the new set
	CreateDescriptorSet(label string, layout DescriptorLayout) DescriptorSet

	// CreateComputePipeline compiles a compute pipeline. Failure is fatal.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - Pipeline: the new pipeline
	CreateComputePipeline(desc PipelineDescriptor) Pipeline

	// CreateCommandBuffer allocates a command buffer for the given family.
	//
	// Parameters:
	//   - label: debug label
	//   - family: the queue family it will be submitted to
	//
	// Returns:
	//   - CommandBuffer: the new command buffer
	CreateCommandBuffer(label string, family QueueFamily) CommandBuffer

	// CreateSemaphore creates an unsignaled semaphore.
	//
	// Parameters:
	//   - label: debug label
	//
	// Returns:
	//   - Semaphore: the new semaphore
	CreateSemaphore(label string) Semaphore

	// CreateFence creates a fence, optionally in the signaled state.
	//
	// Parameters:
	//   - label: debug label
	//   - signaled: initial state
	//
	// Returns:
	//   - Fence: the new fence
	CreateFence(label string, signaled bool) Fence

	// Swapchain returns the presentation swapchain.
	//
	// Returns:
	//   - Swapchain: the swapchain
	Swapchain() Swapchain

	// WaitIdle blocks until every queue is idle.
	WaitIdle()

	// Destroy releases the device-global descriptor layouts, the swapchain and the device
	// itself. The device must be idle.
	Destroy()
}
