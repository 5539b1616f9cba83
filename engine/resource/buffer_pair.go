package resource

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"go.uber.org/zap"
)

// BufferPair is a host-visible staging buffer and a device-local buffer of equal size.
// Both are sized by an element count times a fixed stride and are only reallocated when the
// element count changes.
type BufferPair interface {
	// Label returns the debug label used for both buffers.
	//
	// Returns:
	//   - string: the label
	Label() string

	// State returns the allocation state, in elements.
	//
	// Returns:
	//   - State[uint64]: the current state
	State() State[uint64]

	// Ensure applies Plan for count elements. On ActionCreate and ActionRecreate both buffers are
	// (re)allocated at count*stride bytes and the previous pair, if any, is destroyed.
	// A count of zero releases the buffers and leaves Staging and Device nil.
	//
	// Parameters:
	//   - count: the number of elements the buffers must hold
	//
	// Returns:
	//   - Action: what Ensure did
	Ensure(count uint64) Action

	// Upload writes data into the staging buffer.
	//
	// Parameters:
	//   - data: the bytes to write, at most Bytes() long
	Upload(data []byte)

	// Record appends a full staging to device copy to cb.
	//
	// Parameters:
	//   - cb: a command buffer in the recording state
	Record(cb gpu.CommandBuffer)

	// Staging returns the host-visible buffer.
	//
	// Returns:
	//   - gpu.Buffer: the staging buffer, nil before the first non-empty Ensure
	Staging() gpu.Buffer

	// Device returns the device-local buffer.
	//
	// Returns:
	//   - gpu.Buffer: the device buffer, nil before the first non-empty Ensure
	Device() gpu.Buffer

	// Bytes returns the size of each buffer in bytes.
	//
	// Returns:
	//   - uint64: count*stride of the current allocation
	Bytes() uint64

	// Recreations counts ActionRecreate outcomes since construction.
	//
	// Returns:
	//   - int: the recreation count
	Recreations() int

	// Destroy releases both buffers. Safe to call more than once.
	Destroy()
}

type bufferPair struct {
	mu          *sync.Mutex
	device      gpu.Device
	logger      *zap.Logger
	label       string
	stride      uint64
	usage       gpu.BufferUsage
	state       State[uint64]
	staging     gpu.Buffer
	local       gpu.Buffer
	recreations int
}

var _ BufferPair = &bufferPair{}

func (p *bufferPair) Label() string {
	return p.label
}

func (p *bufferPair) State() State[uint64] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *bufferPair) Ensure(count uint64) Action {
	p.mu.Lock()
	defer p.mu.Unlock()

	action := Plan(p.state, count)
	switch action {
	case ActionUpdate:
		return action
	case ActionRecreate:
		p.recreations++
		p.logger.Debug("recreating buffer pair",
			zap.String("label", p.label),
			zap.Stringer("from", p.state),
			zap.Uint64("count", count))
		p.release()
	}

	p.state = Sized(count)
	if count == 0 {
		return action
	}
	size := count * p.stride
	p.staging = p.device.CreateBuffer(gpu.BufferDescriptor{
		Label:  p.label + " Staging",
		Size:   size,
		Usage:  gpu.BufferUsageTransferSrc,
		Memory: gpu.MemoryHostVisible,
	})
	p.local = p.device.CreateBuffer(gpu.BufferDescriptor{
		Label:  p.label,
		Size:   size,
		Usage:  p.usage | gpu.BufferUsageTransferDst | gpu.BufferUsageTransferSrc,
		Memory: gpu.MemoryDeviceLocal,
	})
	return action
}

func (p *bufferPair) Upload(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.staging == nil {
		p.logger.Error("upload before allocation", zap.String("label", p.label))
		return
	}
	p.staging.SetData(0, data)
}

func (p *bufferPair) Record(cb gpu.CommandBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.staging == nil {
		return
	}
	cb.CopyBuffer(p.staging, 0, p.local, 0, p.staging.Size())
}

func (p *bufferPair) Staging() gpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.staging
}

func (p *bufferPair) Device() gpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

func (p *bufferPair) Bytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, _ := p.state.Size()
	return n * p.stride
}

func (p *bufferPair) Recreations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recreations
}

func (p *bufferPair) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
	p.state = Uninitialized[uint64]()
}

// release must be called with mu held.
func (p *bufferPair) release() {
	if p.staging != nil {
		p.staging.Destroy()
		p.staging = nil
	}
	if p.local != nil {
		p.local.Destroy()
		p.local = nil
	}
}
