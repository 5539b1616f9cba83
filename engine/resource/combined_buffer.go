package resource

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"go.uber.org/zap"
)

// Member is one source buffer copied into a CombinedBuffer.
type Member struct {
	Buffer gpu.Buffer
	Size   uint64
}

// Segment is where a member landed inside a CombinedBuffer.
type Segment struct {
	Offset uint64
	Size   uint64
}

// CombinedBuffer aggregates many member buffers into one device buffer. Its logical size is
// the sum of the member sizes; the allocation is rebuilt only when that sum changes.
type CombinedBuffer interface {
	// Label returns the debug label.
	Label() string

	// Ensure applies Plan for the summed member sizes.
	//
	// Parameters:
	//   - members: the active members in copy order
	//
	// Returns:
	//   - Action: what Ensure did; callers must rebind descriptor sets on create and recreate
	Ensure(members []Member) Action

	// Record appends one copy per member to cb, each at the sum of the sizes copied before it.
	//
	// Parameters:
	//   - cb: a command buffer in the recording state
	//   - members: the active members in copy order, as passed to Ensure
	//
	// Returns:
	//   - []Segment: where each member was copied
	Record(cb gpu.CommandBuffer, members []Member) []Segment

	// Size returns the logical size, the sum of active member sizes.
	Size() uint64

	// Buffer returns the device buffer, nil before the first Ensure.
	Buffer() gpu.Buffer

	// Recreations counts ActionRecreate outcomes since construction.
	Recreations() int

	// Destroy releases the device buffer. Safe to call more than once.
	Destroy()
}

type combinedBuffer struct {
	mu          *sync.Mutex
	device      gpu.Device
	logger      *zap.Logger
	label       string
	usage       gpu.BufferUsage
	minimum     uint64
	state       State[uint64]
	buffer      gpu.Buffer
	recreations int
}

var _ CombinedBuffer = &combinedBuffer{}

// Offsets returns the accumulated copy offset of every member.
func Offsets(members []Member) []Segment {
	out := make([]Segment, len(members))
	var offset uint64
	for i, m := range members {
		out[i] = Segment{Offset: offset, Size: m.Size}
		offset += m.Size
	}
	return out
}

func total(members []Member) uint64 {
	var sum uint64
	for _, m := range members {
		sum += m.Size
	}
	return sum
}

func (c *combinedBuffer) Label() string {
	return c.label
}

func (c *combinedBuffer) Ensure(members []Member) Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := total(members)
	action := Plan(c.state, sum)
	switch action {
	case ActionUpdate:
		return action
	case ActionRecreate:
		c.recreations++
		prev, _ := c.state.Size()
		c.logger.Debug("rebuilding combined buffer",
			zap.String("label", c.label),
			zap.Uint64("from", prev),
			zap.Uint64("to", sum))
		c.buffer.Destroy()
	}
	c.state = Sized(sum)
	c.buffer = c.device.CreateBuffer(gpu.BufferDescriptor{
		Label:  c.label,
		Size:   max(sum, c.minimum),
		Usage:  c.usage | gpu.BufferUsageTransferDst,
		Memory: gpu.MemoryDeviceLocal,
	})
	return action
}

func (c *combinedBuffer) Record(cb gpu.CommandBuffer, members []Member) []Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	segments := Offsets(members)
	if c.buffer == nil {
		c.logger.Error("record before allocation", zap.String("label", c.label))
		return segments
	}
	for i, m := range members {
		if m.Size == 0 || m.Buffer == nil {
			continue
		}
		cb.CopyBuffer(m.Buffer, 0, c.buffer, segments[i].Offset, m.Size)
	}
	return segments
}

func (c *combinedBuffer) Size() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := c.state.Size()
	return n
}

func (c *combinedBuffer) Buffer() gpu.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

func (c *combinedBuffer) Recreations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recreations
}

func (c *combinedBuffer) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffer != nil {
		c.buffer.Destroy()
		c.buffer = nil
	}
	c.state = Uninitialized[uint64]()
}
