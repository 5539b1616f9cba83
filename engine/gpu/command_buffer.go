package gpu

import (
	"sync"

	"go.uber.org/zap"
)

// commandKind enumerates the operations a commandBuffer can record.
type commandKind int

const (
	cmdCopyBuffer commandKind = iota
	cmdCopyBufferToImage
	cmdBlitImage
	cmdTransitionImage
	cmdBindPipeline
	cmdBindDescriptorSets
	cmdDispatch
)

// command is one recorded operation. Backends replay the list at submission time.
type command struct {
	kind commandKind

	src, dst          Buffer
	srcOffset, offset uint64
	size              uint64

	image, dstImage Image
	rowPitch        uint32
	from, to        ImageLayout

	pipeline Pipeline
	sets     []DescriptorSet

	x, y, z uint32
}

// commandBuffer is the recording side of CommandBuffer, shared by both backends.
type commandBuffer struct {
	mu        *sync.Mutex
	logger    *zap.Logger
	label     string
	family    QueueFamily
	commands  []command
	recording bool
	recorded  bool
	destroyed bool
}

var _ CommandBuffer = &commandBuffer{}

func newCommandBuffer(logger *zap.Logger, label string, family QueueFamily) *commandBuffer {
	return &commandBuffer{
		mu:     &sync.Mutex{},
		logger: logger,
		label:  label,
		family: family,
	}
}

func (c *commandBuffer) Label() string {
	return c.label
}

func (c *commandBuffer) Family() QueueFamily {
	return c.family
}

func (c *commandBuffer) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = c.commands[:0]
	c.recording = true
	c.recorded = false
}

func (c *commandBuffer) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		c.logger.Error("command buffer ended without Begin", zap.String("label", c.label))
		return
	}
	c.recording = false
	c.recorded = true
}

func (c *commandBuffer) Recorded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorded && !c.destroyed
}

func (c *commandBuffer) CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) {
	c.record(command{kind: cmdCopyBuffer, src: src, srcOffset: srcOffset, dst: dst, offset: dstOffset, size: size})
}

func (c *commandBuffer) CopyBufferToImage(src Buffer, dst Image, rowPitch uint32) {
	c.record(command{kind: cmdCopyBufferToImage, src: src, dstImage: dst, rowPitch: rowPitch})
}

func (c *commandBuffer) BlitImage(src, dst Image) {
	c.record(command{kind: cmdBlitImage, image: src, dstImage: dst})
}

func (c *commandBuffer) TransitionImage(img Image, from, to ImageLayout) {
	c.record(command{kind: cmdTransitionImage, image: img, from: from, to: to})
}

func (c *commandBuffer) BindPipeline(p Pipeline) {
	c.record(command{kind: cmdBindPipeline, pipeline: p})
}

func (c *commandBuffer) BindDescriptorSets(sets ...DescriptorSet) {
	c.record(command{kind: cmdBindDescriptorSets, sets: append([]DescriptorSet(nil), sets...)})
}

func (c *commandBuffer) Dispatch(x, y, z uint32) {
	c.record(command{kind: cmdDispatch, x: x, y: y, z: z})
}

func (c *commandBuffer) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	c.commands = nil
	c.recorded = false
}

// record appends cmd to the open recording; recording outside Begin/End is a programming error.
func (c *commandBuffer) record(cmd command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		c.logger.Error("command recorded outside Begin/End", zap.String("label", c.label))
		return
	}
	c.commands = append(c.commands, cmd)
}

// snapshot returns a copy of the closed recording for replay.
func (c *commandBuffer) snapshot() ([]command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recorded || c.destroyed {
		return nil, false
	}
	out := make([]command, len(c.commands))
	copy(out, c.commands)
	return out, true
}
