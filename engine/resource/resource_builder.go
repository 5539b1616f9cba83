package resource

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"go.uber.org/zap"
)

// BufferPairBuilderOption is a functional option for configuring a BufferPair.
type BufferPairBuilderOption func(*bufferPair)

// WithBufferUsage adds usage flags to the device-local buffer.
//
// Parameters:
//   - usage: usage flags ORed onto the transfer flags
//
// Returns:
//   - BufferPairBuilderOption: option function to apply
func WithBufferUsage(usage gpu.BufferUsage) BufferPairBuilderOption {
	return func(p *bufferPair) {
		p.usage |= usage
	}
}

// WithPairLogger sets the logger of a BufferPair.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - BufferPairBuilderOption: option function to apply
func WithPairLogger(logger *zap.Logger) BufferPairBuilderOption {
	return func(p *bufferPair) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewBufferPair creates an unallocated BufferPair. Nothing is allocated until Ensure.
//
// Parameters:
//   - device: the device to allocate from
//   - label: debug label for both buffers
//   - stride: bytes per element
//   - options: functional options
//
// Returns:
//   - BufferPair: the new pair
func NewBufferPair(device gpu.Device, label string, stride uint64, options ...BufferPairBuilderOption) BufferPair {
	p := &bufferPair{
		mu:     &sync.Mutex{},
		device: device,
		logger: zap.NewNop(),
		label:  label,
		stride: stride,
		usage:  gpu.BufferUsageStorage,
		state:  Uninitialized[uint64](),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// NewImagePair creates an unallocated ImagePair. Nothing is allocated until Ensure.
//
// Parameters:
//   - device: the device to allocate from
//   - label: debug label for the image and its staging buffer
//   - format: the image format
//   - logger: the zap logger (nil for a no-op logger)
//
// Returns:
//   - ImagePair: the new pair
func NewImagePair(device gpu.Device, label string, format gpu.Format, logger *zap.Logger) ImagePair {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &imagePair{
		mu:     &sync.Mutex{},
		device: device,
		logger: logger,
		label:  label,
		format: format,
		state:  Uninitialized[gpu.Extent](),
	}
}

// NewCombinedBuffer creates an unallocated CombinedBuffer.
//
// Parameters:
//   - device: the device to allocate from
//   - label: debug label
//   - usage: usage flags of the combined buffer
//   - minimum: smallest allocation in bytes, used while the logical size is below it
//   - logger: the zap logger (nil for a no-op logger)
//
// Returns:
//   - CombinedBuffer: the new buffer
func NewCombinedBuffer(device gpu.Device, label string, usage gpu.BufferUsage, minimum uint64, logger *zap.Logger) CombinedBuffer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &combinedBuffer{
		mu:      &sync.Mutex{},
		device:  device,
		logger:  logger,
		label:   label,
		usage:   usage,
		minimum: max(minimum, 4),
		state:   Uninitialized[uint64](),
	}
}
