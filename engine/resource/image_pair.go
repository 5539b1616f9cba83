package resource

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"go.uber.org/zap"
)

// ImagePair is a host-visible staging buffer feeding a sampled image. Rows in the staging buffer
// are padded to gpu.CopyPitchAlignment.
type ImagePair interface {
	// State returns the allocation state, keyed by extent.
	//
	// Returns:
	//   - State[gpu.Extent]: the current state
	State() State[gpu.Extent]

	// Ensure applies Plan for extent, (re)allocating the staging buffer and the image when the
	// extent changed.
	//
	// Parameters:
	//   - extent: the image extent required now
	//
	// Returns:
	//   - Action: what Ensure did
	Ensure(extent gpu.Extent) Action

	// Upload writes tightly packed texels into the staging buffer at the padded row pitch.
	//
	// Parameters:
	//   - texels: width*height texels in the pair's format
	Upload(texels []byte)

	// Record appends the layout transitions and the staging to image copy to cb.
	//
	// Parameters:
	//   - cb: a command buffer in the recording state
	Record(cb gpu.CommandBuffer)

	// RowPitch returns the padded staging row pitch in bytes.
	//
	// Returns:
	//   - uint32: the row pitch
	RowPitch() uint32

	// Image returns the current image, nil before the first Ensure.
	Image() gpu.Image

	// Staging returns the current staging buffer, nil before the first Ensure.
	Staging() gpu.Buffer

	// Recreations counts ActionRecreate outcomes since construction.
	Recreations() int

	// Destroy releases the staging buffer and the image. Safe to call more than once.
	Destroy()
}

type imagePair struct {
	mu          *sync.Mutex
	device      gpu.Device
	logger      *zap.Logger
	label       string
	format      gpu.Format
	state       State[gpu.Extent]
	rowPitch    uint32
	staging     gpu.Buffer
	image       gpu.Image
	recreations int
}

var _ ImagePair = &imagePair{}

// PaddedRowPitch returns the row pitch of a width-texel row rounded up to gpu.CopyPitchAlignment.
func PaddedRowPitch(width uint32, format gpu.Format) uint32 {
	return uint32(gpu.AlignUp(uint64(width)*uint64(gpu.BytesPerTexel(format)), gpu.CopyPitchAlignment))
}

func (p *imagePair) State() State[gpu.Extent] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *imagePair) Ensure(extent gpu.Extent) Action {
	p.mu.Lock()
	defer p.mu.Unlock()

	action := Plan(p.state, extent)
	switch action {
	case ActionUpdate:
		return action
	case ActionRecreate:
		p.recreations++
		p.logger.Debug("recreating image pair",
			zap.String("label", p.label),
			zap.Uint32("width", extent.Width),
			zap.Uint32("height", extent.Height))
		p.release()
	}

	p.state = Sized(extent)
	if extent.Empty() {
		return action
	}
	p.rowPitch = PaddedRowPitch(extent.Width, p.format)
	p.staging = p.device.CreateBuffer(gpu.BufferDescriptor{
		Label:  p.label + " Staging",
		Size:   uint64(p.rowPitch) * uint64(extent.Height),
		Usage:  gpu.BufferUsageTransferSrc,
		Memory: gpu.MemoryHostVisible,
	})
	p.image = p.device.CreateImage(gpu.ImageDescriptor{
		Label:  p.label,
		Extent: extent,
		Format: p.format,
		Usage:  gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
	})
	return action
}

func (p *imagePair) Upload(texels []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.staging == nil {
		p.logger.Error("upload before allocation", zap.String("label", p.label))
		return
	}
	extent, _ := p.state.Size()
	row := int(extent.Width * gpu.BytesPerTexel(p.format))
	if len(texels) < row*int(extent.Height) {
		p.logger.Error("texel data shorter than image",
			zap.String("label", p.label),
			zap.Int("len", len(texels)),
			zap.Int("want", row*int(extent.Height)))
		return
	}
	if uint32(row) == p.rowPitch {
		p.staging.SetData(0, texels[:row*int(extent.Height)])
		return
	}
	padded := make([]byte, int(p.rowPitch)*int(extent.Height))
	for y := 0; y < int(extent.Height); y++ {
		copy(padded[y*int(p.rowPitch):], texels[y*row:(y+1)*row])
	}
	p.staging.SetData(0, padded)
}

func (p *imagePair) Record(cb gpu.CommandBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.image == nil {
		return
	}
	cb.TransitionImage(p.image, gpu.LayoutUndefined, gpu.LayoutTransferDst)
	cb.CopyBufferToImage(p.staging, p.image, p.rowPitch)
	cb.TransitionImage(p.image, gpu.LayoutTransferDst, gpu.LayoutShaderRead)
}

func (p *imagePair) RowPitch() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rowPitch
}

func (p *imagePair) Image() gpu.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.image
}

func (p *imagePair) Staging() gpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.staging
}

func (p *imagePair) Recreations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recreations
}

func (p *imagePair) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
	p.state = Uninitialized[gpu.Extent]()
}

func (p *imagePair) release() {
	if p.staging != nil {
		p.staging.Destroy()
		p.staging = nil
	}
	if p.image != nil {
		p.image.Destroy()
		p.image = nil
	}
}
