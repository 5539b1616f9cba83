package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (144 bytes, std140 aligned).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera.
// Size: 144 bytes.
type GPUCameraUniform struct {
	ViewProj        [16]float32 // offset   0: combined view-projection matrix
	InverseViewProj [16]float32 // offset  64: inverse of ViewProj, used to build primary rays
	Position        [4]float32  // offset 128: world-space camera position, w is 1
}

// GPUCameraUniformSize is the byte size of GPUCameraUniform.
const GPUCameraUniformSize = 144

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (144)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo writes the uniform into buf, which must hold at least 144 bytes.
//
// Parameters:
//   - buf: the destination slice
func (g *GPUCameraUniform) MarshalTo(buf []byte) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewProj[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.InverseViewProj[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[128+i*4:], math.Float32bits(g.Position[i]))
	}
}
