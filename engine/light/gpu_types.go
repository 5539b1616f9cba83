package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxLightsPerMesh is the number of light indices stored in each mesh record.
const MaxLightsPerMesh = 10

// GPULightSource is the canonical WGSL definition of the Light struct.
// Matches GPULight layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light source.
// Size: 64 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position  [4]float32 // offset  0: world-space position, w is 1
	Forward   [4]float32 // offset 16: normalized direction, w is 0
	Color     [4]float32 // offset 32: RGBA color
	LightType uint32     // offset 48: 0 = point, 1 = directional
	Intensity float32    // offset 52: scalar multiplier
	Range     float32    // offset 56: attenuation cutoff distance
	_pad      uint32     // offset 60: padding to 64-byte alignment
}

// GPULightSize is the byte stride of GPULight.
const GPULightSize = 64

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, GPULightSize)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Forward[i]))
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(g.Color[i]))
	}
	binary.LittleEndian.PutUint32(buf[48:52], g.LightType)
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.Intensity))
	binary.LittleEndian.PutUint32(buf[56:60], math.Float32bits(g.Range))
	binary.LittleEndian.PutUint32(buf[60:64], 0) // padding
	return buf
}
