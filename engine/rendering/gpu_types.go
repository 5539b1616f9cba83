package rendering

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-ecs/engine/camera"
	"github.com/Carmen-Shannon/oxy-ecs/engine/light"
	"github.com/Carmen-Shannon/oxy-ecs/engine/shader"
)

// GPUMeshInfoSource is the canonical WGSL definition of the MeshInfo struct.
// Matches GPUMeshInfo layout exactly (96 bytes, std430 aligned).
//
//go:embed assets/mesh_info.wgsl
var GPUMeshInfoSource string

// GPURenderInfoSource is the canonical WGSL definition of the RenderInfo struct.
// It references CameraUniform, so it must be included after camera.GPUCameraUniformSource.
//
//go:embed assets/render_info.wgsl
var GPURenderInfoSource string

//go:embed assets/render.wgsl
var renderShaderBody string

// RenderProgram is the pre-processed raycast render pass. Its declarations define the mesh
// (group 0), light (group 1) and output (group 2) descriptor layouts.
var RenderProgram = shader.MustProcess(renderShaderBody,
	shader.WithStruct("light", light.GPULightSource, "Light"),
	shader.WithStruct("camera", camera.GPUCameraUniformSource, "CameraUniform"),
	shader.WithStruct("mesh_info", GPUMeshInfoSource, "MeshInfo"),
	shader.WithStruct("render_info", GPURenderInfoSource, "RenderInfo"),
)

// RenderShaderSource is the complete WGSL of the raycast render pass.
var RenderShaderSource = RenderProgram.Source

// RenderWorkgroupSize is the width and height of one render workgroup.
const RenderWorkgroupSize = 8

// GPUMeshInfo locates one mesh inside the combined mesh buffer.
// Offsets are in 32-bit words from the start of the combined buffer.
// Size: 96 bytes.
type GPUMeshInfo struct {
	VertexOffset uint32                         // offset  0
	VertexCount  uint32                         // offset  4
	IndexOffset  uint32                         // offset  8
	IndexCount   uint32                         // offset 12
	Color        [4]float32                     // offset 16: material colour
	LightCount   uint32                         // offset 32
	Metallic     float32                        // offset 36
	Roughness    float32                        // offset 40
	_pad0        uint32                         // offset 44
	Lights       [light.MaxLightsPerMesh]uint32 // offset 48: indices into the combined light buffer
	_pad1        [2]uint32                      // offset 88
}

// GPUMeshInfoSize is the byte stride of GPUMeshInfo.
const GPUMeshInfoSize = 96

// Size returns the size of the GPUMeshInfo struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUMeshInfo) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo writes the record into buf, which must hold at least 96 bytes.
func (g *GPUMeshInfo) MarshalTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], g.VertexOffset)
	binary.LittleEndian.PutUint32(buf[4:], g.VertexCount)
	binary.LittleEndian.PutUint32(buf[8:], g.IndexOffset)
	binary.LittleEndian.PutUint32(buf[12:], g.IndexCount)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Color[i]))
	}
	binary.LittleEndian.PutUint32(buf[32:], g.LightCount)
	binary.LittleEndian.PutUint32(buf[36:], math.Float32bits(g.Metallic))
	binary.LittleEndian.PutUint32(buf[40:], math.Float32bits(g.Roughness))
	clear(buf[44:48])
	for i, idx := range g.Lights {
		binary.LittleEndian.PutUint32(buf[48+i*4:], idx)
	}
	clear(buf[88:96])
}

// GPURenderInfo is the per-frame uniform of the render pass.
// Size: 176 bytes.
type GPURenderInfo struct {
	Width      uint32                  // offset  0
	Height     uint32                  // offset  4
	RowPitch   uint32                  // offset  8: output row stride in texels
	MeshCount  uint32                  // offset 12
	LightCount uint32                  // offset 16
	BGRA       uint32                  // offset 20: 1 when the output format is BGRA
	_pad       [2]uint32               // offset 24
	Camera     camera.GPUCameraUniform // offset 32
}

// GPURenderInfoSize is the byte size of GPURenderInfo.
const GPURenderInfoSize = 176

// Size returns the size of the GPURenderInfo struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (176)
func (g *GPURenderInfo) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the uniform for upload.
//
// Returns:
//   - []byte: 176-byte buffer ready for GPU upload
func (g *GPURenderInfo) Marshal() []byte {
	buf := make([]byte, GPURenderInfoSize)
	binary.LittleEndian.PutUint32(buf[0:], g.Width)
	binary.LittleEndian.PutUint32(buf[4:], g.Height)
	binary.LittleEndian.PutUint32(buf[8:], g.RowPitch)
	binary.LittleEndian.PutUint32(buf[12:], g.MeshCount)
	binary.LittleEndian.PutUint32(buf[16:], g.LightCount)
	binary.LittleEndian.PutUint32(buf[20:], g.BGRA)
	g.Camera.MarshalTo(buf[32:])
	return buf
}
