package mesh

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-ecs/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUVertexSource is the canonical WGSL definition of the Vertex struct.
// Matches GPUVertex layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUModelUniformSource is the canonical WGSL definition of the ModelUniform struct.
//
//go:embed assets/model_uniform.wgsl
var GPUModelUniformSource string

//go:embed assets/mesh_transform.wgsl
var transformShaderBody string

// TransformProgram is the pre-processed per-mesh transform compute pass.
var TransformProgram = shader.MustProcess(transformShaderBody,
	shader.WithStruct("vertex", GPUVertexSource, "Vertex"),
	shader.WithStruct("model_uniform", GPUModelUniformSource, "ModelUniform"),
)

// TransformShaderSource is the complete WGSL of the per-mesh transform compute pass.
var TransformShaderSource = TransformProgram.Source

// TransformWorkgroupSize is the workgroup width of the transform compute pass.
const TransformWorkgroupSize = 64

// GPUVertex is the GPU-aligned representation of one vertex.
// Size: 64 bytes (std430 / WGSL aligned).
type GPUVertex struct {
	Position [4]float32 // offset  0: w is 1
	Normal   [4]float32 // offset 16: w is 0
	UV       [2]float32 // offset 32
	_pad     [2]float32 // offset 40
	Tangent  [4]float32 // offset 48: w is handedness
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo writes the vertex into buf, which must hold at least 64 bytes.
func (g *GPUVertex) MarshalTo(buf []byte) {
	putFloats(buf[0:], g.Position[:])
	putFloats(buf[16:], g.Normal[:])
	putFloats(buf[32:], g.UV[:])
	binary.LittleEndian.PutUint64(buf[40:48], 0) // _pad
	putFloats(buf[48:], g.Tangent[:])
}

// GPUVertexSize is the byte stride of GPUVertex.
const GPUVertexSize = 64

// GPUIndexSize is the byte stride of an index.
const GPUIndexSize = 4

// GPUModelUniform is the per-mesh uniform read by the transform pass.
// Size: 144 bytes (std140 aligned).
type GPUModelUniform struct {
	Model        [16]float32 // offset   0
	NormalMatrix [16]float32 // offset  64
	VertexCount  uint32      // offset 128
	_pad         [3]uint32   // offset 132
}

// Size returns the size of the GPUModelUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (144)
func (g *GPUModelUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the uniform for GPU upload.
//
// Returns:
//   - []byte: 144-byte buffer ready for GPU upload
func (g *GPUModelUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	putFloats(buf[0:], g.Model[:])
	putFloats(buf[64:], g.NormalMatrix[:])
	binary.LittleEndian.PutUint32(buf[128:], g.VertexCount)
	return buf
}

func newModelUniform(model mgl32.Mat4, vertexCount int) *GPUModelUniform {
	normal := model.Inv().Transpose()
	return &GPUModelUniform{
		Model:        model,
		NormalMatrix: normal,
		VertexCount:  uint32(vertexCount),
	}
}

func putFloats(buf []byte, values []float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}
