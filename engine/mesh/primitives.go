package mesh

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the CPU-side vertex of a mesh.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Tangent  mgl32.Vec4
}

func (v Vertex) gpu() GPUVertex {
	return GPUVertex{
		Position: [4]float32{v.Position[0], v.Position[1], v.Position[2], 1},
		Normal:   [4]float32{v.Normal[0], v.Normal[1], v.Normal[2], 0},
		UV:       [2]float32{v.UV[0], v.UV[1]},
		Tangent:  v.Tangent,
	}
}

// Primitive names a built-in shape.
type Primitive string

const (
	PrimitiveTriangle Primitive = "triangle"
	PrimitiveQuad     Primitive = "quad"
	PrimitiveCube     Primitive = "cube"
)

// ParsePrimitive maps a name onto a Primitive.
//
// Parameters:
//   - s: "triangle", "quad" or "cube" (case-insensitive)
//
// Returns:
//   - Primitive: the primitive
//   - error: error if the name is unknown
func ParsePrimitive(s string) (Primitive, error) {
	switch p := Primitive(strings.ToLower(strings.TrimSpace(s))); p {
	case PrimitiveTriangle, PrimitiveQuad, PrimitiveCube:
		return p, nil
	}
	return "", fmt.Errorf("mesh: unknown primitive %q", s)
}

// Geometry returns the vertices and indices of p.
func (p Primitive) Geometry() ([]Vertex, []uint32) {
	switch p {
	case PrimitiveQuad:
		return Quad()
	case PrimitiveCube:
		return Cube()
	default:
		return Triangle()
	}
}

// Triangle returns a unit triangle in the XY plane facing +Z.
func Triangle() ([]Vertex, []uint32) {
	n := mgl32.Vec3{0, 0, 1}
	t := mgl32.Vec4{1, 0, 0, 1}
	return []Vertex{
		{Position: mgl32.Vec3{-0.5, -0.5, 0}, Normal: n, UV: mgl32.Vec2{0, 1}, Tangent: t},
		{Position: mgl32.Vec3{0.5, -0.5, 0}, Normal: n, UV: mgl32.Vec2{1, 1}, Tangent: t},
		{Position: mgl32.Vec3{0, 0.5, 0}, Normal: n, UV: mgl32.Vec2{0.5, 0}, Tangent: t},
	}, []uint32{0, 1, 2}
}

// Quad returns a unit quad in the XY plane facing +Z.
func Quad() ([]Vertex, []uint32) {
	n := mgl32.Vec3{0, 0, 1}
	t := mgl32.Vec4{1, 0, 0, 1}
	return []Vertex{
		{Position: mgl32.Vec3{-0.5, -0.5, 0}, Normal: n, UV: mgl32.Vec2{0, 1}, Tangent: t},
		{Position: mgl32.Vec3{0.5, -0.5, 0}, Normal: n, UV: mgl32.Vec2{1, 1}, Tangent: t},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, Normal: n, UV: mgl32.Vec2{1, 0}, Tangent: t},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, Normal: n, UV: mgl32.Vec2{0, 0}, Tangent: t},
	}, []uint32{0, 1, 2, 0, 2, 3}
}

// Cube returns a unit cube with per-face normals: 24 vertices, 36 indices.
func Cube() ([]Vertex, []uint32) {
	faces := []struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}
	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range faces {
		base := uint32(len(vertices))
		center := f.normal.Mul(0.5)
		for _, c := range corners {
			pos := center.Add(f.u.Mul(c[0] * 0.5)).Add(f.v.Mul(c[1] * 0.5))
			vertices = append(vertices, Vertex{
				Position: pos,
				Normal:   f.normal,
				UV:       mgl32.Vec2{(c[0] + 1) / 2, 1 - (c[1]+1)/2},
				Tangent:  f.u.Vec4(1),
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}
