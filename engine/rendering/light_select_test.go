package rendering

import (
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-ecs/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// go test -run ^TestSelectLights$ ./engine/rendering -count 1
func TestSelectLights(t *testing.T) {
	point := func(index uint32, x float32) lightCandidate {
		return lightCandidate{index: index, lightType: light.LightTypePoint, position: mgl32.Vec3{x, 0, 0}, lightRange: 100}
	}
	directional := func(index uint32) lightCandidate {
		return lightCandidate{index: index, lightType: light.LightTypeDirectional}
	}

	tests := []struct {
		name       string
		candidates []lightCandidate
		limit      int
		want       []uint32
	}{
		{
			name:       "nearest first",
			candidates: []lightCandidate{point(0, 9), point(1, 3), point(2, 6)},
			limit:      10,
			want:       []uint32{1, 2, 0},
		},
		{
			name:       "directional before point",
			candidates: []lightCandidate{point(0, 1), directional(1), point(2, 2)},
			limit:      10,
			want:       []uint32{1, 0, 2},
		},
		{
			name:       "ties keep buffer order",
			candidates: []lightCandidate{point(0, 4), point(1, -4)},
			limit:      10,
			want:       []uint32{0, 1},
		},
		{
			name: "out of range skipped",
			candidates: []lightCandidate{
				{index: 0, lightType: light.LightTypePoint, position: mgl32.Vec3{20, 0, 0}, lightRange: 10},
				point(1, 50),
			},
			limit: 10,
			want:  []uint32{1},
		},
		{
			name:       "limit",
			candidates: []lightCandidate{directional(0), point(1, 1), point(2, 2), point(3, 3)},
			limit:      2,
			want:       []uint32{0, 1},
		},
		{
			name:  "none",
			limit: 10,
			want:  []uint32{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectLights(mgl32.Vec3{}, tt.candidates, tt.limit)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// go test -run ^TestGPURecordSizes$ ./engine/rendering -count 1
func TestGPURecordSizes(t *testing.T) {
	if got := (&GPUMeshInfo{}).Size(); got != GPUMeshInfoSize {
		t.Errorf("Expected GPUMeshInfo to be %d bytes, got %d", GPUMeshInfoSize, got)
	}
	if got := (&GPURenderInfo{}).Size(); got != GPURenderInfoSize {
		t.Errorf("Expected GPURenderInfo to be %d bytes, got %d", GPURenderInfoSize, got)
	}
	if got := len((&GPURenderInfo{Width: 3}).Marshal()); got != GPURenderInfoSize {
		t.Errorf("Expected a %d byte render info, got %d", GPURenderInfoSize, got)
	}
}
