package rendering

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-ecs/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// lightCandidate is one entry of the combined light buffer as seen by light selection.
type lightCandidate struct {
	index      uint32
	lightType  light.LightType
	position   mgl32.Vec3
	lightRange float32
}

// selectLights picks the lights that shade a mesh at origin. Directional lights come first in
// buffer order, then point lights within range ordered by distance. At most limit indices are
// returned.
func selectLights(origin mgl32.Vec3, candidates []lightCandidate, limit int) []uint32 {
	type ranked struct {
		index uint32
		dist  float32
	}
	out := make([]uint32, 0, limit)
	points := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		if c.lightType == light.LightTypeDirectional {
			if len(out) < limit {
				out = append(out, c.index)
			}
			continue
		}
		d := c.position.Sub(origin).Len()
		if c.lightRange > 0 && d > c.lightRange {
			continue
		}
		points = append(points, ranked{index: c.index, dist: d})
	}
	slices.SortStableFunc(points, func(a, b ranked) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})
	for _, p := range points {
		if len(out) == limit {
			break
		}
		out = append(out, p.index)
	}
	return out
}
