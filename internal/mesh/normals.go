package mesh

import (
	"github.com/Faultbox/verletcloth/pkg/math"
)

// ComputeNormals writes area-weighted vertex normals for positions into out,
// which must be at least len(positions) long. Vertices touched only by
// degenerate triangles keep a zero normal.
func ComputeNormals(positions []math.Vec3, tris []Triangle, out []math.Vec3) {
	for i := range positions {
		out[i] = math.Vec3{}
	}

	for _, tri := range tris {
		a, b, c := tri[0], tri[1], tri[2]
		if !inRange(a, len(positions)) || !inRange(b, len(positions)) || !inRange(c, len(positions)) {
			continue
		}
		p0 := positions[a]
		// The unnormalized cross product is twice the face area, so larger
		// faces weigh more.
		fn := positions[b].Sub(p0).Cross(positions[c].Sub(p0))
		out[a] = out[a].Add(fn)
		out[b] = out[b].Add(fn)
		out[c] = out[c].Add(fn)
	}

	for i := range positions {
		out[i] = out[i].Normalize()
	}
}

func inRange(i int32, n int) bool {
	return i >= 0 && int(i) < n
}
