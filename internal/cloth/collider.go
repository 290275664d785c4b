package cloth

import (
	gomath "math"

	"github.com/Faultbox/verletcloth/pkg/math"
)

// Collider is world geometry supplied by the host. Resolve treats the particle
// as a sphere of the given radius at p and, if it penetrates, returns the
// projected position on the surface and the contact normal.
type Collider interface {
	Resolve(p math.Vec3, radius float32) (pos, normal math.Vec3, hit bool)
}

// Plane is an infinite half-space: points with Normal·p < Offset are inside.
type Plane struct {
	Normal math.Vec3 // Unit length
	Offset float32
}

// Ground returns a Y-up plane at the given height.
func Ground(height float32) Plane {
	return Plane{Normal: math.Vec3{Y: 1}, Offset: height}
}

// Resolve implements Collider.
func (pl Plane) Resolve(p math.Vec3, radius float32) (math.Vec3, math.Vec3, bool) {
	d := pl.Normal.Dot(p) - pl.Offset - radius
	if d >= 0 {
		return p, math.Vec3{}, false
	}
	return p.Sub(pl.Normal.Scale(d)), pl.Normal, true
}

// Sphere is a solid ball.
type Sphere struct {
	Center math.Vec3
	Radius float32
}

// Resolve implements Collider.
func (s Sphere) Resolve(p math.Vec3, radius float32) (math.Vec3, math.Vec3, bool) {
	return pushFromPoint(p, s.Center, s.Radius+radius)
}

// Capsule is a segment swept by a radius.
type Capsule struct {
	A, B   math.Vec3
	Radius float32
}

// Resolve implements Collider.
func (c Capsule) Resolve(p math.Vec3, radius float32) (math.Vec3, math.Vec3, bool) {
	ab := c.B.Sub(c.A)
	t := float32(0)
	if l2 := ab.LengthSq(); l2 > 0 {
		t = math.Clamp(p.Sub(c.A).Dot(ab)/l2, 0, 1)
	}
	return pushFromPoint(p, c.A.Add(ab.Scale(t)), c.Radius+radius)
}

// pushFromPoint moves p to distance minDist from center if it is closer.
func pushFromPoint(p, center math.Vec3, minDist float32) (math.Vec3, math.Vec3, bool) {
	diff := p.Sub(center)
	d2 := diff.LengthSq()
	if d2 >= minDist*minDist {
		return p, math.Vec3{}, false
	}
	d := math.Sqrt(d2)
	n := math.Vec3{Y: 1}
	if d > degenerateLength {
		n = diff.Scale(1 / d)
	}
	return center.Add(n.Scale(minDist)), n, true
}

// Box is an axis-aligned solid box.
type Box struct {
	Min, Max math.Vec3
}

// Resolve implements Collider. A penetrating particle leaves through the face
// with the smallest penetration depth.
func (b Box) Resolve(p math.Vec3, radius float32) (math.Vec3, math.Vec3, bool) {
	lo := b.Min.Sub(math.Vec3{X: radius, Y: radius, Z: radius})
	hi := b.Max.Add(math.Vec3{X: radius, Y: radius, Z: radius})
	if p.X <= lo.X || p.X >= hi.X || p.Y <= lo.Y || p.Y >= hi.Y || p.Z <= lo.Z || p.Z >= hi.Z {
		return p, math.Vec3{}, false
	}

	best := hi.X - p.X
	out := math.Vec3{X: hi.X, Y: p.Y, Z: p.Z}
	n := math.Vec3{X: 1}

	if d := p.X - lo.X; d < best {
		best, out, n = d, math.Vec3{X: lo.X, Y: p.Y, Z: p.Z}, math.Vec3{X: -1}
	}
	if d := hi.Y - p.Y; d < best {
		best, out, n = d, math.Vec3{X: p.X, Y: hi.Y, Z: p.Z}, math.Vec3{Y: 1}
	}
	if d := p.Y - lo.Y; d < best {
		best, out, n = d, math.Vec3{X: p.X, Y: lo.Y, Z: p.Z}, math.Vec3{Y: -1}
	}
	if d := hi.Z - p.Z; d < best {
		best, out, n = d, math.Vec3{X: p.X, Y: p.Y, Z: hi.Z}, math.Vec3{Z: 1}
	}
	if d := p.Z - lo.Z; d < best {
		out, n = math.Vec3{X: p.X, Y: p.Y, Z: lo.Z}, math.Vec3{Z: -1}
	}
	return out, n, true
}

// HeightField is terrain sampled on a regular XZ grid. Heights are row-major,
// Cols samples per row starting at Origin, spaced CellSize apart. Particles
// outside the grid footprint are not affected.
type HeightField struct {
	Origin   math.Vec3
	CellSize float32
	Cols     int
	Rows     int
	Heights  []float32
}

// heightAt returns the bilinearly interpolated height and the surface normal at
// local grid coordinates.
func (h HeightField) heightAt(x, z float32) (float32, math.Vec3, bool) {
	if h.Cols < 2 || h.Rows < 2 || h.CellSize <= 0 || len(h.Heights) < h.Cols*h.Rows {
		return 0, math.Vec3{}, false
	}
	gx := x / h.CellSize
	gz := z / h.CellSize
	if gx < 0 || gz < 0 || gx > float32(h.Cols-1) || gz > float32(h.Rows-1) {
		return 0, math.Vec3{}, false
	}

	cx := min(int(gomath.Floor(float64(gx))), h.Cols-2)
	cz := min(int(gomath.Floor(float64(gz))), h.Rows-2)
	fx := gx - float32(cx)
	fz := gz - float32(cz)

	h00 := h.Heights[cz*h.Cols+cx]
	h10 := h.Heights[cz*h.Cols+cx+1]
	h01 := h.Heights[(cz+1)*h.Cols+cx]
	h11 := h.Heights[(cz+1)*h.Cols+cx+1]

	top := h00 + (h10-h00)*fx
	bottom := h01 + (h11-h01)*fx
	height := top + (bottom-top)*fz

	// Partial derivatives of the bilinear patch.
	dx := ((h10 - h00) + (h11-h01-h10+h00)*fz) / h.CellSize
	dz := ((h01 - h00) + (h11-h01-h10+h00)*fx) / h.CellSize
	n := math.Vec3{X: -dx, Y: 1, Z: -dz}.Normalize()
	return height, n, true
}

// Resolve implements Collider.
func (h HeightField) Resolve(p math.Vec3, radius float32) (math.Vec3, math.Vec3, bool) {
	local := p.Sub(h.Origin)
	height, n, ok := h.heightAt(local.X, local.Z)
	if !ok {
		return p, math.Vec3{}, false
	}
	floor := h.Origin.Y + height + radius
	if p.Y >= floor {
		return p, math.Vec3{}, false
	}
	return math.Vec3{X: p.X, Y: floor, Z: p.Z}, n, true
}
