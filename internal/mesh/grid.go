package mesh

import (
	"github.com/Faultbox/verletcloth/pkg/math"
)

// Plane selects the orientation of a generated grid.
type Plane int

// Grid planes.
const (
	PlaneXY Plane = iota // Hanging sheet: rows run down -Y
	PlaneXZ              // Horizontal sheet: rows run along +Z
)

// String returns the plane name.
func (p Plane) String() string {
	switch p {
	case PlaneXY:
		return "xy"
	case PlaneXZ:
		return "xz"
	default:
		return "unknown"
	}
}

// ParsePlane converts "xy"/"xz" to a Plane. Unknown names map to PlaneXY.
func ParsePlane(s string) Plane {
	if s == "xz" {
		return PlaneXZ
	}
	return PlaneXY
}

// Grid builds a cols x rows vertex sheet with the given spacing. Vertices are
// row-major starting at the origin; every quad is split into two triangles along
// the same diagonal. Returns nil if either dimension is below 2.
func Grid(cols, rows int, spacing float32, plane Plane) *Mesh {
	if cols < 2 || rows < 2 {
		return nil
	}

	n := cols * rows
	m := &Mesh{
		Positions: make([]math.Vec3, 0, n),
		Colors:    make([]Color, 0, n),
		Normals:   make([]math.Vec3, 0, n),
		UVs:       make([]math.Vec2, 0, n),
		Indices:   make([]int32, 0, (cols-1)*(rows-1)*6),
	}

	normal := math.Vec3{Z: 1}
	if plane == PlaneXZ {
		normal = math.Vec3{Y: 1}
	}

	for y := range rows {
		for x := range cols {
			fx := float32(x) * spacing
			fy := float32(y) * spacing

			var pos math.Vec3
			switch plane {
			case PlaneXZ:
				pos = math.Vec3{X: fx, Z: fy}
			default:
				pos = math.Vec3{X: fx, Y: -fy}
			}

			m.Positions = append(m.Positions, pos)
			m.Colors = append(m.Colors, White)
			m.Normals = append(m.Normals, normal)
			m.UVs = append(m.UVs, math.Vec2{
				X: float32(x) / float32(cols-1),
				Y: float32(y) / float32(rows-1),
			})
		}
	}

	for y := range rows - 1 {
		for x := range cols - 1 {
			i0 := int32(y*cols + x)
			i1 := i0 + 1
			i2 := i0 + int32(cols)
			i3 := i2 + 1
			// Counter-clockwise when viewed from the normal side.
			m.Indices = append(m.Indices, i0, i2, i1, i1, i2, i3)
		}
	}

	return m
}

// GridIndex returns the vertex index of column x, row y in a Grid mesh.
func GridIndex(cols, x, y int) int32 {
	return int32(y*cols + x)
}
