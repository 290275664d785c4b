// Package mesh holds the immutable vertex and triangle arrays a host hands to the
// cloth solver, plus helpers to generate, validate and place them.
package mesh

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/verletcloth/pkg/math"
)

// Mesh validation errors.
var (
	ErrEmptyMesh         = errors.New("mesh has no vertices or triangles")
	ErrIndexCount        = errors.New("index count is not a multiple of 3")
	ErrVertexIndex       = errors.New("triangle references a vertex out of range")
	ErrAttributeLength   = errors.New("vertex attribute length does not match position count")
	ErrNonFinitePosition = errors.New("vertex position is not finite")
)

// Color is an 8-bit RGBA vertex color.
type Color struct {
	R, G, B, A uint8
}

// White is the default vertex color.
var White = Color{255, 255, 255, 255}

// Tangent is a per-vertex tangent with handedness.
type Tangent struct {
	Direction math.Vec3
	FlipY     bool
}

// Triangle is a triple of vertex indices.
type Triangle [3]int32

// Mesh is the vertex data of a renderable surface. Attribute slices are either
// empty or the same length as Positions.
type Mesh struct {
	Positions []math.Vec3
	Colors    []Color
	Normals   []math.Vec3
	Tangents  []Tangent
	UVs       []math.Vec2
	Indices   []int32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of complete triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangles returns the index buffer as triangle triples.
func (m *Mesh) Triangles() []Triangle {
	tris := make([]Triangle, m.TriangleCount())
	for i := range tris {
		tris[i] = Triangle{m.Indices[i*3], m.Indices[i*3+1], m.Indices[i*3+2]}
	}
	return tris
}

// ColorAt returns the vertex color, or White when the mesh carries none.
func (m *Mesh) ColorAt(i int) Color {
	if i < len(m.Colors) {
		return m.Colors[i]
	}
	return White
}

// Validate checks the mesh is usable as cloth topology. All problems found are
// returned together.
func (m *Mesh) Validate() error {
	if m == nil || len(m.Positions) == 0 || len(m.Indices) < 3 {
		return ErrEmptyMesh
	}

	var err error
	if len(m.Indices)%3 != 0 {
		err = multierr.Append(err, fmt.Errorf("%w: %d indices", ErrIndexCount, len(m.Indices)))
	}

	n := len(m.Positions)
	for i, idx := range m.Indices {
		if idx < 0 || int(idx) >= n {
			err = multierr.Append(err, fmt.Errorf("%w: index %d = %d (vertices %d)", ErrVertexIndex, i, idx, n))
			break
		}
	}

	for i, p := range m.Positions {
		if !p.IsFinite() {
			err = multierr.Append(err, fmt.Errorf("%w: vertex %d", ErrNonFinitePosition, i))
			break
		}
	}

	check := func(name string, l int) {
		if l != 0 && l != n {
			err = multierr.Append(err, fmt.Errorf("%w: %s has %d, want %d", ErrAttributeLength, name, l, n))
		}
	}
	check("colors", len(m.Colors))
	check("normals", len(m.Normals))
	check("tangents", len(m.Tangents))
	check("uvs", len(m.UVs))

	return err
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Positions: append([]math.Vec3(nil), m.Positions...),
		Colors:    append([]Color(nil), m.Colors...),
		Normals:   append([]math.Vec3(nil), m.Normals...),
		Tangents:  append([]Tangent(nil), m.Tangents...),
		UVs:       append([]math.Vec2(nil), m.UVs...),
		Indices:   append([]int32(nil), m.Indices...),
	}
}

// Transform returns a copy with positions, normals and tangents moved by xf.
func (m *Mesh) Transform(xf math.Mat4) *Mesh {
	out := m.Clone()
	if xf.IsIdentity() {
		return out
	}
	for i, p := range out.Positions {
		out.Positions[i] = xf.TransformPoint(p)
	}
	for i, n := range out.Normals {
		out.Normals[i] = xf.TransformDirection(n).Normalize()
	}
	for i, t := range out.Tangents {
		out.Tangents[i].Direction = xf.TransformDirection(t.Direction).Normalize()
	}
	return out
}

// Bounds returns the axis-aligned bounds of the positions.
func (m *Mesh) Bounds() (lo, hi math.Vec3) {
	if len(m.Positions) == 0 {
		return
	}
	lo, hi = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return lo, hi
}
