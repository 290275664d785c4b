package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/verletcloth/internal/mesh"
	"github.com/Faultbox/verletcloth/pkg/math"
)

// ErrOBJSyntax is wrapped by every OBJ parse error.
var ErrOBJSyntax = errors.New("OBJ syntax error")

// OBJCorner is one face corner. Indices are zero-based; -1 means absent.
type OBJCorner struct {
	V, VT, VN int32
}

// OBJ is a parsed Wavefront OBJ file. Polygons are fan-triangulated on load.
// Materials, groups and smoothing directives are ignored.
type OBJ struct {
	Positions []math.Vec3
	Colors    []mesh.Color // Per position; empty unless every v line carries a color
	UVs       []math.Vec2
	Normals   []math.Vec3
	Triangles [][3]OBJCorner
}

// ParseOBJ reads an OBJ file.
func ParseOBJ(r io.Reader) (*OBJ, error) {
	obj := &OBJ{}
	colored := true

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "v":
			var p math.Vec3
			var c mesh.Color
			var hasColor bool
			p, c, hasColor, err = parseOBJVertex(fields[1:])
			if err == nil {
				obj.Positions = append(obj.Positions, p)
				obj.Colors = append(obj.Colors, c)
				colored = colored && hasColor
			}
		case "vt":
			var f []float32
			f, err = parseFloats(fields[1:], 1, 3)
			if err == nil {
				uv := math.Vec2{X: f[0]}
				if len(f) > 1 {
					uv.Y = f[1]
				}
				obj.UVs = append(obj.UVs, uv)
			}
		case "vn":
			var f []float32
			f, err = parseFloats(fields[1:], 3, 3)
			if err == nil {
				obj.Normals = append(obj.Normals, math.Vec3{X: f[0], Y: f[1], Z: f[2]})
			}
		case "f":
			err = obj.parseFace(fields[1:])
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrOBJSyntax, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}

	if !colored || len(obj.Positions) == 0 {
		obj.Colors = nil
	}
	return obj, nil
}

// LoadOBJ parses an OBJ file from disk.
func LoadOBJ(path string) (*OBJ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()
	return ParseOBJ(f)
}

// parseOBJVertex reads "x y z [w]" or "x y z r g b" with colors in [0,1].
func parseOBJVertex(fields []string) (math.Vec3, mesh.Color, bool, error) {
	f, err := parseFloats(fields, 3, 7)
	if err != nil {
		return math.Vec3{}, mesh.Color{}, false, err
	}
	p := math.Vec3{X: f[0], Y: f[1], Z: f[2]}
	if len(f) < 6 {
		return p, mesh.White, false, nil
	}
	unit := func(v float32) uint8 { return uint8(math.Clamp(v, 0, 1)*255 + 0.5) }
	return p, mesh.Color{R: unit(f[3]), G: unit(f[4]), B: unit(f[5]), A: 255}, true, nil
}

func parseFloats(fields []string, lo, hi int) ([]float32, error) {
	if len(fields) < lo || len(fields) > hi {
		return nil, fmt.Errorf("expected %d to %d values, got %d", lo, hi, len(fields))
	}
	out := make([]float32, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", s)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseFace reads one polygon and appends its fan triangulation.
func (o *OBJ) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("face has %d vertices, need at least 3", len(fields))
	}
	corners := make([]OBJCorner, len(fields))
	for i, f := range fields {
		c, err := o.parseCorner(f)
		if err != nil {
			return err
		}
		corners[i] = c
	}
	for i := 1; i+1 < len(corners); i++ {
		o.Triangles = append(o.Triangles, [3]OBJCorner{corners[0], corners[i], corners[i+1]})
	}
	return nil
}

// parseCorner reads "v", "v/vt", "v//vn" or "v/vt/vn". Negative indices count
// back from the most recent element.
func (o *OBJ) parseCorner(s string) (OBJCorner, error) {
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return OBJCorner{}, fmt.Errorf("bad face vertex %q", s)
	}
	c := OBJCorner{V: -1, VT: -1, VN: -1}
	counts := [3]int{len(o.Positions), len(o.UVs), len(o.Normals)}
	dst := [3]*int32{&c.V, &c.VT, &c.VN}
	for i, p := range parts {
		if p == "" {
			if i == 0 {
				return OBJCorner{}, fmt.Errorf("face vertex %q has no position", s)
			}
			continue
		}
		idx, err := resolveOBJIndex(p, counts[i])
		if err != nil {
			return OBJCorner{}, fmt.Errorf("face vertex %q: %v", s, err)
		}
		*dst[i] = idx
	}
	return c, nil
}

func resolveOBJIndex(s string, count int) (int32, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	switch {
	case n > 0 && n <= count:
		return int32(n - 1), nil
	case n < 0 && -n <= count:
		return int32(count + n), nil
	default:
		return 0, fmt.Errorf("index %d out of range (have %d)", n, count)
	}
}

// Mesh converts the OBJ into a cloth surface. Vertices are the OBJ positions, so
// faces that share a position share a particle even when their UVs or normals
// differ; the first corner to reference a position supplies its UV and normal.
func (o *OBJ) Mesh() *mesh.Mesh {
	n := len(o.Positions)
	m := &mesh.Mesh{
		Positions: append([]math.Vec3(nil), o.Positions...),
		Colors:    append([]mesh.Color(nil), o.Colors...),
		Indices:   make([]int32, 0, len(o.Triangles)*3),
	}

	var uvs []math.Vec2
	var normals []math.Vec3
	var uvSet, normalSet []bool
	if len(o.UVs) > 0 {
		uvs, uvSet = make([]math.Vec2, n), make([]bool, n)
	}
	if len(o.Normals) > 0 {
		normals, normalSet = make([]math.Vec3, n), make([]bool, n)
	}

	for _, tri := range o.Triangles {
		for _, c := range tri {
			m.Indices = append(m.Indices, c.V)
			if uvs != nil && c.VT >= 0 && !uvSet[c.V] {
				uvs[c.V], uvSet[c.V] = o.UVs[c.VT], true
			}
			if normals != nil && c.VN >= 0 && !normalSet[c.V] {
				normals[c.V], normalSet[c.V] = o.Normals[c.VN], true
			}
		}
	}

	m.UVs = uvs
	m.Normals = normals
	return m
}

// WriteOBJ writes positions and triangles, with optional per-vertex normals and
// UVs (nil or matching positions in length).
func WriteOBJ(w io.Writer, positions, normals []math.Vec3, uvs []math.Vec2, indices []int32) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}
	hasN := len(normals) == len(positions) && len(normals) > 0
	hasT := len(uvs) == len(positions) && len(uvs) > 0

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# verletcloth: %d vertices, %d triangles\n", len(positions), len(indices)/3)
	for _, p := range positions {
		fmt.Fprintf(bw, "v %s %s %s\n", formatOBJFloat(p.X), formatOBJFloat(p.Y), formatOBJFloat(p.Z))
	}
	if hasT {
		for _, t := range uvs {
			fmt.Fprintf(bw, "vt %s %s\n", formatOBJFloat(t.X), formatOBJFloat(t.Y))
		}
	}
	if hasN {
		for _, n := range normals {
			fmt.Fprintf(bw, "vn %s %s %s\n", formatOBJFloat(n.X), formatOBJFloat(n.Y), formatOBJFloat(n.Z))
		}
	}

	corner := func(i int32) string {
		k := i + 1
		switch {
		case hasT && hasN:
			return fmt.Sprintf("%d/%d/%d", k, k, k)
		case hasT:
			return fmt.Sprintf("%d/%d", k, k)
		case hasN:
			return fmt.Sprintf("%d//%d", k, k)
		default:
			return strconv.Itoa(int(k))
		}
	}
	for i := 0; i+2 < len(indices); i += 3 {
		fmt.Fprintf(bw, "f %s %s %s\n", corner(indices[i]), corner(indices[i+1]), corner(indices[i+2]))
	}
	return bw.Flush()
}

func formatOBJFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
