package cloth

import (
	"errors"
	"fmt"

	"github.com/Faultbox/verletcloth/internal/mesh"
	"github.com/Faultbox/verletcloth/pkg/math"
)

// BuildOptions controls how mesh topology becomes a particle network.
type BuildOptions struct {
	UseBendConstraints bool
	ParticleMass       float32 // 0 means 1

	// Pinned lists vertex indices to anchor.
	Pinned []int32
	// PinFunc, if set, anchors every vertex for which it returns true.
	PinFunc func(id int32, pos math.Vec3) bool
}

// State is the complete particle network built from one mesh. It is replaced
// wholesale on rebuild and reset, never edited structurally.
type State struct {
	Particles   []Particle
	Constraints []Constraint

	// Structural constraints occupy [0, StructuralCount); bend constraints follow.
	StructuralCount int

	rest      []math.Vec3
	pinned    []bool
	triangles []mesh.Triangle
	invMass   float32

	// links maps a PairKey to the rest length of the constraint joining the pair.
	links map[uint64]float32

	colors          [][]int32
	colorsBend      bool
	overflowColored bool
}

// BendCount returns the number of bend constraints.
func (s *State) BendCount() int {
	return len(s.Constraints) - s.StructuralCount
}

// Triangles returns the source triangles.
func (s *State) Triangles() []mesh.Triangle {
	return s.triangles
}

// Linked reports whether a constraint joins particles a and b, and its rest length.
func (s *State) Linked(a, b int32) (float32, bool) {
	l, ok := s.links[PairKey(a, b)]
	return l, ok
}

// BuildState converts mesh topology into particles and constraints. Particles map
// 1:1 to vertices in input order. Each undirected edge yields one structural
// constraint no matter how many triangles share it. With bending enabled, every
// edge shared by two triangles also yields one bend constraint between the two
// vertices opposite it, unless those vertices are already linked.
func BuildState(m *mesh.Mesh, opts BuildOptions) (*State, error) {
	if err := m.Validate(); err != nil {
		if errors.Is(err, mesh.ErrEmptyMesh) {
			return nil, ErrEmptyTopology
		}
		return nil, fmt.Errorf("invalid topology: %w", err)
	}

	mass := opts.ParticleMass
	if mass <= 0 {
		mass = 1
	}

	n := m.VertexCount()
	s := &State{
		Particles: make([]Particle, n),
		rest:      append([]math.Vec3(nil), m.Positions...),
		pinned:    make([]bool, n),
		triangles: m.Triangles(),
		invMass:   1 / mass,
		links:     make(map[uint64]float32, len(m.Indices)),
	}

	for _, id := range opts.Pinned {
		if id < 0 || int(id) >= n {
			return nil, fmt.Errorf("%w: pinned vertex %d (vertices %d)", ErrIndexOutOfRange, id, n)
		}
		s.pinned[id] = true
	}
	if opts.PinFunc != nil {
		for i, p := range m.Positions {
			if opts.PinFunc(int32(i), p) {
				s.pinned[i] = true
			}
		}
	}

	for i := range s.Particles {
		s.Particles[i] = Particle{
			Position:        m.Positions[i],
			PrevPosition:    m.Positions[i],
			Color:           m.ColorAt(i),
			ID:              int32(i),
			ConstraintIndex: -1,
			InvMass:         s.invMass,
		}
		if s.pinned[i] {
			s.Particles[i].State = StatePinned
		}
	}

	// Vertex -> incident triangles. Only needed while wiring bend pairs.
	vertTris := make([][]int32, n)
	for ti, tri := range s.triangles {
		for _, v := range tri {
			vertTris[v] = append(vertTris[v], int32(ti))
		}
	}

	var edges [][2]int32
	for _, tri := range s.triangles {
		for e := 0; e < 3; e++ {
			a, b := tri[e], tri[(e+1)%3]
			if a == b {
				continue
			}
			if s.addConstraint(a, b, KindStructural) {
				edges = append(edges, [2]int32{a, b})
			}
		}
	}
	s.StructuralCount = len(s.Constraints)

	if opts.UseBendConstraints {
		for _, e := range edges {
			shared := sharedTriangles(vertTris[e[0]], vertTris[e[1]])
			if len(shared) < 2 {
				continue
			}
			// A non-manifold edge may have more than two wings; brace each pair.
			for i := 0; i < len(shared); i++ {
				for j := i + 1; j < len(shared); j++ {
					c := opposite(s.triangles[shared[i]], e)
					d := opposite(s.triangles[shared[j]], e)
					if c < 0 || d < 0 || c == d {
						continue
					}
					s.addConstraint(c, d, KindBend)
				}
			}
		}
	}

	return s, nil
}

// addConstraint appends a constraint for (a, b) unless the pair is already
// linked. Returns true if one was added.
func (s *State) addConstraint(a, b int32, kind ConstraintKind) bool {
	key := PairKey(a, b)
	if _, ok := s.links[key]; ok {
		return false
	}

	p0, p1 := s.rest[a], s.rest[b]
	c := Constraint{
		P0:           a,
		P1:           b,
		OriginalP0:   p0,
		OriginalP1:   p1,
		RestLength:   p1.Sub(p0).Length(),
		ConstraintID: key,
		Kind:         kind,
	}

	idx := int32(len(s.Constraints))
	s.Constraints = append(s.Constraints, c)
	s.links[key] = c.RestLength

	for _, pi := range [2]int32{a, b} {
		p := &s.Particles[pi]
		if p.ConstraintIndex < 0 {
			p.ConstraintIndex = idx
		}
		p.ConstraintCount++
	}
	return true
}

// sharedTriangles intersects two incident-triangle lists.
func sharedTriangles(a, b []int32) []int32 {
	var out []int32
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

// opposite returns the vertex of tri not on edge e, or -1.
func opposite(tri mesh.Triangle, e [2]int32) int32 {
	for _, v := range tri {
		if v != e[0] && v != e[1] {
			return v
		}
	}
	return -1
}

// freshParticles rebuilds the particle array in the rest pose, keeping the
// adjacency bookkeeping of the current one.
func (s *State) freshParticles() []Particle {
	out := make([]Particle, len(s.Particles))
	for i := range out {
		src := &s.Particles[i]
		out[i] = Particle{
			Position:        s.rest[i],
			PrevPosition:    s.rest[i],
			Color:           src.Color,
			ID:              src.ID,
			ConstraintIndex: src.ConstraintIndex,
			ConstraintCount: src.ConstraintCount,
			InvMass:         s.invMass,
		}
		if s.pinned[i] {
			out[i].State = StatePinned
		}
	}
	return out
}
