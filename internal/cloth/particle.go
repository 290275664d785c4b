package cloth

import (
	"github.com/Faultbox/verletcloth/internal/mesh"
	"github.com/Faultbox/verletcloth/pkg/math"
)

// ParticleState distinguishes simulated particles from anchors.
type ParticleState int8

// Particle states.
const (
	StateFree   ParticleState = iota
	StatePinned               // Never integrated, infinite mass in the solver
)

// String returns the state name.
func (s ParticleState) String() string {
	switch s {
	case StateFree:
		return "free"
	case StatePinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// Particle is one simulated mesh vertex.
type Particle struct {
	Position     math.Vec3
	PrevPosition math.Vec3
	Accel        math.Vec3 // Reset every substep
	Color        mesh.Color

	ID              int32 // Index of the source vertex
	ConstraintIndex int32 // First constraint referencing this particle, -1 if none
	State           ParticleState
	ConstraintCount int32
	InvMass         float32
}

// Pinned reports whether the particle is an anchor.
func (p *Particle) Pinned() bool {
	return p.State == StatePinned
}

// weight is the particle's share of a correction; anchors take none.
func (p *Particle) weight() float32 {
	if p.State == StatePinned {
		return 0
	}
	return p.InvMass
}

// ConstraintKind separates stretch edges from fold resistance.
type ConstraintKind uint8

// Constraint kinds.
const (
	KindStructural ConstraintKind = iota // A mesh edge
	KindBend                             // Far vertices of two triangles sharing an edge
)

// String returns the kind name.
func (k ConstraintKind) String() string {
	if k == KindBend {
		return "bend"
	}
	return "structural"
}

// degenerateLength is the distance under which a pair has no usable direction.
const degenerateLength = 1e-6

// Constraint keeps two particles at their rest distance. Particles are referenced
// by index so the particle slice can be swapped without invalidating constraints.
type Constraint struct {
	P0, P1       int32
	OriginalP0   math.Vec3
	OriginalP1   math.Vec3
	RestLength   float32
	ConstraintID uint64 // PairKey of the two particle IDs
	Kind         ConstraintKind
}

// Degenerate reports whether the rest pose gives the pair no direction.
func (c *Constraint) Degenerate() bool {
	return c.RestLength < degenerateLength
}

// PairKey returns a key that is identical for (a, b) and (b, a) and distinct for
// every other pair of non-negative IDs.
func PairKey(a, b int32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(uint32(a))<<32 | uint64(uint32(b))
}

// SplitPairKey is the inverse of PairKey.
func SplitPairKey(k uint64) (a, b int32) {
	return int32(uint32(k >> 32)), int32(uint32(k))
}

// LegacyConstraintID is the product label older tooling used for constraints.
// It collides for distinct pairs (2*6 == 3*4) and must not be used as a key.
func LegacyConstraintID(a, b int32) int32 {
	return a * b
}
