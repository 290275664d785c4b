package cloth

import (
	"testing"

	"github.com/Faultbox/verletcloth/internal/mesh"
	"github.com/Faultbox/verletcloth/pkg/math"
)

func pairState(a, b math.Vec3, rest float32) *State {
	s := &State{
		Particles: []Particle{
			{Position: a, PrevPosition: a, ID: 0, InvMass: 1},
			{Position: b, PrevPosition: b, ID: 1, InvMass: 1},
		},
		Constraints: []Constraint{
			{P0: 0, P1: 1, RestLength: rest, ConstraintID: PairKey(0, 1)},
		},
		StructuralCount: 1,
		links:           map[uint64]float32{PairKey(0, 1): rest},
	}
	return s
}

func TestSolveDistance_Convergence(t *testing.T) {
	for _, k := range []float32{0.05, 0.3, 0.5, 0.9, 0.99} {
		prev := float32(1e9)
		for n := 1; n <= 12; n++ {
			s := pairState(math.Vec3{}, math.Vec3{X: 2.5, Y: 0.5}, 1)
			p := DefaultParams()
			p.Stiffness = k
			p.ConstraintIterations = n
			relax(s, p)

			length := s.Particles[1].Position.Distance(s.Particles[0].Position)
			residual := math.Abs(length - 1)
			if residual > prev+1e-6 {
				t.Errorf("k=%v: residual grew from %v to %v at %d iterations", k, prev, residual, n)
			}
			prev = residual
		}
	}
}

func TestSolveDistance_SplitsEvenly(t *testing.T) {
	s := pairState(math.Vec3{}, math.Vec3{X: 2}, 1)
	solveDistance(&s.Particles[0], &s.Particles[1], 1, 0.5)

	// Half of the 1-unit stretch is removed, a quarter from each end.
	if got := s.Particles[0].Position; math.Abs(got.X-0.25) > 1e-6 {
		t.Errorf("particle 0 at %v, want x=0.25", got)
	}
	if got := s.Particles[1].Position; math.Abs(got.X-1.75) > 1e-6 {
		t.Errorf("particle 1 at %v, want x=1.75", got)
	}
}

func TestSolveDistance_PinnedAbsorbsNothing(t *testing.T) {
	s := pairState(math.Vec3{}, math.Vec3{X: 2}, 1)
	s.Particles[0].State = StatePinned
	solveDistance(&s.Particles[0], &s.Particles[1], 1, 0.5)

	if s.Particles[0].Position != (math.Vec3{}) {
		t.Errorf("pinned particle moved to %v", s.Particles[0].Position)
	}
	if got := s.Particles[1].Position; math.Abs(got.X-1.5) > 1e-6 {
		t.Errorf("free particle at %v, want x=1.5", got)
	}

	// Both pinned: nothing moves.
	s.Particles[1].State = StatePinned
	before := s.Particles[1].Position
	solveDistance(&s.Particles[0], &s.Particles[1], 1, 0.5)
	if s.Particles[1].Position != before {
		t.Error("pinned pair moved")
	}
}

func TestSolveDistance_Degenerate(t *testing.T) {
	s := pairState(math.Vec3{X: 1}, math.Vec3{X: 1}, 1)
	solveDistance(&s.Particles[0], &s.Particles[1], 1, 0.9)
	for i, p := range s.Particles {
		if p.Position != (math.Vec3{X: 1}) {
			t.Errorf("particle %d moved to %v on a zero-length pair", i, p.Position)
		}
	}
}

func TestRelax_BendToggle(t *testing.T) {
	m := mesh.Grid(2, 2, 1, mesh.PlaneXY)
	s, err := BuildState(m, BuildOptions{UseBendConstraints: true})
	if err != nil {
		t.Fatalf("BuildState failed: %v", err)
	}
	if got := len(s.activeConstraints(false)); got != s.StructuralCount {
		t.Errorf("bend disabled: %d active, want %d", got, s.StructuralCount)
	}
	if got := len(s.activeConstraints(true)); got != len(s.Constraints) {
		t.Errorf("bend enabled: %d active, want %d", got, len(s.Constraints))
	}
}

// perturbedGrid builds a grid and scrambles positions deterministically.
func perturbedGrid(t *testing.T, n int) *State {
	t.Helper()
	s, err := BuildState(mesh.Grid(n, n, 0.1, mesh.PlaneXY), BuildOptions{UseBendConstraints: true})
	if err != nil {
		t.Fatalf("BuildState failed: %v", err)
	}
	for i := range s.Particles {
		f := float32(i%7) * 0.01
		s.Particles[i].Position = s.Particles[i].Position.Add(math.Vec3{X: f, Y: -2 * f, Z: f * f})
	}
	return s
}

func TestColorConstraints_Exclusive(t *testing.T) {
	s := perturbedGrid(t, 12)
	groups := s.colorConstraints(true)

	total := 0
	for g, group := range groups {
		touched := make(map[int32]bool)
		for _, ci := range group {
			c := s.Constraints[ci]
			if touched[c.P0] || touched[c.P1] {
				t.Fatalf("color %d: constraint %d shares a particle", g, ci)
			}
			touched[c.P0] = true
			touched[c.P1] = true
		}
		total += len(group)
	}
	if total != len(s.Constraints) {
		t.Errorf("colored %d constraints, want %d", total, len(s.Constraints))
	}
}

func TestRelaxParallel_MatchesSerial(t *testing.T) {
	serial := perturbedGrid(t, 40)
	parallel := perturbedGrid(t, 40)

	p := DefaultParams()
	p.ConstraintIterations = 6

	relaxParallel(serial, p, 1)
	relaxParallel(parallel, p, 4)

	for i := range serial.Particles {
		if serial.Particles[i].Position != parallel.Particles[i].Position {
			t.Fatalf("particle %d: serial %v, parallel %v", i,
				serial.Particles[i].Position, parallel.Particles[i].Position)
		}
	}
}

func TestRelaxParallel_ReducesStretch(t *testing.T) {
	s := perturbedGrid(t, 20)
	before := maxStretch(s)

	p := DefaultParams()
	p.ConstraintIterations = 8
	relaxParallel(s, p, 4)

	if after := maxStretch(s); after >= before {
		t.Errorf("stretch did not improve: %v -> %v", before, after)
	}
}

func maxStretch(s *State) float32 {
	var worst float32
	for _, c := range s.Constraints {
		l := s.Particles[c.P0].Position.Distance(s.Particles[c.P1].Position)
		worst = max(worst, math.Abs(l-c.RestLength))
	}
	return worst
}
