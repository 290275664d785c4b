package cloth

// solveDistance moves a and b toward rest distance. The correction is scaled by
// stiffness and split by inverse mass, so an anchored partner stays put and the
// free one takes the whole correction.
func solveDistance(a, b *Particle, rest, stiffness float32) {
	wa, wb := a.weight(), b.weight()
	wsum := wa + wb
	if wsum == 0 {
		return
	}

	diff := b.Position.Sub(a.Position)
	length := diff.Length()
	if length < degenerateLength {
		return
	}

	delta := (length - rest) / length
	corr := diff.Scale(delta * stiffness)
	a.Position = a.Position.Add(corr.Scale(wa / wsum))
	b.Position = b.Position.Sub(corr.Scale(wb / wsum))
}

// relax runs the configured number of Gauss-Seidel passes over every active
// constraint in array order. Corrections are applied in place, so the result
// depends on constraint order.
func relax(s *State, p Params) {
	active := s.activeConstraints(p.UseBendConstraints)
	for it := 0; it < p.ConstraintIterations; it++ {
		for i := range active {
			c := &active[i]
			if c.Degenerate() {
				continue
			}
			solveDistance(&s.Particles[c.P0], &s.Particles[c.P1], c.RestLength, p.Stiffness)
		}
	}
}

// activeConstraints returns the structural constraints, plus bend constraints
// when bending is enabled.
func (s *State) activeConstraints(bend bool) []Constraint {
	if bend {
		return s.Constraints
	}
	return s.Constraints[:s.StructuralCount]
}
