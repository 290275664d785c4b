package cloth

import (
	"github.com/Faultbox/verletcloth/pkg/math"
)

// accumulateForces sets each free particle's acceleration for the coming substep.
func accumulateForces(particles []Particle, accel math.Vec3) {
	for i := range particles {
		p := &particles[i]
		if p.Pinned() {
			p.Accel = math.Vec3{}
			continue
		}
		// Forces are expressed per unit mass; heavier particles respond less.
		p.Accel = accel.Scale(p.InvMass)
	}
}

// integrate advances free particles one Verlet step of length h:
//
//	next = cur + (cur - prev) * damping + accel * h^2
func integrate(particles []Particle, h, damping float32) {
	h2 := h * h
	for i := range particles {
		p := &particles[i]
		if p.Pinned() {
			continue
		}
		cur := p.Position
		next := cur.Add(cur.Sub(p.PrevPosition).Scale(damping)).Add(p.Accel.Scale(h2))
		p.PrevPosition = cur
		p.Position = next
	}
}
