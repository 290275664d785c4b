package cloth

import (
	"github.com/Faultbox/verletcloth/pkg/math"
)

// collideWorld projects every free particle out of the colliders and applies
// friction to the tangential part of its implied velocity. Returns true if any
// particle touched a collider.
func collideWorld(particles []Particle, colliders []Collider, radius, friction float32) bool {
	collided := false
	for i := range particles {
		p := &particles[i]
		if p.Pinned() {
			continue
		}
		for _, col := range colliders {
			pos, n, hit := col.Resolve(p.Position, radius)
			if !hit {
				continue
			}
			collided = true
			p.Position = pos
			applyFriction(p, n, friction)
		}
	}
	return collided
}

// applyFriction rewrites PrevPosition so the implied velocity loses its
// inward normal part and a friction share of its tangential part.
func applyFriction(p *Particle, n math.Vec3, friction float32) {
	v := p.Position.Sub(p.PrevPosition)
	vn := v.Dot(n)
	normal := n.Scale(vn)
	tangent := v.Sub(normal)
	if vn < 0 {
		normal = math.Vec3{}
	}
	v = tangent.Scale(1 - friction).Add(normal)
	p.PrevPosition = p.Position.Sub(v)
}
