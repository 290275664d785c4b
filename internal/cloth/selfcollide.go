package cloth

import (
	gomath "math"

	"github.com/Faultbox/verletcloth/pkg/math"
)

// cellKey addresses one cell of the self-collision grid.
type cellKey struct {
	X, Y, Z int32
}

// spatialHash buckets particle indices by quantized position so overlap tests
// only visit the 27 cells around each particle.
type spatialHash struct {
	cellSize float32
	cells    map[cellKey][]int32
	keys     []cellKey
}

func newSpatialHash(cellSize float32) *spatialHash {
	return &spatialHash{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int32),
	}
}

func (h *spatialHash) keyOf(p math.Vec3) cellKey {
	inv := 1 / h.cellSize
	return cellKey{
		X: int32(gomath.Floor(float64(p.X * inv))),
		Y: int32(gomath.Floor(float64(p.Y * inv))),
		Z: int32(gomath.Floor(float64(p.Z * inv))),
	}
}

// rebuild clears the grid and inserts every particle at its current position.
// Buckets are truncated rather than freed; ones left empty since the last
// rebuild are dropped.
func (h *spatialHash) rebuild(particles []Particle) {
	for k, bucket := range h.cells {
		if len(bucket) == 0 {
			delete(h.cells, k)
			continue
		}
		h.cells[k] = bucket[:0]
	}

	if cap(h.keys) < len(particles) {
		h.keys = make([]cellKey, len(particles))
	}
	h.keys = h.keys[:len(particles)]

	for i := range particles {
		k := h.keyOf(particles[i].Position)
		h.keys[i] = k
		h.cells[k] = append(h.cells[k], int32(i))
	}
}

// separationSlop is the fraction by which a resolved pair is pushed past contact.
const separationSlop = 0.02

// collideSelf pushes overlapping particle pairs apart, repeating whole passes
// until one finds no contact or p.SelfCollisionPasses run out. Pairs joined by a
// constraint shorter than the contact distance are skipped. Returns the number
// of contacts.
func collideSelf(s *State, h *spatialHash, p Params) int {
	minDistSq := p.SelfCollisionThresholdSq()
	target := 2 * p.ParticleRadius * (1 + separationSlop)

	total := 0
	for range p.SelfCollisionPasses {
		n := selfCollisionPass(s, h, target, minDistSq)
		total += n
		if n == 0 {
			break
		}
	}
	return total
}

// selfCollisionPass rehashes the particles and resolves every overlapping pair
// once, in index order.
func selfCollisionPass(s *State, h *spatialHash, target, minDistSq float32) int {
	particles := s.Particles
	h.rebuild(particles)

	contacts := 0
	for i := range particles {
		home := h.keys[i]
		for dx := int32(-1); dx <= 1; dx++ {
			for dy := int32(-1); dy <= 1; dy++ {
				for dz := int32(-1); dz <= 1; dz++ {
					bucket := h.cells[cellKey{home.X + dx, home.Y + dy, home.Z + dz}]
					for _, j := range bucket {
						if int(j) <= i {
							continue
						}
						if separate(&particles[i], &particles[j], s, target, minDistSq) {
							contacts++
						}
					}
				}
			}
		}
	}
	return contacts
}

// separate resolves one pair, leaving it target apart. Returns true if the pair
// overlapped and moved.
func separate(a, b *Particle, s *State, target, minDistSq float32) bool {
	diff := b.Position.Sub(a.Position)
	d2 := diff.LengthSq()
	if d2 >= minDistSq {
		return false
	}

	wa, wb := a.weight(), b.weight()
	wsum := wa + wb
	if wsum == 0 {
		return false
	}
	if rest, ok := s.Linked(a.ID, b.ID); ok && rest*rest < minDistSq {
		return false
	}

	d := math.Sqrt(d2)
	var n math.Vec3
	if d > degenerateLength {
		n = diff.Scale(1 / d)
	} else {
		// Coincident particles: split along a fixed axis.
		n = math.Vec3{Y: 1}
	}

	push := n.Scale(target - d)
	a.Position = a.Position.Sub(push.Scale(wa / wsum))
	b.Position = b.Position.Add(push.Scale(wb / wsum))
	return true
}
