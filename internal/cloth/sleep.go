package cloth

// maxDelta returns the largest per-substep displacement of any free particle.
func maxDelta(particles []Particle) float32 {
	var best float32
	for i := range particles {
		p := &particles[i]
		if p.Pinned() {
			continue
		}
		if d := p.Position.DistanceSq(p.PrevPosition); d > best {
			best = d
		}
	}
	if best == 0 {
		return 0
	}
	return sqrt32(best)
}

// sleepController decides when a settled cloth may stop simulating. Wake
// requests are latched and only cleared when a tick consumes them.
type sleepController struct {
	asleep      bool
	calm        int
	wakePending bool
}

// observe records one substep's displacement. Returns true if the cloth just
// fell asleep.
func (s *sleepController) observe(delta, threshold float32, collided bool, needed int) bool {
	if s.asleep {
		return false
	}
	if collided || delta >= threshold {
		s.calm = 0
		return false
	}
	s.calm++
	if s.calm >= needed {
		s.asleep = true
		return true
	}
	return false
}

// requestWake latches a wake-up for the next tick.
func (s *sleepController) requestWake() {
	s.wakePending = true
}

// consumeWake applies a pending wake-up. Returns true if the cloth was asleep.
func (s *sleepController) consumeWake() bool {
	if !s.wakePending {
		return false
	}
	s.wakePending = false
	wasAsleep := s.asleep
	s.asleep = false
	s.calm = 0
	return wasAsleep
}

func (s *sleepController) reset() {
	*s = sleepController{}
}
