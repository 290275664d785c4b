package cloth

import (
	"math/bits"
	"sync"
)

// colorConstraints partitions the active constraints into groups in which no
// two constraints share a particle. Constraints that cannot get one of the 64
// colors land in a final group that is always solved on one goroutine.
func (s *State) colorConstraints(bend bool) [][]int32 {
	if s.colors != nil && s.colorsBend == bend {
		return s.colors
	}

	active := s.activeConstraints(bend)
	used := make([]uint64, len(s.Particles))
	groups := make([][]int32, 0, 16)
	var overflow []int32

	for i := range active {
		c := &active[i]
		if c.Degenerate() {
			continue
		}
		free := ^(used[c.P0] | used[c.P1])
		if free == 0 {
			overflow = append(overflow, int32(i))
			continue
		}
		color := bits.TrailingZeros64(free)
		used[c.P0] |= 1 << color
		used[c.P1] |= 1 << color
		for len(groups) <= color {
			groups = append(groups, nil)
		}
		groups[color] = append(groups[color], int32(i))
	}

	s.colors = groups
	if len(overflow) > 0 {
		s.colors = append(s.colors, overflow)
	}
	s.colorsBend = bend
	s.overflowColored = len(overflow) > 0
	return s.colors
}

// relaxParallel is relax with each color's constraints split across workers.
// Colors run one after another, so every particle write inside a color is
// exclusive and the result is identical for any worker count.
func relaxParallel(s *State, p Params, workers int) {
	groups := s.colorConstraints(p.UseBendConstraints)
	active := s.activeConstraints(p.UseBendConstraints)

	solve := func(idx []int32) {
		for _, ci := range idx {
			c := &active[ci]
			solveDistance(&s.Particles[c.P0], &s.Particles[c.P1], c.RestLength, p.Stiffness)
		}
	}

	for it := 0; it < p.ConstraintIterations; it++ {
		for g, group := range groups {
			serial := workers <= 1 || (s.overflowColored && g == len(groups)-1)
			if serial || len(group) < workers*minChunk {
				solve(group)
				continue
			}

			chunk := (len(group) + workers - 1) / workers
			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				start := w * chunk
				end := min(start+chunk, len(group))
				if start >= end {
					break
				}
				wg.Add(1)
				go func(part []int32) {
					defer wg.Done()
					solve(part)
				}(group[start:end])
			}
			wg.Wait()
		}
	}
}

// minChunk is the smallest per-worker share worth a goroutine.
const minChunk = 32
