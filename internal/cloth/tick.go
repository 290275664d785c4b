package cloth

import gomath "math"

// timeEpsilon absorbs float32 frame-time rounding so that frames summing to a
// whole number of substeps produce exactly that many.
const timeEpsilon = 1e-7

// accumulator turns variable frame times into whole fixed substeps.
type accumulator struct {
	time float64
}

// take adds dt and returns how many substeps of length step are due, running at
// most maxSteps. Whole substeps beyond the cap are discarded and returned as
// dropped seconds; the fractional remainder is kept for the next frame.
func (a *accumulator) take(dt float32, step float32, maxSteps int) (steps int, dropped float64) {
	if dt > 0 {
		a.time += float64(dt)
	}
	h := float64(step)
	if h <= 0 {
		return 0, 0
	}

	due := int(gomath.Floor((a.time + timeEpsilon) / h))
	if due <= maxSteps {
		a.time -= float64(due) * h
		if a.time < 0 {
			a.time = 0
		}
		return due, 0
	}

	a.time -= float64(maxSteps) * h
	rem := gomath.Mod(a.time+timeEpsilon, h) - timeEpsilon
	if rem < 0 {
		rem = 0
	}
	dropped = a.time - rem
	a.time = rem
	return maxSteps, dropped
}

func (a *accumulator) reset() {
	a.time = 0
}

func sqrt32(f float32) float32 {
	return float32(gomath.Sqrt(float64(f)))
}
