package cloth

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/verletcloth/pkg/math"
)

// Parameter ranges. Values outside these are rejected by Validate and pulled
// back by Clamped.
const (
	MinSubstepTime = 0.005
	MaxSubstepTime = 0.1

	MinConstraintIterations = 1
	MaxConstraintIterations = 16

	MinParticleMass = 0.01
	MaxParticleMass = 1000

	MinParticleRadius = 0.01
	MaxParticleRadius = 1000

	MinStiffness = 0.05
	MaxStiffness = 0.99

	MaxSubstepsCap = 1024
	MaxWorkers     = 64
	MaxSelfPasses  = 64
)

// Params is the validated solver configuration. The solver reads it on every
// substep and never stores a reference to it inside particles or constraints.
type Params struct {
	SubstepTime          float32 // Fixed integration step in seconds
	ConstraintIterations int     // Relaxation passes per substep
	UseBendConstraints   bool
	WorldCollision       bool
	SelfCollision        bool
	SelfCollisionPasses  int // Upper bound; passes stop once one finds no contact
	ParticleMass         float32
	ParticleRadius       float32
	Stiffness            float32 // Per-iteration correction factor in (0,1)
	CollisionFriction    float32 // 0 = frictionless, 1 = no sliding
	VelocityDamping      float32 // Multiplies the implied Verlet velocity each substep
	Force                math.Vec3
	Gravity              math.Vec3
	GravityScale         float32
	UseSleeping          bool
	SleepDeltaThreshold  float32
	SleepSubsteps        int // Consecutive calm substeps before the cloth sleeps
	MaxSubstepsPerFrame  int
	Workers              int // >1 enables the colored parallel constraint pass
}

// DefaultParams returns the stock cloth settings.
func DefaultParams() Params {
	return Params{
		SubstepTime:          0.02,
		ConstraintIterations: 4,
		UseBendConstraints:   true,
		WorldCollision:       true,
		SelfCollision:        false,
		SelfCollisionPasses:  16,
		ParticleMass:         1,
		ParticleRadius:       0.05,
		Stiffness:            0.9,
		CollisionFriction:    0.3,
		VelocityDamping:      0.99,
		Gravity:              math.Vec3{Y: -9.81},
		GravityScale:         1,
		UseSleeping:          false,
		SleepDeltaThreshold:  0.0005,
		SleepSubsteps:        10,
		MaxSubstepsPerFrame:  16,
		Workers:              1,
	}
}

// SelfCollisionThresholdSq returns the squared particle separation below which
// two particles overlap: (2 * radius)^2.
func (p Params) SelfCollisionThresholdSq() float32 {
	d := 2 * p.ParticleRadius
	return d * d
}

// acceleration returns the external acceleration applied to a particle of unit
// inverse mass.
func (p Params) acceleration() math.Vec3 {
	return p.Gravity.Scale(p.GravityScale).Add(p.Force)
}

func checkRange[T int | float32](name string, v, lo, hi T) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s = %v, want [%v, %v]", ErrParamRange, name, v, lo, hi)
	}
	return nil
}

// Validate reports every parameter outside its documented range.
func (p Params) Validate() error {
	err := multierr.Combine(
		checkRange("substep_time", p.SubstepTime, MinSubstepTime, MaxSubstepTime),
		checkRange("constraint_iterations", p.ConstraintIterations, MinConstraintIterations, MaxConstraintIterations),
		checkRange("particle_mass", p.ParticleMass, MinParticleMass, MaxParticleMass),
		checkRange("particle_radius", p.ParticleRadius, MinParticleRadius, MaxParticleRadius),
		checkRange("stiffness", p.Stiffness, MinStiffness, MaxStiffness),
		checkRange("collision_friction", p.CollisionFriction, 0, 1),
		checkRange("velocity_damping", p.VelocityDamping, 0, 1),
		checkRange("max_substeps_per_frame", p.MaxSubstepsPerFrame, 1, MaxSubstepsCap),
		checkRange("workers", p.Workers, 0, MaxWorkers),
		checkRange("self_collision_passes", p.SelfCollisionPasses, 1, MaxSelfPasses),
		checkRange("sleep_substeps", p.SleepSubsteps, 1, MaxSubstepsCap),
	)
	if p.SleepDeltaThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: sleep_delta_threshold = %v, want >= 0", ErrParamRange, p.SleepDeltaThreshold))
	}
	if !p.Force.IsFinite() || !p.Gravity.IsFinite() {
		err = multierr.Append(err, fmt.Errorf("%w: force and gravity must be finite", ErrParamRange))
	}
	return err
}

// Clamped returns a copy with every ranged value pulled into range.
func (p Params) Clamped() Params {
	p.SubstepTime = math.Clamp(p.SubstepTime, MinSubstepTime, MaxSubstepTime)
	p.ConstraintIterations = min(max(p.ConstraintIterations, MinConstraintIterations), MaxConstraintIterations)
	p.ParticleMass = math.Clamp(p.ParticleMass, MinParticleMass, MaxParticleMass)
	p.ParticleRadius = math.Clamp(p.ParticleRadius, MinParticleRadius, MaxParticleRadius)
	p.Stiffness = math.Clamp(p.Stiffness, MinStiffness, MaxStiffness)
	p.CollisionFriction = math.Clamp(p.CollisionFriction, 0, 1)
	p.VelocityDamping = math.Clamp(p.VelocityDamping, 0, 1)
	p.MaxSubstepsPerFrame = min(max(p.MaxSubstepsPerFrame, 1), MaxSubstepsCap)
	p.Workers = min(max(p.Workers, 0), MaxWorkers)
	p.SelfCollisionPasses = min(max(p.SelfCollisionPasses, 1), MaxSelfPasses)
	p.SleepSubsteps = min(max(p.SleepSubsteps, 1), MaxSubstepsCap)
	p.SleepDeltaThreshold = max(p.SleepDeltaThreshold, 0)
	return p
}
