// Package config handles simulation configuration loading and management.
package config

import (
	"github.com/Faultbox/verletcloth/internal/cloth"
	"github.com/Faultbox/verletcloth/pkg/math"
)

// Config holds all simulation settings.
type Config struct {
	Cloth      ClothConfig      `yaml:"cloth"`
	Simulation SimulationConfig `yaml:"simulation"`
	Collision  CollisionConfig  `yaml:"collision"`
	Mesh       MeshConfig       `yaml:"mesh"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ClothConfig holds solver settings. Ranges are documented in the cloth package.
type ClothConfig struct {
	Simulate             bool      `yaml:"simulate"`
	SubstepTime          float32   `yaml:"substep_time"`          // [0.005, 0.1] s
	ConstraintIterations int       `yaml:"constraint_iterations"` // [1, 16]
	UseBendConstraints   bool      `yaml:"use_bend_constraints"`
	WorldCollision       bool      `yaml:"world_collision"`
	SelfCollision        bool      `yaml:"self_collision"`
	SelfCollisionPasses  int       `yaml:"self_collision_passes"`
	ParticleMass         float32   `yaml:"particle_mass"`         // [0.01, 1000]
	ParticleRadius       float32   `yaml:"particle_radius"`       // [0.01, 1000]
	StiffnessCoefficient float32   `yaml:"stiffness_coefficient"` // [0.05, 0.99]
	CollisionFriction    float32   `yaml:"collision_friction"`    // [0, 1]
	VelocityDamping      float32   `yaml:"velocity_damping"`      // [0, 1]
	ClothForce           math.Vec3 `yaml:"cloth_force"`
	Gravity              math.Vec3 `yaml:"gravity"`
	GravityScale         float32   `yaml:"gravity_scale"`
	UseSleeping          bool      `yaml:"use_sleeping"`
	SleepDeltaThreshold  float32   `yaml:"sleep_delta_threshold"`
	SleepSubsteps        int       `yaml:"sleep_substeps"`
	MaxSubstepsPerFrame  int       `yaml:"max_substeps_per_frame"`
	Workers              int       `yaml:"workers"`

	// Debug toggles for hosts that draw the cloth. The solver ignores them.
	ShowSleeping    bool `yaml:"show_sleeping"`
	ShowConstraints bool `yaml:"show_constraints"`
}

// SimulationConfig holds the offline tick loop settings.
type SimulationConfig struct {
	Frames    int     `yaml:"frames"`
	FrameTime float32 `yaml:"frame_time"` // Seconds per frame handed to Advance
}

// MeshConfig describes the cloth surface: an OBJ file, or a generated grid when
// Path is empty.
type MeshConfig struct {
	Path       string          `yaml:"path"`
	Grid       GridConfig      `yaml:"grid"`
	Pin        string          `yaml:"pin"` // none, top, corners, top_corners
	PinIndices []int32         `yaml:"pin_indices"`
	Transform  TransformConfig `yaml:"transform"`
}

// GridConfig holds generated grid dimensions.
type GridConfig struct {
	Cols    int     `yaml:"cols"`
	Rows    int     `yaml:"rows"`
	Spacing float32 `yaml:"spacing"`
	Plane   string  `yaml:"plane"` // xy or xz
}

// TransformConfig places the mesh in world space before the cloth is built.
type TransformConfig struct {
	Translate math.Vec3 `yaml:"translate"`
	Rotate    math.Vec3 `yaml:"rotate"` // Euler degrees: pitch, yaw, roll
	Scale     math.Vec3 `yaml:"scale"`
}

// OutputConfig holds result file paths.
type OutputConfig struct {
	VCF        string `yaml:"vcf"`         // Frame cache, empty to skip
	OBJ        string `yaml:"obj"`         // Final pose, empty to skip
	StatsEvery int    `yaml:"stats_every"` // Log step stats every N frames, 0 to disable
	Plot       bool   `yaml:"plot"`        // Print a displacement chart after the run
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	p := cloth.DefaultParams()
	return &Config{
		Cloth: ClothConfig{
			Simulate:             true,
			SubstepTime:          p.SubstepTime,
			ConstraintIterations: p.ConstraintIterations,
			UseBendConstraints:   p.UseBendConstraints,
			WorldCollision:       p.WorldCollision,
			SelfCollision:        p.SelfCollision,
			SelfCollisionPasses:  p.SelfCollisionPasses,
			ParticleMass:         p.ParticleMass,
			ParticleRadius:       p.ParticleRadius,
			StiffnessCoefficient: p.Stiffness,
			CollisionFriction:    p.CollisionFriction,
			VelocityDamping:      p.VelocityDamping,
			Gravity:              p.Gravity,
			GravityScale:         p.GravityScale,
			UseSleeping:          p.UseSleeping,
			SleepDeltaThreshold:  p.SleepDeltaThreshold,
			SleepSubsteps:        p.SleepSubsteps,
			MaxSubstepsPerFrame:  p.MaxSubstepsPerFrame,
			Workers:              p.Workers,
		},
		Simulation: SimulationConfig{
			Frames:    300,
			FrameTime: 1.0 / 60,
		},
		Collision: CollisionConfig{
			Colliders: []ColliderConfig{
				{Type: ColliderGround, Offset: -2},
			},
		},
		Mesh: MeshConfig{
			Grid: GridConfig{
				Cols:    20,
				Rows:    20,
				Spacing: 0.1,
				Plane:   "xy",
			},
			Pin: PinTop,
			Transform: TransformConfig{
				Scale: math.Vec3{X: 1, Y: 1, Z: 1},
			},
		},
		Output: OutputConfig{
			StatsEvery: 60,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Params converts the solver settings into cloth parameters. The result is not
// validated; see Config.Validate.
func (c ClothConfig) Params() cloth.Params {
	return cloth.Params{
		SubstepTime:          c.SubstepTime,
		ConstraintIterations: c.ConstraintIterations,
		UseBendConstraints:   c.UseBendConstraints,
		WorldCollision:       c.WorldCollision,
		SelfCollision:        c.SelfCollision,
		SelfCollisionPasses:  c.SelfCollisionPasses,
		ParticleMass:         c.ParticleMass,
		ParticleRadius:       c.ParticleRadius,
		Stiffness:            c.StiffnessCoefficient,
		CollisionFriction:    c.CollisionFriction,
		VelocityDamping:      c.VelocityDamping,
		Force:                c.ClothForce,
		Gravity:              c.Gravity,
		GravityScale:         c.GravityScale,
		UseSleeping:          c.UseSleeping,
		SleepDeltaThreshold:  c.SleepDeltaThreshold,
		SleepSubsteps:        c.SleepSubsteps,
		MaxSubstepsPerFrame:  c.MaxSubstepsPerFrame,
		Workers:              c.Workers,
	}
}

// Matrix returns the mesh world transform.
func (t TransformConfig) Matrix() math.Mat4 {
	s := t.Scale
	if s == (math.Vec3{}) {
		s = math.Vec3{X: 1, Y: 1, Z: 1}
	}
	r := math.QuatFromEuler(t.Rotate.X, t.Rotate.Y, t.Rotate.Z)
	return math.TRS(t.Translate, r, s)
}
