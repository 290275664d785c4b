// Package cloth simulates a mesh as a Verlet mass-spring network relaxed with
// iterative distance constraints.
//
// A Cloth is driven by its host: Build captures mesh topology once, Advance is
// called every frame with the elapsed time, and Positions/Normals read the
// result back. A Cloth is not safe for concurrent use beyond what its own lock
// provides: Build, Reset and Advance exclude each other.
package cloth

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/verletcloth/internal/mesh"
	"github.com/Faultbox/verletcloth/pkg/math"
)

// Cloth errors.
var (
	ErrEmptyTopology   = errors.New("cloth: mesh has no vertices or triangles")
	ErrNotBuilt        = errors.New("cloth: state has not been built")
	ErrIndexOutOfRange = errors.New("cloth: particle index out of range")
	ErrNotPinned       = errors.New("cloth: particle is not pinned")
	ErrParamRange      = errors.New("cloth: parameter out of range")
)

// Phase is the orchestrator state.
type Phase int

// Phases.
const (
	PhaseUninitialized Phase = iota // No particle state
	PhaseReady                      // Built or reset, not advanced yet
	PhaseSimulating                 // Advancing every frame
	PhaseAsleep                     // Settled; substeps are skipped
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseReady:
		return "ready"
	case PhaseSimulating:
		return "simulating"
	case PhaseAsleep:
		return "asleep"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// StepStats describes one Advance call.
type StepStats struct {
	Substeps      int     // Substeps run this frame
	Skipped       int     // Substeps consumed while asleep
	DroppedTime   float64 // Seconds discarded by the substep cap
	WorldCollided bool
	SelfContacts  int
	MaxDelta      float32 // Largest particle displacement in the last substep
	Asleep        bool
}

// Cloth is one simulated surface.
type Cloth struct {
	mu sync.Mutex

	params    Params
	log       *zap.Logger
	colliders []Collider

	state     *State
	source    *mesh.Mesh
	buildOpts BuildOptions

	simulate bool
	phase    Phase
	acc      accumulator
	sleep    sleepController
	grid     *spatialHash
}

// Option configures a Cloth.
type Option func(*Cloth)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cloth) {
		if l != nil {
			c.log = l
		}
	}
}

// WithColliders sets the initial world colliders.
func WithColliders(cols ...Collider) Option {
	return func(c *Cloth) {
		c.colliders = append([]Collider(nil), cols...)
	}
}

// New creates an unbuilt cloth. Params must be in range.
func New(p Params, opts ...Option) (*Cloth, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := &Cloth{
		params:   p,
		log:      zap.NewNop(),
		simulate: true,
		phase:    PhaseUninitialized,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Build replaces the particle network with one built from m. On failure the
// cloth drops its state and becomes uninitialized; Advance is then a no-op.
func (c *Cloth) Build(m *mesh.Mesh, opts BuildOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts.UseBendConstraints = c.params.UseBendConstraints
	opts.ParticleMass = c.params.ParticleMass

	s, err := BuildState(m, opts)
	if err != nil {
		c.state = nil
		c.source = nil
		c.phase = PhaseUninitialized
		c.log.Warn("cloth build failed", zap.Error(err))
		return err
	}

	c.source = m
	c.buildOpts = opts
	c.install(s)

	c.log.Info("cloth built",
		zap.Int("particles", len(s.Particles)),
		zap.Int("structural", s.StructuralCount),
		zap.Int("bend", s.BendCount()),
		zap.Int("triangles", len(s.triangles)))
	return nil
}

// Rebuild builds again from the last mesh passed to Build, picking up any
// parameter that affects topology.
func (c *Cloth) Rebuild() error {
	c.mu.Lock()
	src, opts := c.source, c.buildOpts
	c.mu.Unlock()

	if src == nil {
		return ErrNotBuilt
	}
	return c.Build(src, opts)
}

// install swaps in a freshly built state.
func (c *Cloth) install(s *State) {
	c.state = s
	c.phase = PhaseReady
	c.acc.reset()
	c.sleep.reset()
	c.grid = nil
}

// Reset returns every particle to the pose captured at build time. Calling it
// repeatedly is the same as calling it once.
func (c *Cloth) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return ErrNotBuilt
	}

	fresh := *c.state
	fresh.Particles = c.state.freshParticles()
	c.install(&fresh)
	c.log.Debug("cloth reset", zap.Int("particles", len(fresh.Particles)))
	return nil
}

// Invalidate discards the particle state, e.g. after the host changes the mesh
// topology. A Build is required before simulating again.
func (c *Cloth) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = nil
	c.phase = PhaseUninitialized
	c.acc.reset()
	c.sleep.reset()
}

// Advance moves the simulation forward by dt seconds of frame time, running as
// many fixed substeps as have accumulated (up to the per-frame cap).
func (c *Cloth) Advance(dt float32) StepStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats StepStats
	if c.state == nil || !c.simulate {
		stats.Asleep = c.sleep.asleep
		return stats
	}

	if c.sleep.consumeWake() {
		c.log.Debug("cloth woke")
	}
	if !c.params.UseSleeping && c.sleep.asleep {
		c.sleep.reset()
	}

	steps, dropped := c.acc.take(dt, c.params.SubstepTime, c.params.MaxSubstepsPerFrame)
	if dropped > 0 {
		stats.DroppedTime = dropped
		c.log.Debug("substep cap reached, dropping time",
			zap.Int("substeps", steps),
			zap.Float64("dropped", dropped))
	}

	for range steps {
		if c.sleep.asleep {
			stats.Skipped++
			continue
		}
		c.substep(&stats)
		stats.Substeps++
	}

	stats.Asleep = c.sleep.asleep
	if c.sleep.asleep {
		c.phase = PhaseAsleep
	} else {
		c.phase = PhaseSimulating
	}
	return stats
}

// substep runs integrate, relax and collide once.
func (c *Cloth) substep(stats *StepStats) {
	p := c.params
	s := c.state

	accumulateForces(s.Particles, p.acceleration())
	integrate(s.Particles, p.SubstepTime, p.VelocityDamping)

	if p.Workers > 1 {
		relaxParallel(s, p, p.Workers)
	} else {
		relax(s, p)
	}

	collided := false
	if p.WorldCollision && len(c.colliders) > 0 {
		collided = collideWorld(s.Particles, c.colliders, p.ParticleRadius, p.CollisionFriction)
		stats.WorldCollided = stats.WorldCollided || collided
	}

	if p.SelfCollision {
		if c.grid == nil || c.grid.cellSize != 2*p.ParticleRadius {
			c.grid = newSpatialHash(2 * p.ParticleRadius)
		}
		stats.SelfContacts += collideSelf(s, c.grid, p)
	}

	delta := maxDelta(s.Particles)
	stats.MaxDelta = delta

	if p.UseSleeping && c.sleep.observe(delta, p.SleepDeltaThreshold, collided, p.SleepSubsteps) {
		c.log.Debug("cloth asleep", zap.Float32("delta", delta))
	}
}

// SetSimulate turns simulation on or off. While off, Advance leaves every
// particle exactly where it is and accumulates no time.
func (c *Cloth) SetSimulate(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.simulate = on
	if !on && c.state != nil {
		c.phase = PhaseReady
	}
}

// Simulating reports whether Advance will run substeps.
func (c *Cloth) Simulating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simulate
}

// Phase returns the orchestrator state.
func (c *Cloth) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Params returns the current parameters.
func (c *Cloth) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// SetParams replaces the parameters between ticks. Any change wakes a sleeping
// cloth. Enabling bend constraints on a cloth built
// without them takes effect on the next Rebuild.
func (c *Cloth) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.params
	c.params = p

	if p.ParticleMass != old.ParticleMass && c.state != nil {
		c.state.invMass = 1 / p.ParticleMass
		for i := range c.state.Particles {
			c.state.Particles[i].InvMass = c.state.invMass
		}
	}
	if p != old {
		c.sleep.requestWake()
	}
	return nil
}

// SetForce sets the constant external force and wakes the cloth.
func (c *Cloth) SetForce(f math.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.Force = f
	c.sleep.requestWake()
}

// SetGravityScale sets the gravity multiplier and wakes the cloth.
func (c *Cloth) SetGravityScale(s float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.GravityScale = s
	c.sleep.requestWake()
}

// SetColliders replaces the world colliders and wakes the cloth.
func (c *Cloth) SetColliders(cols ...Collider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.colliders = append([]Collider(nil), cols...)
	c.sleep.requestWake()
}

// Wake forces the cloth to simulate on the next tick.
func (c *Cloth) Wake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleep.requestWake()
}

// MovePinned teleports an anchored particle and wakes the cloth.
func (c *Cloth) MovePinned(i int, pos math.Vec3) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.particle(i)
	if err != nil {
		return err
	}
	if !p.Pinned() {
		return fmt.Errorf("%w: %d", ErrNotPinned, i)
	}
	p.Position = pos
	p.PrevPosition = pos
	c.sleep.requestWake()
	return nil
}

// SetParticleMass overrides the mass of a single particle until the next Reset
// or Build.
func (c *Cloth) SetParticleMass(i int, mass float32) error {
	if mass < MinParticleMass || mass > MaxParticleMass {
		return fmt.Errorf("%w: particle mass %v", ErrParamRange, mass)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.particle(i)
	if err != nil {
		return err
	}
	p.InvMass = 1 / mass
	c.sleep.requestWake()
	return nil
}

func (c *Cloth) particle(i int) (*Particle, error) {
	if c.state == nil {
		return nil, ErrNotBuilt
	}
	if i < 0 || i >= len(c.state.Particles) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return &c.state.Particles[i], nil
}

// ParticleCount returns the number of particles, 0 when unbuilt.
func (c *Cloth) ParticleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return 0
	}
	return len(c.state.Particles)
}

// Particles returns a copy of the particle array.
func (c *Cloth) Particles() []Particle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	return append([]Particle(nil), c.state.Particles...)
}

// Constraints returns a copy of the constraint array.
func (c *Cloth) Constraints() []Constraint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	return append([]Constraint(nil), c.state.Constraints...)
}

// Positions writes the current particle positions into dst, growing it if
// needed, and returns it. The order matches the source mesh vertices.
func (c *Cloth) Positions(dst []math.Vec3) []math.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return dst[:0]
	}
	dst = grow(dst, len(c.state.Particles))
	for i := range c.state.Particles {
		dst[i] = c.state.Particles[i].Position
	}
	return dst
}

// Normals regenerates per-vertex normals for the current pose into dst.
func (c *Cloth) Normals(dst []math.Vec3) []math.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return dst[:0]
	}
	n := len(c.state.Particles)
	pos := make([]math.Vec3, n)
	for i := range c.state.Particles {
		pos[i] = c.state.Particles[i].Position
	}
	dst = grow(dst, n)
	mesh.ComputeNormals(pos, c.state.triangles, dst)
	return dst
}

func grow(s []math.Vec3, n int) []math.Vec3 {
	if cap(s) < n {
		return make([]math.Vec3, n)
	}
	return s[:n]
}
