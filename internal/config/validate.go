package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/verletcloth/internal/cloth"
	"github.com/Faultbox/verletcloth/internal/mesh"
	"github.com/Faultbox/verletcloth/pkg/math"
)

// Pin modes for generated and loaded meshes.
const (
	PinNone       = "none"
	PinTop        = "top"
	PinCorners    = "corners"
	PinTopCorners = "top_corners"
)

// ErrInvalidConfig is wrapped by every validation failure outside the cloth
// parameter ranges.
var ErrInvalidConfig = errors.New("invalid config")

// Validate reports every out-of-range or inconsistent setting at once.
func (c *Config) Validate() error {
	err := c.Cloth.Params().Validate()

	if c.Simulation.Frames < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: simulation.frames = %d", ErrInvalidConfig, c.Simulation.Frames))
	}
	if c.Simulation.FrameTime <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: simulation.frame_time = %v", ErrInvalidConfig, c.Simulation.FrameTime))
	}

	if c.Mesh.Path == "" {
		g := c.Mesh.Grid
		if g.Cols < 2 || g.Rows < 2 {
			err = multierr.Append(err, fmt.Errorf("%w: mesh.grid is %dx%d, want at least 2x2", ErrInvalidConfig, g.Cols, g.Rows))
		}
		if g.Spacing <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: mesh.grid.spacing = %v", ErrInvalidConfig, g.Spacing))
		}
		if g.Plane != "" && g.Plane != "xy" && g.Plane != "xz" {
			err = multierr.Append(err, fmt.Errorf("%w: mesh.grid.plane = %q", ErrInvalidConfig, g.Plane))
		}
	}

	switch c.Mesh.Pin {
	case "", PinNone, PinTop, PinCorners, PinTopCorners:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: mesh.pin = %q", ErrInvalidConfig, c.Mesh.Pin))
	}

	for i, cc := range c.Collision.Colliders {
		if _, cerr := cc.Collider(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("collision.colliders[%d]: %w", i, cerr))
		}
	}

	return err
}

// Clamp pulls every ranged cloth setting into range and fixes unusable
// simulation values. Settings that have no safe fallback are left for Validate.
func (c *Config) Clamp() {
	p := c.Cloth.Params().Clamped()
	c.Cloth.SubstepTime = p.SubstepTime
	c.Cloth.ConstraintIterations = p.ConstraintIterations
	c.Cloth.SelfCollisionPasses = p.SelfCollisionPasses
	c.Cloth.ParticleMass = p.ParticleMass
	c.Cloth.ParticleRadius = p.ParticleRadius
	c.Cloth.StiffnessCoefficient = p.Stiffness
	c.Cloth.CollisionFriction = p.CollisionFriction
	c.Cloth.VelocityDamping = p.VelocityDamping
	c.Cloth.SleepDeltaThreshold = p.SleepDeltaThreshold
	c.Cloth.SleepSubsteps = p.SleepSubsteps
	c.Cloth.MaxSubstepsPerFrame = p.MaxSubstepsPerFrame
	c.Cloth.Workers = p.Workers

	if c.Simulation.Frames < 0 {
		c.Simulation.Frames = 0
	}
	if c.Simulation.FrameTime <= 0 {
		c.Simulation.FrameTime = 1.0 / 60
	}
}

// PinFunc returns the anchor selector for the configured pin mode on a mesh
// with the given bounds. Vertices within tolerance of the top edge (highest Y)
// or of the top/bottom corners are pinned.
func (m MeshConfig) PinFunc(lo, hi math.Vec3) func(id int32, pos math.Vec3) bool {
	const tol = 1e-4
	near := func(a, b float32) bool { return math.Abs(a-b) <= tol }

	// Generated XZ grids lie flat; their "top" edge is the Z = min row.
	top := func(p math.Vec3) bool { return near(p.Y, hi.Y) }
	if lo.Y == hi.Y {
		top = func(p math.Vec3) bool { return near(p.Z, lo.Z) }
	}
	side := func(p math.Vec3) bool { return near(p.X, lo.X) || near(p.X, hi.X) }
	bottom := func(p math.Vec3) bool { return near(p.Y, lo.Y) }
	if lo.Y == hi.Y {
		bottom = func(p math.Vec3) bool { return near(p.Z, hi.Z) }
	}

	switch m.Pin {
	case PinTop:
		return func(_ int32, p math.Vec3) bool { return top(p) }
	case PinTopCorners:
		return func(_ int32, p math.Vec3) bool { return top(p) && side(p) }
	case PinCorners:
		return func(_ int32, p math.Vec3) bool { return (top(p) || bottom(p)) && side(p) }
	default:
		return nil
	}
}

// BuildOptions returns the cloth build options for a mesh.
func (m MeshConfig) BuildOptions(src *mesh.Mesh) cloth.BuildOptions {
	lo, hi := src.Bounds()
	return cloth.BuildOptions{
		Pinned:  m.PinIndices,
		PinFunc: m.PinFunc(lo, hi),
	}
}

// GridMesh generates the configured grid, already transformed.
func (m MeshConfig) GridMesh() *mesh.Mesh {
	g := m.Grid
	out := mesh.Grid(g.Cols, g.Rows, g.Spacing, mesh.ParsePlane(g.Plane))
	if out == nil {
		return nil
	}
	return out.Transform(m.Transform.Matrix())
}
