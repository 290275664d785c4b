package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/verletcloth/internal/cloth"
	"github.com/Faultbox/verletcloth/pkg/formats"
	"github.com/Faultbox/verletcloth/pkg/math"
)

// Collider types.
const (
	ColliderGround      = "ground"
	ColliderPlane       = "plane"
	ColliderSphere      = "sphere"
	ColliderCapsule     = "capsule"
	ColliderBox         = "box"
	ColliderHeightField = "heightfield"
	ColliderGAT         = "gat" // Heightfield loaded from a GAT altitude table
)

// ErrUnknownCollider is returned for a collider entry with an unsupported type.
var ErrUnknownCollider = errors.New("unknown collider type")

// ErrInvalidCollider is returned for a collider entry with bad dimensions.
var ErrInvalidCollider = errors.New("invalid collider")

// CollisionConfig lists the world geometry the cloth collides with.
type CollisionConfig struct {
	Colliders []ColliderConfig `yaml:"colliders"`
}

// ColliderConfig is one collider. Which fields apply depends on Type.
type ColliderConfig struct {
	Type string `yaml:"type"`

	// plane, ground (Offset is the ground height)
	Normal math.Vec3 `yaml:"normal,omitempty"`
	Offset float32   `yaml:"offset,omitempty"`

	// sphere
	Center math.Vec3 `yaml:"center,omitempty"`
	Radius float32   `yaml:"radius,omitempty"`

	// capsule (uses Radius)
	A math.Vec3 `yaml:"a,omitempty"`
	B math.Vec3 `yaml:"b,omitempty"`

	// box
	Min math.Vec3 `yaml:"min,omitempty"`
	Max math.Vec3 `yaml:"max,omitempty"`

	// heightfield, gat
	Origin   math.Vec3 `yaml:"origin,omitempty"`
	CellSize float32   `yaml:"cell_size,omitempty"`
	Cols     int       `yaml:"cols,omitempty"`
	Rows     int       `yaml:"rows,omitempty"`
	Heights  []float32 `yaml:"heights,omitempty"`

	// gat
	Path        string  `yaml:"path,omitempty"`
	HeightScale float32 `yaml:"height_scale,omitempty"` // 0 means 1
}

// Collider converts the entry into a cloth collider.
func (c ColliderConfig) Collider() (cloth.Collider, error) {
	switch c.Type {
	case ColliderGround:
		return cloth.Ground(c.Offset), nil

	case ColliderPlane:
		if c.Normal.LengthSq() == 0 {
			return nil, fmt.Errorf("%w: plane normal is zero", ErrInvalidCollider)
		}
		return cloth.Plane{Normal: c.Normal.Normalize(), Offset: c.Offset}, nil

	case ColliderSphere:
		if c.Radius <= 0 {
			return nil, fmt.Errorf("%w: sphere radius %v", ErrInvalidCollider, c.Radius)
		}
		return cloth.Sphere{Center: c.Center, Radius: c.Radius}, nil

	case ColliderCapsule:
		if c.Radius <= 0 {
			return nil, fmt.Errorf("%w: capsule radius %v", ErrInvalidCollider, c.Radius)
		}
		return cloth.Capsule{A: c.A, B: c.B, Radius: c.Radius}, nil

	case ColliderBox:
		if c.Min.X > c.Max.X || c.Min.Y > c.Max.Y || c.Min.Z > c.Max.Z {
			return nil, fmt.Errorf("%w: box min %v exceeds max %v", ErrInvalidCollider, c.Min, c.Max)
		}
		return cloth.Box{Min: c.Min, Max: c.Max}, nil

	case ColliderHeightField:
		if c.Cols < 2 || c.Rows < 2 || c.CellSize <= 0 {
			return nil, fmt.Errorf("%w: heightfield %dx%d cell %v", ErrInvalidCollider, c.Cols, c.Rows, c.CellSize)
		}
		if len(c.Heights) != c.Cols*c.Rows {
			return nil, fmt.Errorf("%w: heightfield has %d heights, want %d",
				ErrInvalidCollider, len(c.Heights), c.Cols*c.Rows)
		}
		return cloth.HeightField{
			Origin:   c.Origin,
			CellSize: c.CellSize,
			Cols:     c.Cols,
			Rows:     c.Rows,
			Heights:  c.Heights,
		}, nil

	case ColliderGAT:
		if c.CellSize <= 0 {
			return nil, fmt.Errorf("%w: gat cell size %v", ErrInvalidCollider, c.CellSize)
		}
		gat, err := formats.ParseGATFile(c.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCollider, err)
		}
		scale := c.HeightScale
		if scale == 0 {
			scale = 1
		}
		cols, rows, heights := gat.VertexHeights(scale)
		return cloth.HeightField{
			Origin:   c.Origin,
			CellSize: c.CellSize,
			Cols:     cols,
			Rows:     rows,
			Heights:  heights,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollider, c.Type)
	}
}

// Build converts every entry into a cloth collider.
func (c CollisionConfig) Build() ([]cloth.Collider, error) {
	out := make([]cloth.Collider, 0, len(c.Colliders))
	for i, cc := range c.Colliders {
		col, err := cc.Collider()
		if err != nil {
			return nil, fmt.Errorf("collider %d: %w", i, err)
		}
		out = append(out, col)
	}
	return out, nil
}
