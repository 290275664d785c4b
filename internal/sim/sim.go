// Package sim runs a cloth offline: it loads the configured mesh and
// colliders, advances the cloth a fixed number of frames and writes the
// results.
package sim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"

	"github.com/Faultbox/verletcloth/internal/cloth"
	"github.com/Faultbox/verletcloth/internal/config"
	"github.com/Faultbox/verletcloth/internal/mesh"
	"github.com/Faultbox/verletcloth/pkg/formats"
	"github.com/Faultbox/verletcloth/pkg/math"
)

// ErrUnsupportedMesh is returned for a mesh file that is not an OBJ.
var ErrUnsupportedMesh = errors.New("unsupported mesh file")

// Summary describes a finished run.
type Summary struct {
	Frames        int
	Substeps      int
	Skipped       int
	DroppedTime   float64
	SelfContacts  int
	WorldContacts int // Frames in which the cloth touched a collider
	AsleepAt      int // First frame the cloth was asleep, -1 if never
	Elapsed       time.Duration

	// MaxDelta holds the largest particle displacement of each frame's last
	// substep, carried over from the previous frame when no substep ran.
	MaxDelta []float64
}

// Plot draws the per-frame displacement history as a terminal chart. The
// history is averaged down to at most width columns.
func (s Summary) Plot(width, height int) string {
	if len(s.MaxDelta) == 0 {
		return ""
	}
	data := s.MaxDelta
	if width > 0 && len(data) > width {
		data = downsample(data, width)
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Caption("max particle displacement per substep"))
}

func downsample(data []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		lo := i * len(data) / n
		hi := (i + 1) * len(data) / n
		var sum float64
		for _, v := range data[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// Sim is one offline simulation.
type Sim struct {
	cfg   *config.Config
	log   *zap.Logger
	mesh  *mesh.Mesh
	cloth *cloth.Cloth

	vcfFile *os.File
	vcf     *formats.VCFWriter
	pos     []math.Vec3
}

// LoadMesh returns the configured surface in world space: the OBJ at mc.Path
// or a generated grid.
func LoadMesh(mc config.MeshConfig) (*mesh.Mesh, error) {
	if mc.Path == "" {
		m := mc.GridMesh()
		if m == nil {
			return nil, fmt.Errorf("grid %dx%d is too small", mc.Grid.Cols, mc.Grid.Rows)
		}
		return m, nil
	}

	if ext := strings.ToLower(filepath.Ext(mc.Path)); ext != ".obj" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMesh, mc.Path)
	}
	obj, err := formats.LoadOBJ(mc.Path)
	if err != nil {
		return nil, err
	}
	return obj.Mesh().Transform(mc.Transform.Matrix()), nil
}

// New loads the mesh and colliders and builds the cloth.
func New(cfg *config.Config, log *zap.Logger) (*Sim, error) {
	if log == nil {
		log = zap.NewNop()
	}

	m, err := LoadMesh(cfg.Mesh)
	if err != nil {
		return nil, fmt.Errorf("loading mesh: %w", err)
	}

	colliders, err := cfg.Collision.Build()
	if err != nil {
		return nil, fmt.Errorf("building colliders: %w", err)
	}

	c, err := cloth.New(cfg.Cloth.Params(),
		cloth.WithLogger(log.Named("cloth")),
		cloth.WithColliders(colliders...))
	if err != nil {
		return nil, fmt.Errorf("creating cloth: %w", err)
	}
	if err := c.Build(m, cfg.Mesh.BuildOptions(m)); err != nil {
		return nil, fmt.Errorf("building cloth: %w", err)
	}
	c.SetSimulate(cfg.Cloth.Simulate)

	log.Info("simulation ready",
		zap.Int("vertices", m.VertexCount()),
		zap.Int("triangles", m.TriangleCount()),
		zap.Int("colliders", len(colliders)),
		zap.Int("frames", cfg.Simulation.Frames))

	return &Sim{cfg: cfg, log: log, mesh: m, cloth: c}, nil
}

// Cloth returns the simulated cloth.
func (s *Sim) Cloth() *cloth.Cloth {
	return s.cloth
}

// Run advances the configured number of frames, streaming each pose to the VCF
// output and writing the final pose to the OBJ output. A cancelled context
// stops the run after the current frame; the outputs still hold every frame
// completed so far.
func (s *Sim) Run(ctx context.Context) (Summary, error) {
	sum := Summary{AsleepAt: -1, MaxDelta: make([]float64, 0, s.cfg.Simulation.Frames)}
	var lastDelta float32
	start := time.Now()

	if err := s.openVCF(); err != nil {
		return sum, err
	}

	dt := s.cfg.Simulation.FrameTime
	every := s.cfg.Output.StatsEvery

	var runErr error
	for frame := 0; frame < s.cfg.Simulation.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		st := s.cloth.Advance(dt)
		sum.Frames++
		sum.Substeps += st.Substeps
		sum.Skipped += st.Skipped
		sum.DroppedTime += st.DroppedTime
		sum.SelfContacts += st.SelfContacts
		if st.WorldCollided {
			sum.WorldContacts++
		}
		if st.Substeps > 0 {
			lastDelta = st.MaxDelta
		}
		sum.MaxDelta = append(sum.MaxDelta, float64(lastDelta))
		if st.Asleep && sum.AsleepAt < 0 {
			sum.AsleepAt = frame
			s.log.Info("cloth asleep", zap.Int("frame", frame))
		}

		if err := s.writeFrame(); err != nil {
			runErr = err
			break
		}

		if every > 0 && frame%every == 0 {
			s.log.Debug("frame",
				zap.Int("frame", frame),
				zap.Int("substeps", st.Substeps),
				zap.Float32("max_delta", st.MaxDelta),
				zap.Int("self_contacts", st.SelfContacts),
				zap.Bool("world", st.WorldCollided),
				zap.Stringer("phase", s.cloth.Phase()))
		}
	}

	if err := s.closeVCF(); err != nil && runErr == nil {
		runErr = err
	}
	if err := s.writeOBJ(); err != nil && runErr == nil {
		runErr = err
	}

	sum.Elapsed = time.Since(start)
	s.log.Info("simulation finished",
		zap.Int("frames", sum.Frames),
		zap.Int("substeps", sum.Substeps),
		zap.Int("skipped", sum.Skipped),
		zap.Float64("dropped_time", sum.DroppedTime),
		zap.Duration("elapsed", sum.Elapsed))
	return sum, runErr
}

func (s *Sim) openVCF() error {
	path := s.cfg.Output.VCF
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating frame cache: %w", err)
	}
	w, err := formats.NewVCFWriter(f, s.cloth.ParticleCount(), s.cfg.Simulation.FrameTime)
	if err != nil {
		f.Close()
		return fmt.Errorf("creating frame cache: %w", err)
	}
	s.vcfFile, s.vcf = f, w
	return nil
}

func (s *Sim) writeFrame() error {
	if s.vcf == nil {
		return nil
	}
	s.pos = s.cloth.Positions(s.pos)
	return s.vcf.WriteFrame(s.pos)
}

func (s *Sim) closeVCF() error {
	if s.vcf == nil {
		return nil
	}
	err := s.vcf.Close()
	if cerr := s.vcfFile.Close(); err == nil {
		err = cerr
	}
	s.log.Info("frame cache written",
		zap.String("path", s.cfg.Output.VCF),
		zap.Int("frames", s.vcf.Frames()))
	s.vcf, s.vcfFile = nil, nil
	return err
}

func (s *Sim) writeOBJ() error {
	path := s.cfg.Output.OBJ
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating OBJ: %w", err)
	}
	defer f.Close()

	pos := s.cloth.Positions(nil)
	normals := s.cloth.Normals(nil)
	if err := formats.WriteOBJ(f, pos, normals, s.mesh.UVs, s.mesh.Indices); err != nil {
		return fmt.Errorf("writing OBJ: %w", err)
	}
	s.log.Info("final pose written", zap.String("path", path))
	return f.Close()
}

// Close releases any open output. It is safe to call after Run.
func (s *Sim) Close() error {
	return s.closeVCF()
}
