package sim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/verletcloth/internal/cloth"
	"github.com/Faultbox/verletcloth/internal/config"
	"github.com/Faultbox/verletcloth/pkg/formats"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Mesh.Grid = config.GridConfig{Cols: 6, Rows: 6, Spacing: 0.2, Plane: "xy"}
	cfg.Simulation.Frames = 30
	cfg.Output.StatsEvery = 10
	return cfg
}

func TestRun_WritesOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Output.VCF = filepath.Join(dir, "out", "frames.vcf")
	cfg.Output.OBJ = filepath.Join(dir, "out", "final.obj")

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	sum, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Frames != 30 {
		t.Errorf("expected 30 frames, got %d", sum.Frames)
	}
	if sum.Substeps == 0 {
		t.Error("expected substeps to run")
	}
	if len(sum.MaxDelta) != 30 {
		t.Errorf("expected 30 displacement samples, got %d", len(sum.MaxDelta))
	}
	if plot := sum.Plot(20, 5); !strings.Contains(plot, "max particle displacement") {
		t.Errorf("expected a captioned chart, got:\n%s", plot)
	}

	vcf, err := formats.ParseVCFFile(cfg.Output.VCF)
	if err != nil {
		t.Fatalf("ParseVCFFile failed: %v", err)
	}
	if len(vcf.Frames) != 30 || vcf.VertexCount != 36 {
		t.Errorf("expected 30 frames of 36 vertices, got %d of %d", len(vcf.Frames), vcf.VertexCount)
	}

	// The last cached frame is the pose written to the OBJ.
	obj, err := formats.LoadOBJ(cfg.Output.OBJ)
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}
	last := vcf.Frames[len(vcf.Frames)-1]
	for i, p := range obj.Positions {
		if p != last[i] {
			t.Fatalf("vertex %d: OBJ %v, last frame %v", i, p, last[i])
		}
	}

	// The pinned top row never moves.
	first := vcf.Frames[0]
	for i := range 6 {
		if first[i] != last[i] {
			t.Errorf("pinned vertex %d moved from %v to %v", i, first[i], last[i])
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.VCF = filepath.Join(t.TempDir(), "frames.vcf")

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sum.Frames != 0 {
		t.Errorf("expected no frames, got %d", sum.Frames)
	}

	// The cache is still a valid, empty file.
	vcf, err := formats.ParseVCFFile(cfg.Output.VCF)
	if err != nil {
		t.Fatalf("ParseVCFFile failed: %v", err)
	}
	if len(vcf.Frames) != 0 {
		t.Errorf("expected 0 frames, got %d", len(vcf.Frames))
	}
}

func TestRun_SimulateOff(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cloth.Simulate = false

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	before := s.Cloth().Positions(nil)

	sum, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Substeps != 0 {
		t.Errorf("expected no substeps, got %d", sum.Substeps)
	}
	after := s.Cloth().Positions(nil)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("vertex %d moved with simulation off", i)
		}
	}
}

func TestRun_SettlesOnGround(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mesh.Grid.Plane = "xz"
	cfg.Mesh.Pin = config.PinNone
	cfg.Mesh.Transform.Translate.Y = 0.3
	cfg.Collision.Colliders = []config.ColliderConfig{{Type: config.ColliderGround}}
	cfg.Cloth.UseSleeping = true
	cfg.Cloth.CollisionFriction = 1
	cfg.Simulation.Frames = 240

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sum, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.WorldContacts == 0 {
		t.Fatal("cloth never reached the ground")
	}
	for i, p := range s.Cloth().Particles() {
		if p.Position.Y < cfg.Cloth.ParticleRadius-1e-3 {
			t.Errorf("particle %d below the ground: %v", i, p.Position)
		}
	}
}

func TestLoadMesh(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "tri.obj")
	if err := os.WriteFile(objPath, []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0644); err != nil {
		t.Fatalf("failed to write OBJ: %v", err)
	}

	mc := config.Default().Mesh
	mc.Path = objPath
	mc.Transform.Translate.Z = 2

	m, err := LoadMesh(mc)
	if err != nil {
		t.Fatalf("LoadMesh failed: %v", err)
	}
	if m.VertexCount() != 3 || m.Positions[1].Z != 2 {
		t.Errorf("unexpected mesh: %+v", m.Positions)
	}

	mc.Path = filepath.Join(dir, "cloth.fbx")
	if _, err := LoadMesh(mc); !errors.Is(err, ErrUnsupportedMesh) {
		t.Errorf("expected ErrUnsupportedMesh, got %v", err)
	}

	mc.Path = ""
	mc.Grid.Cols = 1
	if _, err := LoadMesh(mc); err == nil {
		t.Error("expected error for a degenerate grid")
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collision.Colliders = []config.ColliderConfig{{Type: "cone"}}
	if _, err := New(cfg, nil); !errors.Is(err, config.ErrUnknownCollider) {
		t.Errorf("expected ErrUnknownCollider, got %v", err)
	}

	cfg = testConfig(t)
	cfg.Cloth.StiffnessCoefficient = 5
	if _, err := New(cfg, nil); !errors.Is(err, cloth.ErrParamRange) {
		t.Errorf("expected ErrParamRange, got %v", err)
	}

	cfg = testConfig(t)
	cfg.Mesh.PinIndices = []int32{int32(6 * 6)}
	if _, err := New(cfg, nil); !errors.Is(err, cloth.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}

}

func TestDownsample(t *testing.T) {
	got := downsample([]float64{1, 3, 5, 7, 9, 11}, 3)
	want := []float64{2, 6, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	if (Summary{}).Plot(10, 3) != "" {
		t.Error("expected no chart without samples")
	}
}
