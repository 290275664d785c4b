// clothsim runs Verlet cloth simulations from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/verletcloth/internal/cloth"
	"github.com/Faultbox/verletcloth/internal/config"
	"github.com/Faultbox/verletcloth/internal/logger"
	"github.com/Faultbox/verletcloth/internal/sim"
)

func main() {
	flag.Usage = printUsage

	// Parse CLI flags first
	config.ParseFlags()

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	switch command {
	case "run":
		os.Exit(cmdRun())
	case "info":
		os.Exit(cmdInfo())
	case "config":
		os.Exit(cmdConfig(flag.Args()[min(1, flag.NArg()):]))
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `clothsim - Verlet cloth simulator

Usage:
  clothsim [flags] <command>

Commands:
  run            Simulate and write the configured outputs (default)
  info           Show particle and constraint counts for the mesh
  config [path]  Write the effective config as YAML (stdout if no path)

Examples:
  clothsim -frames 600 -vcf out/flag.vcf -plot run
  clothsim -mesh banner.obj -self-collision -obj out/banner.obj run
  clothsim -mesh banner.obj info
  clothsim config clothsim.yaml

Flags:`)
	flag.PrintDefaults()
}

func loadConfig() (*config.Config, bool) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return nil, false
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return nil, false
	}
	return cfg, true
}

func cmdRun() int {
	cfg, ok := loadConfig()
	if !ok {
		return 1
	}
	defer logger.Sync()

	logger.Info("=== clothsim ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	s, err := sim.New(cfg, logger.Log)
	if err != nil {
		logger.Error("failed to create simulation", zap.Error(err))
		return 1
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := s.Run(ctx)
	if err != nil {
		logger.Error("simulation stopped", zap.Error(err), zap.Int("frames", sum.Frames))
		return 1
	}

	fmt.Printf("Frames:        %d\n", sum.Frames)
	fmt.Printf("Substeps:      %d (%d skipped asleep)\n", sum.Substeps, sum.Skipped)
	fmt.Printf("Dropped time:  %.3fs\n", sum.DroppedTime)
	fmt.Printf("Self contacts: %d\n", sum.SelfContacts)
	if sum.AsleepAt >= 0 {
		fmt.Printf("Asleep from:   frame %d\n", sum.AsleepAt)
	}
	fmt.Printf("Elapsed:       %s\n", sum.Elapsed)
	if cfg.Output.Plot {
		fmt.Println()
		fmt.Println(sum.Plot(72, 10))
	}
	return 0
}

func cmdInfo() int {
	cfg, ok := loadConfig()
	if !ok {
		return 1
	}
	defer logger.Sync()

	m, err := sim.LoadMesh(cfg.Mesh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	opts := cfg.Mesh.BuildOptions(m)
	opts.UseBendConstraints = cfg.Cloth.UseBendConstraints
	opts.ParticleMass = cfg.Cloth.ParticleMass
	st, err := cloth.BuildState(m, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	pinned, degenerate := 0, 0
	for i := range st.Particles {
		if st.Particles[i].Pinned() {
			pinned++
		}
	}
	for i := range st.Constraints {
		if st.Constraints[i].Degenerate() {
			degenerate++
		}
	}
	lo, hi := m.Bounds()

	source := cfg.Mesh.Path
	if source == "" {
		g := cfg.Mesh.Grid
		source = fmt.Sprintf("grid %dx%d spacing %g (%s)", g.Cols, g.Rows, g.Spacing, g.Plane)
	}
	fmt.Printf("Mesh:        %s\n", source)
	fmt.Printf("Bounds:      %v .. %v\n", lo, hi)
	fmt.Printf("Particles:   %d (%d pinned)\n", len(st.Particles), pinned)
	fmt.Printf("Triangles:   %d\n", len(st.Triangles()))
	fmt.Printf("Structural:  %d\n", st.StructuralCount)
	fmt.Printf("Bend:        %d\n", st.BendCount())
	if degenerate > 0 {
		fmt.Printf("Degenerate:  %d (skipped by the solver)\n", degenerate)
	}
	return 0
}

func cmdConfig(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	if len(args) == 0 {
		if err := cfg.Encode(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := cfg.SaveTo(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s\n", args[0])
	return 0
}
