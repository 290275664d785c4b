package config

import "flag"

var (
	flagConfig        = flag.String("config", "", "Path to config file")
	flagDebug         = flag.Bool("debug", false, "Enable debug logging")
	flagMesh          = flag.String("mesh", "", "OBJ mesh to simulate (default: generated grid)")
	flagSubstep       = flag.Float64("substep", 0, "Fixed substep time in seconds")
	flagIterations    = flag.Int("iterations", 0, "Constraint iterations per substep")
	flagFrames        = flag.Int("frames", -1, "Number of frames to simulate")
	flagSelfCollision = flag.Bool("self-collision", false, "Enable self-collision")
	flagWorkers       = flag.Int("workers", -1, "Parallel constraint workers (0 or 1 = serial)")
	flagVCF           = flag.String("vcf", "", "Write the frame cache to this path")
	flagOBJ           = flag.String("obj", "", "Write the final pose to this OBJ path")
	flagPlot          = flag.Bool("plot", false, "Print a displacement chart after the run")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Cloth.ShowSleeping = true
	}
	if *flagMesh != "" {
		cfg.Mesh.Path = *flagMesh
	}
	if *flagSubstep > 0 {
		cfg.Cloth.SubstepTime = float32(*flagSubstep)
	}
	if *flagIterations > 0 {
		cfg.Cloth.ConstraintIterations = *flagIterations
	}
	if *flagFrames >= 0 {
		cfg.Simulation.Frames = *flagFrames
	}
	if *flagSelfCollision {
		cfg.Cloth.SelfCollision = true
	}
	if *flagWorkers >= 0 {
		cfg.Cloth.Workers = *flagWorkers
	}
	if *flagVCF != "" {
		cfg.Output.VCF = *flagVCF
	}
	if *flagOBJ != "" {
		cfg.Output.OBJ = *flagOBJ
	}
	if *flagPlot {
		cfg.Output.Plot = true
	}
}
