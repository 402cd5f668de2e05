package config

import "flag"

var (
	flagConfig          = flag.String("config", "", "Path to config file")
	flagDebug           = flag.Bool("debug", false, "Enable debug logging")
	flagCache           = flag.String("cache", "", "Cache directory")
	flagForce           = flag.Bool("force", false, "Ignore cached LOD chains and rebuild")
	flagClusterSize     = flag.Int("cluster-size", 0, "Target triangles per cluster")
	flagGroupSize       = flag.Int("group-size", 0, "Target clusters per cluster-group")
	flagSeed            = flag.Uint64("seed", 0, "Partitioner seed (0 = keep configured)")
	flagFixedIterations = flag.Int("fixed-iterations", 0, "Debug: run exactly N simplification passes")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the positional arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagCache != "" {
		cfg.Cache.Dir = *flagCache
	}
	if *flagForce {
		cfg.Cache.ForceRebuild = true
	}
	if *flagClusterSize > 0 {
		cfg.Build.ClusterSize = *flagClusterSize
	}
	if *flagGroupSize > 0 {
		cfg.Build.GroupSize = *flagGroupSize
	}
	if *flagSeed > 0 {
		cfg.Build.Seed = *flagSeed
	}
	if *flagFixedIterations > 0 {
		cfg.Build.FixedIterations = *flagFixedIterations
	}
}
