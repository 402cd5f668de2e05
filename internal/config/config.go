// Package config handles bake configuration loading and management.
package config

// LeafCapacity is the fixed size of the cluster-index payload of a flattened
// hierarchy leaf. MaxClustersPerLeaf may be lowered but never raised above it.
const LeafCapacity = 32

// Config holds all bake settings.
type Config struct {
	Build   BuildConfig   `yaml:"build"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// BuildConfig holds the LOD chain and hierarchy build parameters.
type BuildConfig struct {
	ClusterSize        int     `yaml:"cluster_size"`          // Target triangles per cluster
	GroupSize          int     `yaml:"group_size"`            // Target clusters per cluster-group
	MaxClustersPerLeaf int     `yaml:"max_clusters_per_leaf"` // Cluster indices per hierarchy leaf
	SimplifyRatio      float32 `yaml:"simplify_ratio"`        // Target face fraction per simplification
	Seed               uint64  `yaml:"seed"`                  // Partitioner seed
	MaxLevels          int     `yaml:"max_levels"`            // Hard cap on LOD levels
	FixedIterations    int     `yaml:"fixed_iterations"`      // Debug: exact simplification count (0 = off)
	Parallelism        int     `yaml:"parallelism"`           // Concurrent chain builds (0 = NumCPU)
}

// CacheConfig holds cache location and invalidation settings.
type CacheConfig struct {
	Dir            string `yaml:"dir"`
	ForceRebuild   bool   `yaml:"force_rebuild"`   // Ignore existing cache entries
	CheckStaleness bool   `yaml:"check_staleness"` // Compare source hash before trusting a cache entry
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			ClusterSize:        56,
			GroupSize:          15,
			MaxClustersPerLeaf: LeafCapacity,
			SimplifyRatio:      0.2,
			Seed:               42,
			MaxLevels:          16,
			FixedIterations:    0,
			Parallelism:        0,
		},
		Cache: CacheConfig{
			Dir:            "nanite_cache",
			ForceRebuild:   false,
			CheckStaleness: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
