package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Validate for out-of-range build settings.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks build settings that would otherwise break the pipeline later.
func (c *Config) Validate() error {
	b := c.Build
	switch {
	case b.ClusterSize < 1:
		return fmt.Errorf("%w: cluster_size must be >= 1, got %d", ErrInvalidConfig, b.ClusterSize)
	case b.GroupSize < 1:
		return fmt.Errorf("%w: group_size must be >= 1, got %d", ErrInvalidConfig, b.GroupSize)
	case b.MaxClustersPerLeaf < 1 || b.MaxClustersPerLeaf > LeafCapacity:
		return fmt.Errorf("%w: max_clusters_per_leaf must be in [1, %d], got %d",
			ErrInvalidConfig, LeafCapacity, b.MaxClustersPerLeaf)
	case b.SimplifyRatio <= 0 || b.SimplifyRatio >= 1:
		return fmt.Errorf("%w: simplify_ratio must be in (0, 1), got %v", ErrInvalidConfig, b.SimplifyRatio)
	case b.MaxLevels < 1:
		return fmt.Errorf("%w: max_levels must be >= 1, got %d", ErrInvalidConfig, b.MaxLevels)
	case b.FixedIterations < 0:
		return fmt.Errorf("%w: fixed_iterations must be >= 0, got %d", ErrInvalidConfig, b.FixedIterations)
	}
	return nil
}
