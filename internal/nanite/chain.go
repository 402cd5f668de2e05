package nanite

import (
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/internal/graph"
	"github.com/Faultbox/nanite-lod/internal/logger"
	"github.com/Faultbox/nanite-lod/internal/mesh"
)

// LevelStats summarizes one iteration of the chain build for a Terminator.
type LevelStats struct {
	Level           int // Index of the level just built
	Clusters        int
	Groups          int
	Faces           int // Faces of the level
	SimplifiedFaces int // Faces after simplifying it; equals Faces when skipped
}

// Terminator decides whether the chain is complete after a level.
type Terminator func(s LevelStats) bool

// DefaultTerminator stops once a level forms a single group, once simplification
// stops reducing the face count, or after maxLevels levels.
func DefaultTerminator(maxLevels int) Terminator {
	return func(s LevelStats) bool {
		return s.Groups <= 1 || s.SimplifiedFaces >= s.Faces || s.Level+1 >= maxLevels
	}
}

// FixedIterations always builds exactly n+1 levels. Debug use only: it keeps
// iterating after the geometry has stopped changing.
func FixedIterations(n int) Terminator {
	return func(s LevelStats) bool {
		return s.Level >= n
	}
}

// Chain is the LOD chain of one source mesh, finest level first.
type Chain struct {
	Name        string
	Levels      []*Level
	SurfaceArea float32 // Area of the finest level
}

// ClusterCount returns the number of clusters over all levels.
func (c *Chain) ClusterCount() int {
	n := 0
	for _, l := range c.Levels {
		n += l.ClusterNum
	}
	return n
}

// Coarsest returns the last level.
func (c *Chain) Coarsest() *Level {
	return c.Levels[len(c.Levels)-1]
}

// Builder drives the cluster, group, simplify loop.
type Builder struct {
	Partitioner graph.Partitioner
	Config      config.BuildConfig
	Terminate   Terminator
}

// NewBuilder returns a builder using the built-in partitioner. A non-zero
// FixedIterations selects the fixed-count termination.
func NewBuilder(cfg config.BuildConfig) *Builder {
	term := DefaultTerminator(cfg.MaxLevels)
	if cfg.FixedIterations > 0 {
		term = FixedIterations(cfg.FixedIterations)
	}
	return &Builder{
		Partitioner: graph.NewBisection(),
		Config:      cfg,
		Terminate:   term,
	}
}

// Build generates the LOD chain of m. The input mesh is not modified.
func (b *Builder) Build(name string, m *mesh.Mesh) (*Chain, error) {
	if m.NumFaces() == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyMesh)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	log := logger.Named("nanite").With(zap.String("mesh", name))
	cfg := b.Config

	chain := &Chain{Name: name}
	geometry := m.Clone()
	var (
		regions     []int
		regionCount int
		groupError  []float32
	)

	for index := 0; ; index++ {
		level := NewLevel(index, geometry)
		if err := level.GenerateClusters(b.Partitioner, cfg.ClusterSize, cfg.Seed, regions, regionCount); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		level.ColorClusters()
		if err := level.GenerateClusterGroups(b.Partitioner, cfg.GroupSize, cfg.Seed); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if index > 0 {
			linkLevels(chain.Coarsest(), level, groupError)
		}
		chain.Levels = append(chain.Levels, level)

		stats := LevelStats{
			Level:           index,
			Clusters:        level.ClusterNum,
			Groups:          level.ClusterGroupNum,
			Faces:           geometry.NumFaces(),
			SimplifiedFaces: geometry.NumFaces(),
		}

		next := geometry
		nextRegions := level.FaceGroups()
		groupError = make([]float32, level.ClusterGroupNum)
		if level.ClusterGroupNum > 1 {
			res, err := level.Simplify(cfg.SimplifyRatio)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			stats.SimplifiedFaces = res.Mesh.NumFaces()
			next, nextRegions, groupError = res.Mesh, res.FaceGroups, res.GroupError
		}

		log.Debug("level built",
			zap.Int("level", index),
			zap.Int("faces", stats.Faces),
			zap.Int("clusters", stats.Clusters),
			zap.Int("groups", stats.Groups),
			zap.Int("colors", level.ColorCount),
			zap.Int("simplified_faces", stats.SimplifiedFaces))

		if b.Terminate(stats) {
			break
		}
		if next == geometry {
			next = geometry.Clone()
		}
		geometry, regions, regionCount = next, nextRegions, level.ClusterGroupNum
	}

	finalizeErrors(chain)
	chain.SurfaceArea = chain.Levels[0].SurfaceArea()

	log.Info("chain built",
		zap.Int("levels", len(chain.Levels)),
		zap.Int("clusters", chain.ClusterCount()),
		zap.Int("faces", m.NumFaces()),
		zap.Int("coarsest_faces", chain.Coarsest().Geometry.NumFaces()))
	return chain, nil
}

// linkLevels carries simplification error from fine to coarse. The clusters carved
// from group g get the larger of the group's collapse cost and its clusters' own
// error, so error never decreases towards the root. The clusters of g record that
// value and the total area of its replacements as their parent terms.
func linkLevels(fine, coarse *Level, groupError []float32) {
	childArea := make([]float32, fine.ClusterGroupNum)
	for i := range coarse.Clusters {
		c := &coarse.Clusters[i]
		childArea[c.SourceGroup] += c.SurfaceArea
	}

	errs := make([]float32, fine.ClusterGroupNum)
	for g, grp := range fine.ClusterGroups {
		e := groupError[g]
		for _, c := range grp.ClusterIndices {
			e = math32.Max(e, fine.Clusters[c].LodError)
		}
		errs[g] = e
		for _, c := range grp.ClusterIndices {
			fine.Clusters[c].ParentError = e
			fine.Clusters[c].ParentSurfaceArea = childArea[g]
		}
	}
	for i := range coarse.Clusters {
		c := &coarse.Clusters[i]
		c.LodError = errs[c.SourceGroup]
	}
}

// finalizeErrors closes the coarsest level and fills the normalized error terms.
func finalizeErrors(chain *Chain) {
	for i := range chain.Coarsest().Clusters {
		c := &chain.Coarsest().Clusters[i]
		c.ParentError = math32.MaxFloat32
		c.ParentSurfaceArea = c.SurfaceArea
	}
	for _, l := range chain.Levels {
		for i := range l.Clusters {
			c := &l.Clusters[i]
			c.NormalizedLodError = normalize(c.LodError, c.SurfaceArea)
			if c.ParentError == math32.MaxFloat32 {
				c.NormalizedParentError = math32.MaxFloat32
			} else {
				c.NormalizedParentError = normalize(c.ParentError, c.ParentSurfaceArea)
			}
		}
	}
}

func normalize(err, area float32) float32 {
	if area <= 0 {
		return err
	}
	return err / area
}
