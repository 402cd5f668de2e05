// Package cache persists LOD chains between runs: one OBJ file per level plus a
// YAML metadata document with the cluster records and the flattened hierarchy.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/internal/logger"
	"github.com/Faultbox/nanite-lod/internal/mesh"
	"github.com/Faultbox/nanite-lod/internal/nanite"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

var (
	// ErrCacheMiss means the entry must be regenerated. It is never fatal.
	ErrCacheMiss = errors.New("cache miss")
	// ErrMalformedCache means an entry exists but cannot be trusted.
	ErrMalformedCache = errors.New("malformed cache")
	// ErrMissingCacheField is wrapped together with ErrMalformedCache.
	ErrMissingCacheField = errors.New("missing required cache field")
	// ErrInvalidName rejects entry names that do not resolve to a single
	// subdirectory of the store.
	ErrInvalidName = errors.New("invalid cache entry name")
)

// MetaFile is the metadata document name inside an entry directory.
const MetaFile = "meta.yaml"

// LevelFile returns the geometry file name of a level.
func LevelFile(level int) string {
	return fmt.Sprintf("lod_%d.obj", level)
}

// Store is a directory of cache entries, one subdirectory per chain name.
type Store struct {
	Dir            string
	ForceRebuild   bool
	CheckStaleness bool
}

// NewStore returns a store configured by cfg.
func NewStore(cfg config.CacheConfig) *Store {
	return &Store{
		Dir:            cfg.Dir,
		ForceRebuild:   cfg.ForceRebuild,
		CheckStaleness: cfg.CheckStaleness,
	}
}

// Path returns the entry directory of name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// CheckName reports whether name is usable as an entry directory: not empty,
// not a dot path and free of path separators.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Entry is a cached chain with its flattened single-instance hierarchy.
type Entry struct {
	Chain     *nanite.Chain
	Hierarchy []nanite.NodeInfo
	Meta      *Metadata
}

// Save replaces the entry of chain.Name. sourceHash is recorded for staleness
// checks and may be empty.
func (s *Store) Save(chain *nanite.Chain, sourceHash string, cfg config.BuildConfig) (*Entry, error) {
	if err := CheckName(chain.Name); err != nil {
		return nil, err
	}
	dir := s.Path(chain.Name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing cache entry: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache entry: %w", err)
	}

	for i, l := range chain.Levels {
		if err := mesh.SaveOBJ(filepath.Join(dir, LevelFile(i)), l.Geometry); err != nil {
			return nil, fmt.Errorf("writing level %d: %w", i, err)
		}
	}

	scene := nanite.NewScene(cfg.MaxClustersPerLeaf)
	scene.AddInstance(chain, math.Identity())
	if err := scene.Build(); err != nil {
		return nil, fmt.Errorf("building hierarchy of %s: %w", chain.Name, err)
	}

	lodNums := len(chain.Levels)
	timestamp := time.Now().Unix()
	meta := &Metadata{
		LodNums:        &lodNums,
		CacheTimestamp: &timestamp,
		BuildID:        uuid.New().String(),
		SourceHash:     sourceHash,
		Name:           chain.Name,
		Config:         cfg,
		SurfaceArea:    chain.SurfaceArea,
		Levels:         make([]LevelMeta, 0, lodNums),
		Hierarchy:      make([]NodeMeta, 0, len(scene.Nodes)),
	}
	for _, l := range chain.Levels {
		meta.Levels = append(meta.Levels, newLevelMeta(l))
	}
	for i := range scene.Nodes {
		meta.Hierarchy = append(meta.Hierarchy, newNodeMeta(&scene.Nodes[i]))
	}

	data, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFile), data, 0644); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	logger.Named("cache").Info("cache written",
		zap.String("mesh", chain.Name),
		zap.String("dir", dir),
		zap.Int("levels", lodNums),
		zap.Int("nodes", len(scene.Nodes)),
		zap.String("build_id", meta.BuildID))
	return &Entry{Chain: chain, Hierarchy: scene.Nodes, Meta: meta}, nil
}

// Load reads the entry of name. It returns ErrCacheMiss when the entry is absent,
// when a rebuild is forced, or when staleness checks are on and sourceHash differs
// from the recorded one. Any inconsistency in a present entry is ErrMalformedCache.
func (s *Store) Load(name, sourceHash string) (*Entry, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if s.ForceRebuild {
		return nil, fmt.Errorf("%s: rebuild forced: %w", name, ErrCacheMiss)
	}
	dir := s.Path(name)
	meta, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}
	if s.CheckStaleness && sourceHash != "" && meta.SourceHash != sourceHash {
		return nil, fmt.Errorf("%s: source changed since %s: %w", name,
			time.Unix(*meta.CacheTimestamp, 0).Format(time.RFC3339), ErrCacheMiss)
	}

	chain := &nanite.Chain{Name: name, SurfaceArea: meta.SurfaceArea}
	for i := range meta.Levels {
		geometry, err := mesh.LoadOBJ(filepath.Join(dir, LevelFile(i)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s level %d: %w", ErrMalformedCache, name, i, err)
		}
		l := &nanite.Level{Index: i, Geometry: geometry}
		if err := meta.Levels[i].restore(l); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		chain.Levels = append(chain.Levels, l)
	}

	nodes := make([]nanite.NodeInfo, len(meta.Hierarchy))
	for i := range meta.Hierarchy {
		nm := &meta.Hierarchy[i]
		if int(nm.Index) != i {
			return nil, fmt.Errorf("%w: %s: node %d stored at position %d", ErrMalformedCache, name, nm.Index, i)
		}
		if nodes[i], err = nm.node(len(nodes), chain.ClusterCount()); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	logger.Named("cache").Info("cache hit",
		zap.String("mesh", name),
		zap.Int("levels", len(chain.Levels)),
		zap.String("build_id", meta.BuildID))
	return &Entry{Chain: chain, Hierarchy: nodes, Meta: meta}, nil
}

// LoadOrBuild returns the cached chain of name, or builds m and caches it on a miss.
// The boolean reports a cache hit.
func (s *Store) LoadOrBuild(name string, m *mesh.Mesh, b *nanite.Builder) (*Entry, bool, error) {
	hash := SourceHash(m)
	entry, err := s.Load(name, hash)
	if err == nil {
		return entry, true, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return nil, false, err
	}
	logger.Named("cache").Info("cache miss", zap.String("mesh", name), zap.String("reason", err.Error()))

	chain, err := b.Build(name, m)
	if err != nil {
		return nil, false, err
	}
	entry, err = s.Save(chain, hash, b.Config)
	if err != nil {
		return nil, false, err
	}
	return entry, false, nil
}

// ReadMetadata reads and checks the metadata document of the entry in dir.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dir, ErrCacheMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, dir, err)
	}
	if err := meta.checkRequired(); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return &meta, nil
}
