package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/nanite-lod/internal/cache"
	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/internal/logger"
	"github.com/Faultbox/nanite-lod/internal/mesh"
	"github.com/Faultbox/nanite-lod/internal/nanite"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

// meshName is the cache entry name of a source file: its base name without extension.
func meshName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func cmdBuild(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: nanitebake build <mesh.obj>...")
		os.Exit(1)
	}

	store := cache.NewStore(cfg.Cache)
	builder := nanite.NewBuilder(cfg.Build)

	entries := make([]*cache.Entry, len(args))
	hashes := make([]string, len(args))
	var (
		misses  []nanite.Source
		missIdx []int
	)
	for i, path := range args {
		m, err := mesh.LoadOBJ(path)
		if err != nil {
			logger.Fatal("failed to load mesh", zap.String("path", path), zap.Error(err))
		}
		name := meshName(path)
		hashes[i] = cache.SourceHash(m)

		entry, err := store.Load(name, hashes[i])
		switch {
		case err == nil:
			entries[i] = entry
		case errors.Is(err, cache.ErrCacheMiss):
			logger.Info("cache miss", zap.String("mesh", name), zap.String("reason", err.Error()))
			misses = append(misses, nanite.Source{Name: name, Mesh: m})
			missIdx = append(missIdx, i)
		default:
			logger.Fatal("cache entry unusable", zap.String("mesh", name), zap.Error(err))
		}
	}

	if len(misses) > 0 {
		start := time.Now()
		chains, err := builder.BuildChains(misses, cfg.Build.Parallelism)
		if err != nil {
			logger.Fatal("LOD chain build failed", zap.Error(err))
		}
		logger.Info("chains built", zap.Int("count", len(chains)), zap.Duration("elapsed", time.Since(start)))

		for k, chain := range chains {
			i := missIdx[k]
			entry, err := store.Save(chain, hashes[i], cfg.Build)
			if err != nil {
				logger.Fatal("cache write failed", zap.String("mesh", chain.Name), zap.Error(err))
			}
			entries[i] = entry
		}
	}

	for i, entry := range entries {
		fmt.Printf("%s -> %s\n", args[i], store.Path(entry.Chain.Name))
		printChain(entry.Chain)
		fmt.Printf("  hierarchy: %d nodes\n\n", len(entry.Hierarchy))
	}
}

func printChain(chain *nanite.Chain) {
	fmt.Printf("  %-6s %8s %8s %8s %7s %12s\n", "level", "faces", "clusters", "groups", "colors", "max error")
	for _, l := range chain.Levels {
		var maxErr float32
		for c := range l.Clusters {
			maxErr = max(maxErr, l.Clusters[c].LodError)
		}
		fmt.Printf("  %-6d %8d %8d %8d %7d %12.6g\n",
			l.Index, l.Geometry.NumFaces(), l.ClusterNum, l.ClusterGroupNum, l.ColorCount, maxErr)
	}
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: nanitebake info <cache entry dir>")
		os.Exit(1)
	}

	meta, err := cache.ReadMetadata(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Entry:     %s\n", args[0])
	fmt.Printf("Mesh:      %s\n", meta.Name)
	fmt.Printf("Built:     %s\n", time.Unix(*meta.CacheTimestamp, 0).Format(time.RFC3339))
	fmt.Printf("Build ID:  %s\n", meta.BuildID)
	fmt.Printf("Source:    %s\n", meta.SourceHash)
	fmt.Printf("Levels:    %d\n", *meta.LodNums)
	fmt.Printf("Config:    cluster %d, group %d, leaf %d, ratio %.2f, seed %d\n",
		meta.Config.ClusterSize, meta.Config.GroupSize, meta.Config.MaxClustersPerLeaf,
		meta.Config.SimplifyRatio, meta.Config.Seed)
	fmt.Println()

	fmt.Printf("  %-6s %8s %8s %8s %7s\n", "level", "faces", "clusters", "groups", "colors")
	for _, l := range meta.Levels {
		fmt.Printf("  %-6d %8d %8d %8d %7d\n", l.Index, l.Faces, len(l.Clusters), len(l.Groups), l.ColorCount)
	}

	statuses := make(map[string]int)
	var depth int32
	for _, n := range meta.Hierarchy {
		statuses[n.Status]++
		depth = max(depth, n.Depth)
	}
	fmt.Printf("\nHierarchy: %d nodes (%d internal, %d leaf), depth %d\n",
		len(meta.Hierarchy), statuses["internal"], statuses["leaf"], depth)
}

func cmdDemo(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	instances := fs.Int("instances", 2, "Number of sphere instances")
	spacing := fs.Float64("spacing", 3, "Distance between instances")
	rotate := fs.Float64("rotate", 0, "Yaw step between instances in degrees")
	scale := fs.Float64("scale", 1, "Uniform instance scale")
	save := fs.Bool("save", false, "Write the sphere chain to the cache")
	fs.Parse(args)

	// 100 slices x 51 stacks = 10,000 triangles
	sphere := mesh.UVSphere(100, 51, 1)
	start := time.Now()
	chain, err := nanite.NewBuilder(cfg.Build).Build("demo_sphere", sphere)
	if err != nil {
		logger.Fatal("LOD chain build failed", zap.Error(err))
	}
	logger.Info("demo chain built", zap.Duration("elapsed", time.Since(start)))

	scene := nanite.NewScene(cfg.Build.MaxClustersPerLeaf)
	yaw := math.Vec3{Y: 1}
	size := float32(*scale)
	for i := 0; i < *instances; i++ {
		angle := float32(float64(i)*(*rotate)) * math32.Pi / 180
		scene.AddInstance(chain, math.TRS(
			math.Vec3{X: float32(float64(i) * (*spacing))},
			math.QuatFromAxisAngle(yaw, angle),
			math.Vec3{X: size, Y: size, Z: size}))
	}
	if err := scene.Build(); err != nil {
		logger.Fatal("scene build failed", zap.Error(err))
	}

	fmt.Printf("Sphere: %d triangles, %d levels\n", sphere.NumFaces(), len(chain.Levels))
	printChain(chain)
	fmt.Println()

	leaves, depth := 0, int32(0)
	for _, n := range scene.Nodes {
		if n.Status == nanite.StatusLeaf {
			leaves++
		}
		depth = max(depth, n.Depth)
	}
	fmt.Printf("Scene: %d instances\n", len(scene.Instances))
	fmt.Printf("  vertices:  %d\n", len(scene.Vertices))
	fmt.Printf("  triangles: %d\n", len(scene.Indices))
	fmt.Printf("  clusters:  %d\n", len(scene.ClusterInfo))
	fmt.Printf("  nodes:     %d (%d leaves, depth %d)\n", len(scene.Nodes), leaves, depth)
	for _, inst := range scene.Instances {
		b := inst.Bounds()
		fmt.Printf("  instance %d bounds: %v - %v\n", inst.ObjectIndex, b.Min, b.Max)
	}

	if *save {
		store := cache.NewStore(cfg.Cache)
		if _, err := store.Save(chain, cache.SourceHash(sphere), cfg.Build); err != nil {
			logger.Fatal("cache write failed", zap.Error(err))
		}
		fmt.Printf("  cached:    %s\n", store.Path(chain.Name))
	}
}

func cmdWatch(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: nanitebake watch <mesh.obj>")
		os.Exit(1)
	}
	path := filepath.Clean(args[0])
	name := meshName(path)

	// Change detection needs the source hash comparison
	store := cache.NewStore(cfg.Cache)
	store.CheckStaleness = true
	builder := nanite.NewBuilder(cfg.Build)
	log := logger.Named("watch").With(zap.String("mesh", name))

	rebuild := func() {
		m, err := mesh.LoadOBJ(path)
		if err != nil {
			// Editors often write in several steps; wait for the next event.
			log.Warn("source not readable", zap.Error(err))
			return
		}
		entry, hit, err := store.LoadOrBuild(name, m, builder)
		if err != nil {
			logger.Fatal("rebuild failed", zap.String("mesh", name), zap.Error(err))
		}
		if hit {
			log.Debug("source unchanged")
			return
		}
		log.Info("cache updated", zap.Int("levels", len(entry.Chain.Levels)), zap.Int("clusters", entry.Chain.ClusterCount()))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Fatal("failed to create watcher", zap.Error(err))
	}
	defer watcher.Close()

	// Watch the directory so replace-on-save editors keep triggering events
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Fatal("failed to watch source", zap.String("path", path), zap.Error(err))
	}

	rebuild()
	log.Info("watching", zap.String("path", path))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		select {
		case e, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				rebuild()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error("watch error", zap.Error(err))

		case <-ctx.Done():
			log.Info("stopped")
			return
		}
	}
}
