// nanitebake builds clustered LOD chains and their hierarchies offline and keeps
// them in an on-disk cache for the renderer.
package main

import (
	"fmt"
	"os"

	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/internal/logger"
)

func main() {
	// Global flags come before the command
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("Config: %+v", cfg)

	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "build", "b":
		cmdBuild(cfg, args)
	case "info":
		cmdInfo(args)
	case "demo":
		cmdDemo(cfg, args)
	case "watch", "w":
		cmdWatch(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`nanitebake - clustered LOD chain builder

Usage:
  nanitebake [flags] <command> [options]

Commands:
  build <mesh.obj>...        Build (or load cached) LOD chains and write the cache
  info <cache entry dir>     Show cached chain metadata
  demo [-instances N]        Build a 10,000 triangle sphere scene and print its buffers
  watch <mesh.obj>           Rebuild the cache entry whenever the source changes

Flags:
  -config <file>             Config file (default ./nanitebake.yaml, then user config dir)
  -cache <dir>               Cache directory
  -force                     Ignore cached chains
  -debug                     Debug logging
  -cluster-size, -group-size, -seed, -fixed-iterations

Examples:
  nanitebake build models/bunny.obj models/dragon.obj
  nanitebake -force -cluster-size 64 build models/bunny.obj
  nanitebake info nanite_cache/bunny
  nanitebake demo -instances 4`)
}
