package graph

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/nanite-lod/internal/logger"
)

// ErrPartitionFailed wraps any failure reported by a Partitioner.
var ErrPartitionFailed = errors.New("graph partition failed")

// Partitioner splits a compressed graph into parts of near-equal vertex count while
// minimizing the total weight of cut edges. Implementations must be deterministic for a
// fixed (graph, parts, seed) and return one part index in [0, parts) per vertex.
type Partitioner interface {
	Partition(g *CSR, parts int, seed uint64) ([]int, error)
}

// PartitionFunc adapts a plain function to the Partitioner interface.
type PartitionFunc func(g *CSR, parts int, seed uint64) ([]int, error)

// Partition calls f.
func (f PartitionFunc) Partition(g *CSR, parts int, seed uint64) ([]int, error) {
	return f(g, parts, seed)
}

// Result is the outcome of PartitionBalanced for the real (non-padding) vertices.
type Result struct {
	Assignment []int // Dense part id per vertex
	Parts      int   // Number of non-empty parts
}

// PartitionBalanced partitions g into parts groups of roughly targetSize vertices.
//
// The graph is padded with isolated vertices up to a multiple of targetSize before the
// call, so an uneven vertex count spreads over every part instead of leaving one
// oversized remainder. Padding assignments are dropped afterwards and the surviving part
// ids are renumbered densely in ascending order, so a part that only received padding
// never appears in the result. parts <= 1 skips the partitioner entirely.
func PartitionBalanced(g *Graph, p Partitioner, parts, targetSize int, seed uint64) (Result, error) {
	n := g.NumVertices()
	if n == 0 {
		return Result{}, nil
	}
	if parts <= 1 {
		return Result{Assignment: make([]int, n), Parts: 1}, nil
	}

	padded := n
	if targetSize > 0 && padded%targetSize != 0 {
		padded += targetSize - padded%targetSize
	}
	csr := g.CSR()
	for len(csr.Offsets) < padded+1 {
		csr.Offsets = append(csr.Offsets, csr.Offsets[len(csr.Offsets)-1])
	}

	raw, err := p.Partition(csr, parts, seed)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPartitionFailed, err)
	}
	if len(raw) != padded {
		return Result{}, fmt.Errorf("%w: got %d assignments for %d vertices", ErrPartitionFailed, len(raw), padded)
	}

	used := make([]bool, parts)
	for v := 0; v < n; v++ {
		if raw[v] < 0 || raw[v] >= parts {
			return Result{}, fmt.Errorf("%w: vertex %d assigned to part %d of %d", ErrPartitionFailed, v, raw[v], parts)
		}
		used[raw[v]] = true
	}
	remap := make([]int, parts)
	dense := 0
	for part, ok := range used {
		if ok {
			remap[part] = dense
			dense++
		}
	}

	assignment := make([]int, n)
	for v := 0; v < n; v++ {
		assignment[v] = remap[raw[v]]
	}

	logger.Named("graph").Debug("partitioned",
		zap.Int("vertices", n),
		zap.Int("padding", padded-n),
		zap.Int("requested", parts),
		zap.Int("parts", dense))

	return Result{Assignment: assignment, Parts: dense}, nil
}

// CutWeight returns the summed cost of edges whose endpoints lie in different parts.
// Each undirected edge stored in both directions is counted twice.
func CutWeight(g *Graph, assignment []int) int {
	cut := 0
	for v := 0; v < g.NumVertices(); v++ {
		for to, cost := range g.adj[v] {
			if assignment[v] != assignment[to] {
				cut += cost
			}
		}
	}
	return cut
}
