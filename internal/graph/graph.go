// Package graph provides the weighted adjacency graph used to cluster triangles and
// group clusters, its compressed (CSR) export, balanced k-way partitioning and coloring.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Graph errors.
var (
	ErrVertexOutOfRange = errors.New("graph vertex out of range")
	ErrMalformedCSR     = errors.New("malformed CSR graph")
)

// Edge is one outgoing edge in a sorted neighbor listing.
type Edge struct {
	To   int
	Cost int
}

// Graph is an adjacency-list graph with integer edge costs.
// Symmetry is not enforced: callers add both directions.
type Graph struct {
	adj []map[int]int
}

// New creates a graph with n isolated vertices.
func New(n int) *Graph {
	g := &Graph{}
	g.Resize(n)
	return g
}

// NumVertices returns the vertex count.
func (g *Graph) NumVertices() int {
	return len(g.adj)
}

// Resize grows the graph to n vertices; new vertices are isolated.
// Shrinking is not supported and is a no-op.
func (g *Graph) Resize(n int) {
	for len(g.adj) < n {
		g.adj = append(g.adj, nil)
	}
}

// AddEdge sets the cost of the directed edge from -> to, replacing any previous cost.
func (g *Graph) AddEdge(from, to, cost int) {
	if from == to {
		return
	}
	g.bucket(from)[to] = cost
}

// AccumulateEdge adds cost to the directed edge from -> to, creating it if absent.
// Parallel edges collapse into one edge whose cost is the sum.
func (g *Graph) AccumulateEdge(from, to, cost int) {
	if from == to {
		return
	}
	g.bucket(from)[to] += cost
}

func (g *Graph) bucket(v int) map[int]int {
	if g.adj[v] == nil {
		g.adj[v] = make(map[int]int)
	}
	return g.adj[v]
}

// Cost returns the cost of from -> to and whether the edge exists.
func (g *Graph) Cost(from, to int) (int, bool) {
	c, ok := g.adj[from][to]
	return c, ok
}

// Degree returns the number of distinct neighbors of v.
func (g *Graph) Degree(v int) int {
	return len(g.adj[v])
}

// Neighbors returns v's outgoing edges ordered by neighbor id.
func (g *Graph) Neighbors(v int) []Edge {
	edges := make([]Edge, 0, len(g.adj[v]))
	for to, cost := range g.adj[v] {
		edges = append(edges, Edge{To: to, Cost: cost})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
	return edges
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, m := range g.adj {
		n += len(m)
	}
	return n
}

// CSR is the compressed form handed to a Partitioner: the neighbors of vertex v are
// Adjacency[Offsets[v]:Offsets[v+1]] with matching Weights. Every vertex has unit weight.
type CSR struct {
	Offsets   []int32
	Adjacency []int32
	Weights   []int32
}

// NumVertices returns the vertex count of the compressed graph.
func (c *CSR) NumVertices() int {
	if len(c.Offsets) == 0 {
		return 0
	}
	return len(c.Offsets) - 1
}

// Neighbors returns the neighbor ids and weights of v.
func (c *CSR) Neighbors(v int) ([]int32, []int32) {
	lo, hi := c.Offsets[v], c.Offsets[v+1]
	return c.Adjacency[lo:hi], c.Weights[lo:hi]
}

// Validate checks offsets are monotone and every neighbor index is in range.
func (c *CSR) Validate() error {
	n := c.NumVertices()
	if len(c.Adjacency) != len(c.Weights) {
		return fmt.Errorf("%w: %d neighbors but %d weights", ErrMalformedCSR, len(c.Adjacency), len(c.Weights))
	}
	if n > 0 && (c.Offsets[0] != 0 || int(c.Offsets[n]) != len(c.Adjacency)) {
		return fmt.Errorf("%w: offsets do not span adjacency", ErrMalformedCSR)
	}
	for v := 0; v < n; v++ {
		if c.Offsets[v] > c.Offsets[v+1] {
			return fmt.Errorf("%w: offsets decrease at vertex %d", ErrMalformedCSR, v)
		}
	}
	for _, to := range c.Adjacency {
		if to < 0 || int(to) >= n {
			return fmt.Errorf("%w: neighbor %d: %w", ErrMalformedCSR, to, ErrVertexOutOfRange)
		}
	}
	return nil
}

// CSR exports the graph in compressed form with neighbors sorted by id, so the
// export is identical across runs regardless of map iteration order.
func (g *Graph) CSR() *CSR {
	n := len(g.adj)
	c := &CSR{
		Offsets:   make([]int32, n+1),
		Adjacency: make([]int32, 0, g.EdgeCount()),
		Weights:   make([]int32, 0, g.EdgeCount()),
	}
	for v := 0; v < n; v++ {
		for _, e := range g.Neighbors(v) {
			c.Adjacency = append(c.Adjacency, int32(e.To))
			c.Weights = append(c.Weights, int32(e.Cost))
		}
		c.Offsets[v+1] = int32(len(c.Adjacency))
	}
	return c
}
