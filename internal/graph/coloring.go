package graph

import (
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/coloring"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
)

var _ gonum.Undirected = undirected{}

// undirected presents a symmetric Graph to gonum. Node listings are ordered by id,
// so degree ties are visited in the same order on every run.
type undirected struct {
	g *Graph
}

func (u undirected) has(id int64) bool {
	return id >= 0 && id < int64(len(u.g.adj))
}

func (u undirected) Node(id int64) gonum.Node {
	if !u.has(id) {
		return nil
	}
	return simple.Node(id)
}

func (u undirected) Nodes() gonum.Nodes {
	if len(u.g.adj) == 0 {
		return gonum.Empty
	}
	nodes := make([]gonum.Node, len(u.g.adj))
	for i := range nodes {
		nodes[i] = simple.Node(i)
	}
	return iterator.NewOrderedNodes(nodes)
}

func (u undirected) From(id int64) gonum.Nodes {
	if !u.has(id) || len(u.g.adj[id]) == 0 {
		return gonum.Empty
	}
	edges := u.g.Neighbors(int(id))
	nodes := make([]gonum.Node, len(edges))
	for i, e := range edges {
		nodes[i] = simple.Node(e.To)
	}
	return iterator.NewOrderedNodes(nodes)
}

func (u undirected) HasEdgeBetween(xid, yid int64) bool {
	return u.EdgeBetween(xid, yid) != nil || u.EdgeBetween(yid, xid) != nil
}

func (u undirected) Edge(uid, vid int64) gonum.Edge {
	return u.EdgeBetween(uid, vid)
}

func (u undirected) EdgeBetween(xid, yid int64) gonum.Edge {
	if !u.has(xid) || !u.has(yid) {
		return nil
	}
	cost, ok := u.g.Cost(int(xid), int(yid))
	if !ok {
		return nil
	}
	return simple.WeightedEdge{F: simple.Node(xid), T: simple.Node(yid), W: float64(cost)}
}

// GreedyColoring colors g with the Welsh-Powell heuristic: vertices are visited by
// decreasing degree and take the smallest color unused by colored neighbors.
// The graph must be symmetric. Returns the color per vertex and the number of
// colors used.
func GreedyColoring(g *Graph) ([]int, int) {
	// Only an invalid partial coloring makes WelshPowell fail.
	k, byID, _ := coloring.WelshPowell(undirected{g: g}, nil)

	colors := make([]int, g.NumVertices())
	for id, c := range byID {
		colors[id] = c
	}
	return colors, k
}

// ValidColoring reports whether no edge joins two vertices of the same color.
func ValidColoring(g *Graph, colors []int) bool {
	for v := 0; v < g.NumVertices(); v++ {
		for u := range g.adj[v] {
			if colors[u] == colors[v] {
				return false
			}
		}
	}
	return true
}
