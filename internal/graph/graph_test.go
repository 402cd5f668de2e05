package graph

import (
	"errors"
	"testing"
)

// gridGraph builds a w x h 4-connected grid with unit edge costs in both directions.
func gridGraph(w, h int) *Graph {
	g := New(w * h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := y*w + x
			if x+1 < w {
				g.AddEdge(v, v+1, 1)
				g.AddEdge(v+1, v, 1)
			}
			if y+1 < h {
				g.AddEdge(v, v+w, 1)
				g.AddEdge(v+w, v, 1)
			}
		}
	}
	return g
}

func TestAccumulateEdge(t *testing.T) {
	g := New(3)
	g.AccumulateEdge(0, 1, 1)
	g.AccumulateEdge(0, 1, 1)
	g.AccumulateEdge(0, 1, 3)
	g.AccumulateEdge(0, 0, 9) // self loops are ignored

	if got, ok := g.Cost(0, 1); !ok || got != 5 {
		t.Errorf("Cost(0, 1) = %d, %v, want 5, true", got, ok)
	}
	if _, ok := g.Cost(1, 0); ok {
		t.Error("AccumulateEdge must not add the reverse direction")
	}
	if g.Degree(0) != 1 {
		t.Errorf("Degree(0) = %d, want 1", g.Degree(0))
	}

	g.AddEdge(0, 1, 2)
	if got, _ := g.Cost(0, 1); got != 2 {
		t.Errorf("AddEdge should replace the cost, got %d", got)
	}
}

func TestResizeAddsIsolatedVertices(t *testing.T) {
	g := New(2)
	g.AddEdge(0, 1, 1)
	g.Resize(5)
	if g.NumVertices() != 5 {
		t.Fatalf("NumVertices() = %d, want 5", g.NumVertices())
	}
	if g.Degree(4) != 0 {
		t.Errorf("padding vertex has degree %d", g.Degree(4))
	}
}

func TestCSRExport(t *testing.T) {
	g := New(3)
	g.AddEdge(0, 2, 7)
	g.AddEdge(0, 1, 4)
	g.AddEdge(2, 0, 7)

	c := g.CSR()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	wantOffsets := []int32{0, 2, 2, 3}
	for i, want := range wantOffsets {
		if c.Offsets[i] != want {
			t.Errorf("Offsets[%d] = %d, want %d", i, c.Offsets[i], want)
		}
	}
	adj, w := c.Neighbors(0)
	if len(adj) != 2 || adj[0] != 1 || adj[1] != 2 || w[0] != 4 || w[1] != 7 {
		t.Errorf("Neighbors(0) = %v %v, want sorted [1 2] [4 7]", adj, w)
	}
}

func TestCSRValidate(t *testing.T) {
	tests := []struct {
		name string
		csr  CSR
	}{
		{"weights mismatch", CSR{Offsets: []int32{0, 1}, Adjacency: []int32{0}, Weights: nil}},
		{"neighbor out of range", CSR{Offsets: []int32{0, 1}, Adjacency: []int32{3}, Weights: []int32{1}}},
		{"offsets decrease", CSR{Offsets: []int32{0, 2, 1, 2}, Adjacency: []int32{1, 2}, Weights: []int32{1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.csr.Validate(); !errors.Is(err, ErrMalformedCSR) {
				t.Errorf("Validate() = %v, want ErrMalformedCSR", err)
			}
		})
	}
}
