package nanite

import (
	"testing"

	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/internal/graph"
	"github.com/Faultbox/nanite-lod/internal/mesh"
)

// testConfig is a small-scale build configuration: 576-face spheres give a
// three-level chain.
func testConfig() config.BuildConfig {
	cfg := config.Default().Build
	cfg.ClusterSize = 16
	cfg.GroupSize = 4
	return cfg
}

func buildLevel(t *testing.T, m *mesh.Mesh, cfg config.BuildConfig) *Level {
	t.Helper()
	p := graph.NewBisection()
	l := NewLevel(0, m)
	if err := l.GenerateClusters(p, cfg.ClusterSize, cfg.Seed, nil, 0); err != nil {
		t.Fatalf("GenerateClusters() error = %v", err)
	}
	l.ColorClusters()
	if err := l.GenerateClusterGroups(p, cfg.GroupSize, cfg.Seed); err != nil {
		t.Fatalf("GenerateClusterGroups() error = %v", err)
	}
	return l
}

// checkClusterRanges verifies the sorted triangle array is a permutation and that
// every cluster range holds exactly that cluster's triangles.
func checkClusterRanges(t *testing.T, l *Level) {
	t.Helper()
	faces := l.Geometry.NumFaces()
	seen := make([]bool, faces)
	for _, f := range l.TriangleIndicesSortedByClusterIdx {
		if f < 0 || f >= faces || seen[f] {
			t.Fatalf("level %d: sorted triangles are not a permutation (face %d)", l.Index, f)
		}
		seen[f] = true
	}
	if len(l.TriangleIndicesSortedByClusterIdx) != faces {
		t.Fatalf("level %d: %d sorted triangles, want %d", l.Index, len(l.TriangleIndicesSortedByClusterIdx), faces)
	}

	covered := 0
	for c := range l.Clusters {
		cl := &l.Clusters[c]
		if cl.TriangleRangeStart < 0 || cl.TriangleRangeEnd > faces || cl.TriangleCount() <= 0 {
			t.Fatalf("level %d cluster %d: bad range [%d, %d)", l.Index, c, cl.TriangleRangeStart, cl.TriangleRangeEnd)
		}
		for _, f := range l.ClusterFaces(c) {
			if l.TriangleClusterIndex[f] != c {
				t.Fatalf("level %d cluster %d: range holds face %d of cluster %d", l.Index, c, f, l.TriangleClusterIndex[f])
			}
		}
		covered += cl.TriangleCount()
	}
	if covered != faces {
		t.Errorf("level %d: clusters cover %d faces, want %d", l.Index, covered, faces)
	}
}

func TestClusterRangesContiguous(t *testing.T) {
	l := buildLevel(t, mesh.UVSphere(24, 13, 1), testConfig())

	if l.ClusterNum != 576/16 {
		t.Errorf("ClusterNum = %d, want %d", l.ClusterNum, 576/16)
	}
	checkClusterRanges(t, l)
}

func TestClusterBoundsContainTriangles(t *testing.T) {
	l := buildLevel(t, mesh.UVSphere(24, 13, 2), testConfig())

	for c := range l.Clusters {
		cl := &l.Clusters[c]
		if cl.Bounds.Min.X > cl.Bounds.Max.X || cl.Bounds.Min.Y > cl.Bounds.Max.Y || cl.Bounds.Min.Z > cl.Bounds.Max.Z {
			t.Fatalf("cluster %d: inverted bounds %v", c, cl.Bounds)
		}
		for _, f := range l.ClusterFaces(c) {
			a, b, d := l.Geometry.FaceCorners(f)
			if !cl.Bounds.Contains(a, 1e-5) || !cl.Bounds.Contains(b, 1e-5) || !cl.Bounds.Contains(d, 1e-5) {
				t.Fatalf("cluster %d bounds %v miss a corner of face %d", c, cl.Bounds, f)
			}
			if cl.BoundingSphere.Center.Distance(a) > cl.BoundingSphere.Radius+1e-4 {
				t.Fatalf("cluster %d sphere misses %v", c, a)
			}
		}
		if cl.SurfaceArea <= 0 {
			t.Errorf("cluster %d: SurfaceArea = %v, want > 0", c, cl.SurfaceArea)
		}
	}
}

func TestClusterGroupMembership(t *testing.T) {
	l := buildLevel(t, mesh.UVSphere(24, 13, 1), testConfig())

	if l.ClusterGroupNum != l.ClusterNum/4 {
		t.Errorf("ClusterGroupNum = %d, want %d", l.ClusterGroupNum, l.ClusterNum/4)
	}
	owners := make([]int, l.ClusterNum)
	for g, grp := range l.ClusterGroups {
		if len(grp.ClusterIndices) == 0 {
			t.Errorf("group %d is empty", g)
		}
		for _, c := range grp.ClusterIndices {
			owners[c]++
			if l.ClusterGroupIndex[c] != g {
				t.Errorf("cluster %d listed in group %d but indexed to %d", c, g, l.ClusterGroupIndex[c])
			}
		}
	}
	for c, n := range owners {
		if n != 1 {
			t.Errorf("cluster %d belongs to %d groups, want 1", c, n)
		}
	}
}

func TestGroupBoundaryVertices(t *testing.T) {
	tests := []struct {
		name string
		m    *mesh.Mesh
	}{
		{"closed sphere", mesh.UVSphere(24, 13, 1)},
		{"open grid", mesh.Grid(16, 12, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := buildLevel(t, tt.m, testConfig())
			topo := l.Topology()

			// Groups whose seam or mesh border edges touch each vertex.
			justified := make(map[int]map[int]bool)
			note := func(g, v int) {
				if justified[g] == nil {
					justified[g] = make(map[int]bool)
				}
				justified[g][v] = true
			}
			for _, e := range topo.Edges {
				ga := l.FaceGroup(e.Faces[0])
				gb := ga
				if e.Faces[1] >= 0 {
					gb = l.FaceGroup(e.Faces[1])
				}
				if e.IsBoundary() || ga != gb {
					for _, v := range e.Vertices {
						note(ga, v)
						note(gb, v)
					}
				}
			}

			for g, grp := range l.ClusterGroups {
				for _, v := range grp.BoundaryIndices {
					if !justified[g][v] {
						t.Errorf("group %d: boundary vertex %d has no border or seam edge", g, v)
					}
				}
				for v := range justified[g] {
					if !grp.HasBoundaryVertex(v) {
						t.Errorf("group %d: seam vertex %d missing from boundary", g, v)
					}
				}
			}

			locked := l.LockedVertices()
			for v := range l.Geometry.Positions {
				if topo.IsBoundaryVertex(v) && !locked[v] {
					t.Errorf("mesh boundary vertex %d not locked", v)
				}
			}
		})
	}
}

func TestClusterColoringValid(t *testing.T) {
	l := buildLevel(t, mesh.UVSphere(24, 13, 1), testConfig())

	if len(l.ClusterColorAssignment) != l.ClusterNum {
		t.Fatalf("len(ClusterColorAssignment) = %d, want %d", len(l.ClusterColorAssignment), l.ClusterNum)
	}
	if !graph.ValidColoring(l.BuildClusterGraph(), l.ClusterColorAssignment) {
		t.Error("adjacent clusters share a color")
	}
	if l.ColorCount < 2 {
		t.Errorf("ColorCount = %d, want >= 2", l.ColorCount)
	}
}

func TestClusterGraphCostsCountSharedEdges(t *testing.T) {
	l := buildLevel(t, mesh.UVSphere(24, 13, 1), testConfig())
	g := l.BuildClusterGraph()

	want := make(map[[2]int]int)
	for _, e := range l.Topology().Edges {
		ca, cb := l.TriangleClusterIndex[e.Faces[0]], l.TriangleClusterIndex[e.Faces[1]]
		if ca != cb {
			want[[2]int{ca, cb}]++
			want[[2]int{cb, ca}]++
		}
	}
	if g.EdgeCount() != len(want) {
		t.Errorf("EdgeCount() = %d, want %d", g.EdgeCount(), len(want))
	}
	for k, cost := range want {
		if got, _ := g.Cost(k[0], k[1]); got != cost {
			t.Errorf("Cost(%d, %d) = %d, want %d", k[0], k[1], got, cost)
		}
	}
}

func TestSmallMeshSkipsPartitioning(t *testing.T) {
	calls := 0
	p := graph.PartitionFunc(func(c *graph.CSR, parts int, seed uint64) ([]int, error) {
		calls++
		return graph.NewBisection().Partition(c, parts, seed)
	})

	l := NewLevel(0, mesh.Grid(2, 2, 1))
	if err := l.GenerateClusters(p, 16, 1, nil, 0); err != nil {
		t.Fatalf("GenerateClusters() error = %v", err)
	}
	if err := l.GenerateClusterGroups(p, 4, 1); err != nil {
		t.Fatalf("GenerateClusterGroups() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("partitioner called %d times, want 0", calls)
	}
	if l.ClusterNum != 1 || l.ClusterGroupNum != 1 {
		t.Errorf("got %d clusters %d groups, want 1 and 1", l.ClusterNum, l.ClusterGroupNum)
	}
}
