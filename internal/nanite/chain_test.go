package nanite

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/internal/mesh"
)

func buildChain(t *testing.T, m *mesh.Mesh, cfg config.BuildConfig) *Chain {
	t.Helper()
	chain, err := NewBuilder(cfg).Build("test", m)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return chain
}

func TestTenThousandTriangleSphere(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size chain build")
	}
	cfg := config.Default().Build
	sphere := mesh.UVSphere(100, 51, 1)
	if sphere.NumFaces() != 10000 {
		t.Fatalf("UVSphere faces = %d, want 10000", sphere.NumFaces())
	}

	chain := buildChain(t, sphere, cfg)
	l0 := chain.Levels[0]

	if l0.ClusterNum < 170 || l0.ClusterNum > 178 {
		t.Errorf("level 0 ClusterNum = %d, want about 178", l0.ClusterNum)
	}
	if l0.ClusterGroupNum < 8 || l0.ClusterGroupNum > 12 {
		t.Errorf("level 0 ClusterGroupNum = %d, want about 11", l0.ClusterGroupNum)
	}
	for c := range l0.Clusters {
		cl := &l0.Clusters[c]
		if cl.TriangleRangeStart < 0 || cl.TriangleRangeEnd > 10000 {
			t.Fatalf("cluster %d range [%d, %d) outside [0, 10000)", c, cl.TriangleRangeStart, cl.TriangleRangeEnd)
		}
	}

	if len(chain.Levels) < 2 {
		t.Fatalf("chain has %d levels, want at least 2", len(chain.Levels))
	}
	l1 := chain.Levels[1]
	if got := l1.Geometry.NumFaces(); got > 3500 || got < 1000 {
		t.Errorf("level 1 faces = %d, want about 2000", got)
	}
	for _, l := range chain.Levels {
		checkClusterRanges(t, l)
	}
}

func TestSimplifyKeepsGroupBoundaries(t *testing.T) {
	l := buildLevel(t, mesh.UVSphere(48, 25, 1), config.Default().Build)
	locked := l.LockedVertices()

	res, err := l.Simplify(0.2)
	if err != nil {
		t.Fatalf("Simplify() error = %v", err)
	}
	if res.Mesh.NumFaces() >= l.Geometry.NumFaces() {
		t.Fatalf("Simplify() faces = %d, want fewer than %d", res.Mesh.NumFaces(), l.Geometry.NumFaces())
	}

	moved := 0
	for v, isLocked := range locked {
		if !isLocked {
			continue
		}
		nv := res.Remap[v]
		if nv < 0 || res.Mesh.Positions[nv] != l.Geometry.Positions[v] {
			moved++
		}
	}
	if moved != 0 {
		t.Errorf("%d locked vertices moved or vanished", moved)
	}
}

func TestChainErrorPropagation(t *testing.T) {
	chain := buildChain(t, mesh.UVSphere(24, 13, 1), testConfig())

	if len(chain.Levels) < 2 {
		t.Fatalf("chain has %d levels, want at least 2", len(chain.Levels))
	}
	for li := 0; li+1 < len(chain.Levels); li++ {
		fine, coarse := chain.Levels[li], chain.Levels[li+1]

		for i := range coarse.Clusters {
			cc := &coarse.Clusters[i]
			if cc.SourceGroup < 0 || cc.SourceGroup >= fine.ClusterGroupNum {
				t.Fatalf("level %d cluster %d: SourceGroup = %d", li+1, i, cc.SourceGroup)
			}
			for _, c := range fine.ClusterGroups[cc.SourceGroup].ClusterIndices {
				fc := &fine.Clusters[c]
				if cc.LodError < fc.LodError {
					t.Errorf("level %d cluster %d: LodError %v below child %v", li+1, i, cc.LodError, fc.LodError)
				}
				if fc.ParentError != cc.LodError {
					t.Errorf("level %d cluster %d: ParentError %v, want %v", li, c, fc.ParentError, cc.LodError)
				}
			}
		}
		for c := range fine.Clusters {
			fc := &fine.Clusters[c]
			if fc.ParentSurfaceArea <= 0 {
				t.Errorf("level %d cluster %d: ParentSurfaceArea = %v", li, c, fc.ParentSurfaceArea)
			}
			if want := fc.ParentError / fc.ParentSurfaceArea; math32.Abs(fc.NormalizedParentError-want) > 1e-5*(1+want) {
				t.Errorf("level %d cluster %d: NormalizedParentError = %v, want %v", li, c, fc.NormalizedParentError, want)
			}
		}
	}

	for i := range chain.Levels[0].Clusters {
		if e := chain.Levels[0].Clusters[i].LodError; e != 0 {
			t.Errorf("level 0 cluster %d: LodError = %v, want 0", i, e)
		}
	}
	coarsest := chain.Coarsest()
	for i := range coarsest.Clusters {
		c := &coarsest.Clusters[i]
		if c.ParentError != math32.MaxFloat32 || c.NormalizedParentError != math32.MaxFloat32 {
			t.Errorf("coarsest cluster %d: parent error %v / %v, want MaxFloat32", i, c.ParentError, c.NormalizedParentError)
		}
		if c.ParentSurfaceArea != c.SurfaceArea {
			t.Errorf("coarsest cluster %d: ParentSurfaceArea = %v, want %v", i, c.ParentSurfaceArea, c.SurfaceArea)
		}
	}
}

func TestChainTermination(t *testing.T) {
	tests := []struct {
		name  string
		setup func(cfg *config.BuildConfig)
		check func(t *testing.T, c *Chain)
	}{
		{
			name:  "predicate",
			setup: func(cfg *config.BuildConfig) {},
			check: func(t *testing.T, c *Chain) {
				if len(c.Levels) < 2 || len(c.Levels) > 16 {
					t.Errorf("levels = %d, want 2..16", len(c.Levels))
				}
				for i := 1; i < len(c.Levels); i++ {
					if c.Levels[i].Geometry.NumFaces() >= c.Levels[i-1].Geometry.NumFaces() {
						t.Errorf("level %d did not reduce faces", i)
					}
				}
			},
		},
		{
			name:  "max levels",
			setup: func(cfg *config.BuildConfig) { cfg.MaxLevels = 2 },
			check: func(t *testing.T, c *Chain) {
				if len(c.Levels) != 2 {
					t.Errorf("levels = %d, want 2", len(c.Levels))
				}
			},
		},
		{
			name:  "fixed iterations",
			setup: func(cfg *config.BuildConfig) { cfg.FixedIterations = 4 },
			check: func(t *testing.T, c *Chain) {
				if len(c.Levels) != 5 {
					t.Errorf("levels = %d, want 5", len(c.Levels))
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.setup(&cfg)
			tt.check(t, buildChain(t, mesh.UVSphere(24, 13, 1), cfg))
		})
	}
}

func TestTerminators(t *testing.T) {
	def := DefaultTerminator(4)
	tests := []struct {
		name  string
		stats LevelStats
		want  bool
	}{
		{"keep going", LevelStats{Level: 0, Groups: 5, Faces: 100, SimplifiedFaces: 20}, false},
		{"single group", LevelStats{Level: 0, Groups: 1, Faces: 100, SimplifiedFaces: 100}, true},
		{"stalled", LevelStats{Level: 1, Groups: 3, Faces: 100, SimplifiedFaces: 100}, true},
		{"max levels", LevelStats{Level: 3, Groups: 3, Faces: 100, SimplifiedFaces: 20}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := def(tt.stats); got != tt.want {
				t.Errorf("DefaultTerminator(4)(%+v) = %v, want %v", tt.stats, got, tt.want)
			}
		})
	}

	fixed := FixedIterations(2)
	if fixed(LevelStats{Level: 1, Groups: 1}) {
		t.Error("FixedIterations(2) stopped at level 1")
	}
	if !fixed(LevelStats{Level: 2, Groups: 9, Faces: 10, SimplifiedFaces: 2}) {
		t.Error("FixedIterations(2) did not stop at level 2")
	}
}

func TestChainDeterministic(t *testing.T) {
	a := buildChain(t, mesh.UVSphere(24, 13, 1), testConfig())
	b := buildChain(t, mesh.UVSphere(24, 13, 1), testConfig())

	if len(a.Levels) != len(b.Levels) {
		t.Fatalf("level counts differ: %d vs %d", len(a.Levels), len(b.Levels))
	}
	for li := range a.Levels {
		la, lb := a.Levels[li], b.Levels[li]
		if la.Geometry.NumFaces() != lb.Geometry.NumFaces() {
			t.Fatalf("level %d faces differ", li)
		}
		for f := range la.TriangleClusterIndex {
			if la.TriangleClusterIndex[f] != lb.TriangleClusterIndex[f] {
				t.Fatalf("level %d face %d: cluster %d vs %d", li, f, la.TriangleClusterIndex[f], lb.TriangleClusterIndex[f])
			}
		}
		for c := range la.ClusterGroupIndex {
			if la.ClusterGroupIndex[c] != lb.ClusterGroupIndex[c] {
				t.Fatalf("level %d cluster %d: group %d vs %d", li, c, la.ClusterGroupIndex[c], lb.ClusterGroupIndex[c])
			}
			if la.ClusterColorAssignment[c] != lb.ClusterColorAssignment[c] {
				t.Fatalf("level %d cluster %d: color %d vs %d", li, c, la.ClusterColorAssignment[c], lb.ClusterColorAssignment[c])
			}
		}
	}
}

func TestBuildRejectsEmptyMesh(t *testing.T) {
	if _, err := NewBuilder(testConfig()).Build("empty", &mesh.Mesh{}); err == nil {
		t.Error("Build() of an empty mesh succeeded")
	}
}

func TestBuildChainsParallel(t *testing.T) {
	b := NewBuilder(testConfig())
	sources := []Source{
		{Name: "a", Mesh: mesh.UVSphere(24, 13, 1)},
		{Name: "b", Mesh: mesh.Grid(12, 12, 0.5)},
		{Name: "c", Mesh: mesh.UVSphere(16, 9, 3)},
	}

	chains, err := b.BuildChains(sources, 2)
	if err != nil {
		t.Fatalf("BuildChains() error = %v", err)
	}
	for i, src := range sources {
		want, err := b.Build(src.Name, src.Mesh)
		if err != nil {
			t.Fatalf("Build(%s) error = %v", src.Name, err)
		}
		got := chains[i]
		if got.Name != src.Name || len(got.Levels) != len(want.Levels) || got.ClusterCount() != want.ClusterCount() {
			t.Errorf("chain %s: %d levels %d clusters, want %d levels %d clusters",
				src.Name, len(got.Levels), got.ClusterCount(), len(want.Levels), want.ClusterCount())
		}
	}

	sources = append(sources, Source{Name: "broken", Mesh: &mesh.Mesh{}})
	if _, err := b.BuildChains(sources, 0); err == nil {
		t.Error("BuildChains() with an empty mesh succeeded")
	}
}
