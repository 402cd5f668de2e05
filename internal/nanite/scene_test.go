package nanite

import (
	"testing"

	"github.com/Faultbox/nanite-lod/internal/mesh"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

func TestInstanceBuffers(t *testing.T) {
	chain := buildChain(t, mesh.UVSphere(24, 13, 1), testConfig())
	transform := math.TRS(math.Vec3{X: 5, Y: -2}, math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.7), math.Vec3{X: 2, Y: 2, Z: 2})
	inst := NewInstance(chain, transform, 3)

	if len(inst.ClusterInfo) != chain.ClusterCount() {
		t.Fatalf("len(ClusterInfo) = %d, want %d", len(inst.ClusterInfo), chain.ClusterCount())
	}
	faces, verts := 0, 0
	for _, l := range chain.Levels {
		faces += l.Geometry.NumFaces()
		verts += l.Geometry.NumVertices()
	}
	if inst.IndexCount() != faces || len(inst.Vertices) != verts {
		t.Fatalf("buffers hold %d triangles %d vertices, want %d %d", inst.IndexCount(), len(inst.Vertices), faces, verts)
	}

	next := uint32(0)
	for c, info := range inst.ClusterInfo {
		if info.TriangleRangeStart != next || info.TriangleRangeEnd <= info.TriangleRangeStart {
			t.Fatalf("cluster %d: range [%d, %d), want start %d", c, info.TriangleRangeStart, info.TriangleRangeEnd, next)
		}
		next = info.TriangleRangeEnd
		if info.ObjectIndex != 3 {
			t.Errorf("cluster %d: ObjectIndex = %d, want 3", c, info.ObjectIndex)
		}

		bounds := math.AABB{Min: info.BBoxMin, Max: info.BBoxMax}
		for _, tri := range inst.Indices[info.TriangleRangeStart:info.TriangleRangeEnd] {
			for _, v := range tri {
				p := transform.TransformPoint(inst.Vertices[v].Position)
				if !bounds.Contains(p, 1e-4) {
					t.Fatalf("cluster %d: world bounds %v miss %v", c, bounds, p)
				}
				if d := info.SphereCenter.Distance(p); d > info.SphereRadius+1e-3 {
					t.Fatalf("cluster %d: %v is %v from the world sphere center, radius %v", c, p, d, info.SphereRadius)
				}
			}
		}
	}
	if int(next) != inst.IndexCount() {
		t.Errorf("cluster ranges end at %d, want %d", next, inst.IndexCount())
	}

	box := inst.Bounds()
	finest := chain.Levels[0].Geometry
	for _, face := range finest.Faces {
		for _, v := range face {
			if w := transform.TransformPoint(finest.Positions[v]); !box.Contains(w, 1e-4) {
				t.Fatalf("instance bounds %v miss finest-level vertex %v", box, w)
			}
		}
	}
}

func TestTwoInstancesOffsetRanges(t *testing.T) {
	chain := buildChain(t, mesh.UVSphere(24, 13, 1), testConfig())
	scene := NewScene(testConfig().MaxClustersPerLeaf)
	first := scene.AddInstance(chain, math.Identity())
	second := scene.AddInstance(chain, math.Translate(10, 0, 0))
	if err := scene.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	n := len(first.ClusterInfo)
	if len(scene.ClusterInfo) != 2*n {
		t.Fatalf("scene has %d clusters, want %d", len(scene.ClusterInfo), 2*n)
	}
	offset := uint32(first.IndexCount())
	firstEnd := uint32(0)
	for c := 0; c < n; c++ {
		a, b := scene.ClusterInfo[c], scene.ClusterInfo[n+c]
		if b.TriangleRangeStart != a.TriangleRangeStart+offset || b.TriangleRangeEnd != a.TriangleRangeEnd+offset {
			t.Errorf("cluster %d: second range [%d, %d), want first [%d, %d) + %d",
				c, b.TriangleRangeStart, b.TriangleRangeEnd, a.TriangleRangeStart, a.TriangleRangeEnd, offset)
		}
		if a.ObjectIndex != 0 || b.ObjectIndex != 1 {
			t.Errorf("cluster %d: object indices %d %d, want 0 1", c, a.ObjectIndex, b.ObjectIndex)
		}
		if b.BBoxMin.X-a.BBoxMin.X < 10-1e-4 || b.BBoxMin.X-a.BBoxMin.X > 10+1e-4 {
			t.Errorf("cluster %d: second box not shifted by 10: %v vs %v", c, b.BBoxMin, a.BBoxMin)
		}
		firstEnd = max(firstEnd, a.TriangleRangeEnd)
	}
	for c := n; c < 2*n; c++ {
		if scene.ClusterInfo[c].TriangleRangeStart < firstEnd {
			t.Fatalf("cluster %d overlaps the first instance's ranges", c)
		}
	}
	if len(scene.Indices) != first.IndexCount()+second.IndexCount() {
		t.Errorf("scene has %d triangles, want %d", len(scene.Indices), first.IndexCount()+second.IndexCount())
	}
	if got := scene.Indices[offset][0]; got < uint32(len(first.Vertices)) {
		t.Errorf("second instance index %d not offset past %d vertices", got, len(first.Vertices))
	}
}

func TestSceneHierarchy(t *testing.T) {
	chain := buildChain(t, mesh.UVSphere(24, 13, 1), testConfig())
	scene := NewScene(3)
	for i := 0; i < 3; i++ {
		scene.AddInstance(chain, math.Translate(float32(i)*4, 0, 0))
	}
	if err := scene.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	seen := make([]int, len(scene.ClusterInfo))
	for i, n := range scene.Nodes {
		for _, c := range n.Children {
			if c != -1 && (c < 0 || int(c) >= len(scene.Nodes)) {
				t.Fatalf("node %d: dangling child %d", i, c)
			}
		}
		if n.ChildCount() > MaxChildren {
			t.Errorf("node %d: %d children", i, n.ChildCount())
		}
		if n.Status != StatusLeaf {
			continue
		}
		if n.ClusterCount > 3 {
			t.Errorf("leaf %d holds %d clusters, max 3", i, n.ClusterCount)
		}
		bounds := math.AABB{Min: n.BBoxMin, Max: n.BBoxMax}
		for k := 0; k < int(n.ClusterCount); k++ {
			c := n.ClusterIndices[k]
			seen[c]++
			info := scene.ClusterInfo[c]
			if int32(info.ObjectIndex) != n.ObjectID {
				t.Errorf("leaf %d: cluster %d of object %d under object %d", i, c, info.ObjectIndex, n.ObjectID)
			}
			if !bounds.Contains(info.BBoxMin, 1e-5) || !bounds.Contains(info.BBoxMax, 1e-5) {
				t.Errorf("leaf %d: bounds %v miss cluster %d", i, bounds, c)
			}
		}
	}
	for c, n := range seen {
		if n != 1 {
			t.Errorf("cluster %d appears in %d leaves, want 1", c, n)
		}
	}
	for obj := 0; obj < 3; obj++ {
		if scene.Nodes[obj].Depth != 0 || scene.Nodes[obj].ObjectID != int32(obj) {
			t.Errorf("instance root %d: depth %d object %d", obj, scene.Nodes[obj].Depth, scene.Nodes[obj].ObjectID)
		}
	}
}
