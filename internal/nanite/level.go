package nanite

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/nanite-lod/internal/graph"
	"github.com/Faultbox/nanite-lod/internal/logger"
	"github.com/Faultbox/nanite-lod/internal/mesh"
	"github.com/Faultbox/nanite-lod/internal/simplify"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

// Level is one LOD snapshot: the geometry, its clusters and cluster-groups.
// A level is never modified once the next coarser level has been built from it,
// except for the parent error fields of its clusters.
type Level struct {
	Index    int
	Geometry *mesh.Mesh

	ClusterNum                        int
	TriangleClusterIndex              []int // Face -> cluster
	TriangleIndicesSortedByClusterIdx []int // Faces stably sorted by cluster
	Clusters                          []Cluster

	ClusterGroupNum   int
	ClusterGroupIndex []int // Cluster -> group
	ClusterGroups     []ClusterGroup

	ClusterColorAssignment []int
	ColorCount             int

	topology     *mesh.Topology
	clusterGraph *graph.Graph
}

// NewLevel wraps geometry as LOD level index.
func NewLevel(index int, geometry *mesh.Mesh) *Level {
	return &Level{
		Index:    index,
		Geometry: geometry,
		topology: mesh.BuildTopology(geometry),
	}
}

// Topology returns the level's edge topology.
func (l *Level) Topology() *mesh.Topology {
	return l.topology
}

// BuildTriangleGraph links triangles that share an interior edge with unit cost in
// both directions. With a non-nil region list only triangles of the same region are
// linked and the graph of each region uses local (region order) vertex ids.
func (l *Level) BuildTriangleGraph(regions []int, regionCount int) ([]*graph.Graph, [][]int) {
	if regions == nil {
		regions = make([]int, l.Geometry.NumFaces())
		regionCount = 1
	}

	members := make([][]int, regionCount)
	local := make([]int, len(regions))
	for f, r := range regions {
		local[f] = len(members[r])
		members[r] = append(members[r], f)
	}
	graphs := make([]*graph.Graph, regionCount)
	for r := range graphs {
		graphs[r] = graph.New(len(members[r]))
	}

	for _, e := range l.topology.Edges {
		a, b := e.Faces[0], e.Faces[1]
		if b < 0 || e.NonManifold || regions[a] != regions[b] {
			continue
		}
		g := graphs[regions[a]]
		g.AddEdge(local[a], local[b], 1)
		g.AddEdge(local[b], local[a], 1)
	}
	return graphs, members
}

// GenerateClusters partitions the triangles into clusters of about clusterSize.
// Level 0 partitions the whole triangle graph. Later levels pass the source group
// of each face as regions, so every cluster is carved from exactly one group.
func (l *Level) GenerateClusters(p graph.Partitioner, clusterSize int, seed uint64, regions []int, regionCount int) error {
	faces := l.Geometry.NumFaces()
	if faces == 0 {
		return ErrEmptyMesh
	}

	graphs, members := l.BuildTriangleGraph(regions, regionCount)
	l.TriangleClusterIndex = make([]int, faces)
	clusterSource := make([]int, 0, faces/clusterSize+len(graphs))

	for r, g := range graphs {
		if len(members[r]) == 0 {
			continue
		}
		parts := len(members[r]) / clusterSize
		if regions != nil && parts < 1 {
			parts = 1
		}
		res, err := graph.PartitionBalanced(g, p, parts, clusterSize, seed)
		if err != nil {
			return fmt.Errorf("level %d clusters of region %d: %w", l.Index, r, err)
		}
		base := len(clusterSource)
		for i, f := range members[r] {
			l.TriangleClusterIndex[f] = base + res.Assignment[i]
		}
		source := -1
		if regions != nil {
			source = r
		}
		for i := 0; i < res.Parts; i++ {
			clusterSource = append(clusterSource, source)
		}
	}
	l.ClusterNum = len(clusterSource)

	order := l.sortByCluster()

	l.Clusters = make([]Cluster, l.ClusterNum)
	for i := range l.Clusters {
		l.Clusters[i] = Cluster{LodLevel: l.Index, SourceGroup: clusterSource[i], Bounds: math.EmptyAABB()}
	}
	start := 0
	for start < faces {
		c := l.TriangleClusterIndex[order[start]]
		end := start
		for end < faces && l.TriangleClusterIndex[order[end]] == c {
			end++
		}
		l.finishCluster(&l.Clusters[c], start, end)
		start = end
	}

	logger.Named("nanite").Debug("clusters generated",
		zap.Int("level", l.Index),
		zap.Int("faces", faces),
		zap.Int("clusters", l.ClusterNum))
	return nil
}

// sortByCluster stably sorts face ids by cluster id into
// TriangleIndicesSortedByClusterIdx, which makes every cluster's faces contiguous.
func (l *Level) sortByCluster() []int {
	order := make([]int, l.Geometry.NumFaces())
	for f := range order {
		order[f] = f
	}
	sort.SliceStable(order, func(i, j int) bool {
		return l.TriangleClusterIndex[order[i]] < l.TriangleClusterIndex[order[j]]
	})
	l.TriangleIndicesSortedByClusterIdx = order
	return order
}

func (l *Level) finishCluster(c *Cluster, start, end int) {
	c.TriangleRangeStart = start
	c.TriangleRangeEnd = end

	identity := math.Identity()
	var points []math.Vec3
	for _, f := range l.TriangleIndicesSortedByClusterIdx[start:end] {
		c.Bounds = c.Bounds.Union(l.Geometry.FaceBounds(f, identity))
		c.SurfaceArea += l.Geometry.FaceArea(f)
		a, b, d := l.Geometry.FaceCorners(f)
		points = append(points, a, b, d)
	}
	c.BoundingSphere = math.BoundingSphere(points)
}

// Restore rebuilds the derived state of a level whose geometry and cluster records
// were loaded from storage: topology, the cluster-sorted triangle order and the
// cluster graph. Stored ranges must match the rebuilt order.
func (l *Level) Restore() error {
	faces := l.Geometry.NumFaces()
	if len(l.TriangleClusterIndex) != faces {
		return fmt.Errorf("%w: %d cluster ids for %d faces", ErrInconsistentLevel, len(l.TriangleClusterIndex), faces)
	}
	if len(l.Clusters) != l.ClusterNum || len(l.ClusterGroupIndex) != l.ClusterNum || len(l.ClusterGroups) != l.ClusterGroupNum {
		return fmt.Errorf("%w: cluster or group counts disagree", ErrInconsistentLevel)
	}
	for f, c := range l.TriangleClusterIndex {
		if c < 0 || c >= l.ClusterNum {
			return fmt.Errorf("%w: face %d in cluster %d of %d", ErrInconsistentLevel, f, c, l.ClusterNum)
		}
	}
	for c, g := range l.ClusterGroupIndex {
		if g < 0 || g >= l.ClusterGroupNum {
			return fmt.Errorf("%w: cluster %d in group %d of %d", ErrInconsistentLevel, c, g, l.ClusterGroupNum)
		}
	}

	for g := range l.ClusterGroups {
		for _, c := range l.ClusterGroups[g].ClusterIndices {
			if c < 0 || c >= l.ClusterNum || l.ClusterGroupIndex[c] != g {
				return fmt.Errorf("%w: group %d lists cluster %d", ErrInconsistentLevel, g, c)
			}
		}
	}

	l.topology = mesh.BuildTopology(l.Geometry)
	l.sortByCluster()

	for c := range l.Clusters {
		cl := &l.Clusters[c]
		if cl.TriangleRangeStart < 0 || cl.TriangleRangeEnd > faces || cl.TriangleRangeStart > cl.TriangleRangeEnd {
			return fmt.Errorf("%w: cluster %d range [%d, %d)", ErrInconsistentLevel, c, cl.TriangleRangeStart, cl.TriangleRangeEnd)
		}
		for _, f := range l.ClusterFaces(c) {
			if l.TriangleClusterIndex[f] != c {
				return fmt.Errorf("%w: cluster %d range holds face %d", ErrInconsistentLevel, c, f)
			}
		}
	}
	l.BuildClusterGraph()
	return nil
}

// ClusterFaces returns the faces of cluster c in sorted order.
func (l *Level) ClusterFaces(c int) []int {
	cl := &l.Clusters[c]
	return l.TriangleIndicesSortedByClusterIdx[cl.TriangleRangeStart:cl.TriangleRangeEnd]
}

// BuildClusterGraph links clusters that share mesh edges. Edge cost is the number
// of shared edges.
func (l *Level) BuildClusterGraph() *graph.Graph {
	g := graph.New(l.ClusterNum)
	for _, e := range l.topology.Edges {
		a, b := e.Faces[0], e.Faces[1]
		if b < 0 || e.NonManifold {
			continue
		}
		ca, cb := l.TriangleClusterIndex[a], l.TriangleClusterIndex[b]
		if ca == cb {
			continue
		}
		g.AccumulateEdge(ca, cb, 1)
		g.AccumulateEdge(cb, ca, 1)
	}
	l.clusterGraph = g
	return g
}

// ColorClusters assigns a proper greedy coloring of the cluster adjacency graph.
func (l *Level) ColorClusters() {
	if l.clusterGraph == nil {
		l.BuildClusterGraph()
	}
	l.ClusterColorAssignment, l.ColorCount = graph.GreedyColoring(l.clusterGraph)
}

// GenerateClusterGroups partitions the cluster graph into groups of about groupSize
// clusters and collects each group's boundary vertices.
func (l *Level) GenerateClusterGroups(p graph.Partitioner, groupSize int, seed uint64) error {
	if l.clusterGraph == nil {
		l.BuildClusterGraph()
	}
	res, err := graph.PartitionBalanced(l.clusterGraph, p, l.ClusterNum/groupSize, groupSize, seed)
	if err != nil {
		return fmt.Errorf("level %d groups: %w", l.Index, err)
	}
	l.ClusterGroupIndex = res.Assignment
	l.ClusterGroupNum = res.Parts

	l.ClusterGroups = make([]ClusterGroup, l.ClusterGroupNum)
	for g := range l.ClusterGroups {
		l.ClusterGroups[g].Bounds = math.EmptyAABB()
	}
	for c, g := range l.ClusterGroupIndex {
		grp := &l.ClusterGroups[g]
		grp.ClusterIndices = append(grp.ClusterIndices, c)
		grp.Bounds = grp.Bounds.Union(l.Clusters[c].Bounds)
	}

	boundary := make([]map[int]bool, l.ClusterGroupNum)
	for g := range boundary {
		boundary[g] = make(map[int]bool)
	}
	mark := func(g int, e mesh.Edge) {
		boundary[g][e.Vertices[0]] = true
		boundary[g][e.Vertices[1]] = true
	}
	for _, e := range l.topology.Edges {
		ga := l.FaceGroup(e.Faces[0])
		if e.IsBoundary() {
			mark(ga, e)
			if e.Faces[1] >= 0 {
				mark(l.FaceGroup(e.Faces[1]), e)
			}
			continue
		}
		if gb := l.FaceGroup(e.Faces[1]); ga != gb {
			mark(ga, e)
			mark(gb, e)
		}
	}
	for g, set := range boundary {
		ids := make([]int, 0, len(set))
		for v := range set {
			ids = append(ids, v)
		}
		sort.Ints(ids)
		l.ClusterGroups[g].BoundaryIndices = ids
	}

	logger.Named("nanite").Debug("cluster groups generated",
		zap.Int("level", l.Index),
		zap.Int("clusters", l.ClusterNum),
		zap.Int("groups", l.ClusterGroupNum))
	return nil
}

// FaceGroup returns the cluster-group owning face f.
func (l *Level) FaceGroup(f int) int {
	return l.ClusterGroupIndex[l.TriangleClusterIndex[f]]
}

// FaceGroups returns the owning group of every face.
func (l *Level) FaceGroups() []int {
	out := make([]int, l.Geometry.NumFaces())
	for f := range out {
		out[f] = l.FaceGroup(f)
	}
	return out
}

// LockedVertices marks true mesh boundary vertices and every group boundary vertex.
func (l *Level) LockedVertices() []bool {
	locked := make([]bool, l.Geometry.NumVertices())
	for v := range locked {
		locked[v] = l.topology.IsBoundaryVertex(v)
	}
	for _, g := range l.ClusterGroups {
		for _, v := range g.BoundaryIndices {
			locked[v] = true
		}
	}
	return locked
}

// Simplify reduces the level to ratio of its faces with group boundaries locked.
// Collapse costs accumulate per group; surviving faces keep their group.
func (l *Level) Simplify(ratio float32) (*simplify.Result, error) {
	res, err := simplify.Simplify(l.Geometry, simplify.Options{
		TargetFaces: int(ratio * float32(l.Geometry.NumFaces())),
		Locked:      l.LockedVertices(),
		FaceGroups:  l.FaceGroups(),
		GroupCount:  l.ClusterGroupNum,
	})
	if err != nil {
		return nil, fmt.Errorf("level %d simplify: %w", l.Index, err)
	}
	return res, nil
}

// SurfaceArea returns the summed area of the level's clusters.
func (l *Level) SurfaceArea() float32 {
	var total float32
	for i := range l.Clusters {
		total += l.Clusters[i].SurfaceArea
	}
	return total
}
