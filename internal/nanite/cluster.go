// Package nanite builds clustered LOD chains, their bounding-volume hierarchy and the
// flat render-facing buffers of a scene of instances.
package nanite

import (
	"errors"
	"sort"

	"github.com/Faultbox/nanite-lod/pkg/math"
)

// Pipeline invariant violations. The hierarchy and scene buffers are unusable once
// any of these is returned.
var (
	ErrFanOutExceeded = errors.New("hierarchy node has more than 4 children")
	ErrLeafOverflow   = errors.New("hierarchy leaf holds too many clusters")
	ErrEmptyMesh      = errors.New("mesh has no faces")
	ErrNoLevels       = errors.New("chain has no levels")

	ErrInconsistentLevel = errors.New("level records are inconsistent")
)

// MaxChildren is the fan-out limit of every emitted hierarchy node.
const MaxChildren = 4

// Cluster is a contiguous run of a level's cluster-sorted triangles.
type Cluster struct {
	TriangleRangeStart int // Into Level.TriangleIndicesSortedByClusterIdx
	TriangleRangeEnd   int // Exclusive
	Bounds             math.AABB
	BoundingSphere     math.Sphere

	LodError          float32 // Error of the simplification that produced this cluster
	ParentError       float32 // LodError of the coarser clusters replacing this one
	SurfaceArea       float32
	ParentSurfaceArea float32

	NormalizedLodError    float32 // LodError / SurfaceArea
	NormalizedParentError float32 // ParentError / ParentSurfaceArea

	LodLevel    int
	SourceGroup int // Group of the finer level this cluster was carved from; -1 on level 0
}

// TriangleCount returns the number of triangles in the cluster.
func (c *Cluster) TriangleCount() int {
	return c.TriangleRangeEnd - c.TriangleRangeStart
}

// ClusterGroup is a set of clusters simplified together. Its boundary vertices
// stay locked while the level is simplified.
type ClusterGroup struct {
	ClusterIndices  []int // Ascending, within the level
	BoundaryIndices []int // Ascending vertex ids
	Bounds          math.AABB
}

// HasBoundaryVertex reports whether v is on the group's boundary.
func (g *ClusterGroup) HasBoundaryVertex(v int) bool {
	i := sort.SearchInts(g.BoundaryIndices, v)
	return i < len(g.BoundaryIndices) && g.BoundaryIndices[i] == v
}
