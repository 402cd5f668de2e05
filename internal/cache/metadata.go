package cache

import (
	"fmt"

	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/internal/nanite"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

// Metadata is the YAML document stored next to the per-level OBJ files.
// Pointer fields are required; their absence is reported as ErrMissingCacheField.
type Metadata struct {
	LodNums        *int               `yaml:"lodNums"`
	CacheTimestamp *int64             `yaml:"cacheTimestamp"`
	BuildID        string             `yaml:"buildId"`
	SourceHash     string             `yaml:"sourceHash"`
	Name           string             `yaml:"name"`
	Config         config.BuildConfig `yaml:"config"`
	SurfaceArea    float32            `yaml:"surfaceArea"`
	Levels         []LevelMeta        `yaml:"levels"`
	Hierarchy      []NodeMeta         `yaml:"hierarchy"`
}

// LevelMeta holds the cluster and group records of one LOD level.
type LevelMeta struct {
	Index                int           `yaml:"index"`
	Faces                int           `yaml:"faces"`
	Vertices             int           `yaml:"vertices"`
	TriangleClusterIndex []int         `yaml:"triangleClusterIndex,flow"`
	ClusterGroupIndex    []int         `yaml:"clusterGroupIndex,flow"`
	ClusterColors        []int         `yaml:"clusterColors,flow"`
	ColorCount           int           `yaml:"colorCount"`
	Clusters             []ClusterMeta `yaml:"clusters"`
	Groups               []GroupMeta   `yaml:"groups"`
}

// ClusterMeta is the stored form of nanite.Cluster.
type ClusterMeta struct {
	TriangleRange         [2]int     `yaml:"triangleRange,flow"`
	BBoxMin               [3]float32 `yaml:"bboxMin,flow"`
	BBoxMax               [3]float32 `yaml:"bboxMax,flow"`
	SphereCenter          [3]float32 `yaml:"sphereCenter,flow"`
	SphereRadius          float32    `yaml:"sphereRadius"`
	LodError              float32    `yaml:"lodError"`
	ParentError           float32    `yaml:"parentError"`
	SurfaceArea           float32    `yaml:"surfaceArea"`
	ParentSurfaceArea     float32    `yaml:"parentSurfaceArea"`
	NormalizedLodError    float32    `yaml:"normalizedLodError"`
	NormalizedParentError float32    `yaml:"normalizedParentError"`
	SourceGroup           int        `yaml:"sourceGroup"`
}

// GroupMeta is the stored form of nanite.ClusterGroup.
type GroupMeta struct {
	Clusters []int      `yaml:"clusters,flow"`
	Boundary []int      `yaml:"boundary,flow"`
	BBoxMin  [3]float32 `yaml:"bboxMin,flow"`
	BBoxMax  [3]float32 `yaml:"bboxMax,flow"`
}

// NodeMeta is one flattened hierarchy node. Clusters holds only the set payload
// entries.
type NodeMeta struct {
	Index       int32      `yaml:"index"`
	Status      string     `yaml:"status"`
	Depth       int32      `yaml:"depth"`
	ObjectID    int32      `yaml:"objectId"`
	LodError    float32    `yaml:"lodError"`
	ParentError float32    `yaml:"parentError"`
	BBoxMin     [3]float32 `yaml:"bboxMin,flow"`
	BBoxMax     [3]float32 `yaml:"bboxMax,flow"`
	Children    [4]int32   `yaml:"children,flow"`
	Clusters    []int32    `yaml:"clusters,flow"`
}

func newLevelMeta(l *nanite.Level) LevelMeta {
	lm := LevelMeta{
		Index:                l.Index,
		Faces:                l.Geometry.NumFaces(),
		Vertices:             l.Geometry.NumVertices(),
		TriangleClusterIndex: l.TriangleClusterIndex,
		ClusterGroupIndex:    l.ClusterGroupIndex,
		ClusterColors:        l.ClusterColorAssignment,
		ColorCount:           l.ColorCount,
		Clusters:             make([]ClusterMeta, len(l.Clusters)),
		Groups:               make([]GroupMeta, len(l.ClusterGroups)),
	}
	for i := range l.Clusters {
		c := &l.Clusters[i]
		lm.Clusters[i] = ClusterMeta{
			TriangleRange:         [2]int{c.TriangleRangeStart, c.TriangleRangeEnd},
			BBoxMin:               c.Bounds.Min.Array(),
			BBoxMax:               c.Bounds.Max.Array(),
			SphereCenter:          c.BoundingSphere.Center.Array(),
			SphereRadius:          c.BoundingSphere.Radius,
			LodError:              c.LodError,
			ParentError:           c.ParentError,
			SurfaceArea:           c.SurfaceArea,
			ParentSurfaceArea:     c.ParentSurfaceArea,
			NormalizedLodError:    c.NormalizedLodError,
			NormalizedParentError: c.NormalizedParentError,
			SourceGroup:           c.SourceGroup,
		}
	}
	for i, g := range l.ClusterGroups {
		lm.Groups[i] = GroupMeta{
			Clusters: g.ClusterIndices,
			Boundary: g.BoundaryIndices,
			BBoxMin:  g.Bounds.Min.Array(),
			BBoxMax:  g.Bounds.Max.Array(),
		}
	}
	return lm
}

// restore fills the records of l, whose geometry was read from the level's OBJ file.
func (lm *LevelMeta) restore(l *nanite.Level) error {
	index := l.Index
	if lm.Index != index {
		return fmt.Errorf("%w: level %d stored at position %d", ErrMalformedCache, lm.Index, index)
	}
	if l.Geometry.NumFaces() != lm.Faces || l.Geometry.NumVertices() != lm.Vertices {
		return fmt.Errorf("%w: level %d geometry has %d faces %d vertices, metadata %d %d", ErrMalformedCache,
			index, l.Geometry.NumFaces(), l.Geometry.NumVertices(), lm.Faces, lm.Vertices)
	}
	if len(lm.ClusterColors) != len(lm.Clusters) {
		return fmt.Errorf("%w: level %d has %d colors for %d clusters", ErrMalformedCache, index, len(lm.ClusterColors), len(lm.Clusters))
	}

	l.ClusterNum = len(lm.Clusters)
	l.TriangleClusterIndex = lm.TriangleClusterIndex
	l.ClusterGroupNum = len(lm.Groups)
	l.ClusterGroupIndex = lm.ClusterGroupIndex
	l.ClusterColorAssignment = lm.ClusterColors
	l.ColorCount = lm.ColorCount

	l.Clusters = make([]nanite.Cluster, len(lm.Clusters))
	for i, cm := range lm.Clusters {
		l.Clusters[i] = nanite.Cluster{
			TriangleRangeStart:    cm.TriangleRange[0],
			TriangleRangeEnd:      cm.TriangleRange[1],
			Bounds:                math.AABB{Min: math.Vec3FromArray(cm.BBoxMin), Max: math.Vec3FromArray(cm.BBoxMax)},
			BoundingSphere:        math.Sphere{Center: math.Vec3FromArray(cm.SphereCenter), Radius: cm.SphereRadius},
			LodError:              cm.LodError,
			ParentError:           cm.ParentError,
			SurfaceArea:           cm.SurfaceArea,
			ParentSurfaceArea:     cm.ParentSurfaceArea,
			NormalizedLodError:    cm.NormalizedLodError,
			NormalizedParentError: cm.NormalizedParentError,
			LodLevel:              index,
			SourceGroup:           cm.SourceGroup,
		}
	}
	l.ClusterGroups = make([]nanite.ClusterGroup, len(lm.Groups))
	for i, gm := range lm.Groups {
		l.ClusterGroups[i] = nanite.ClusterGroup{
			ClusterIndices:  gm.Clusters,
			BoundaryIndices: gm.Boundary,
			Bounds:          math.AABB{Min: math.Vec3FromArray(gm.BBoxMin), Max: math.Vec3FromArray(gm.BBoxMax)},
		}
	}

	if err := l.Restore(); err != nil {
		return fmt.Errorf("%w: level %d: %w", ErrMalformedCache, index, err)
	}
	return nil
}

func newNodeMeta(n *nanite.NodeInfo) NodeMeta {
	return NodeMeta{
		Index:       n.Index,
		Status:      n.Status.String(),
		Depth:       n.Depth,
		ObjectID:    n.ObjectID,
		LodError:    n.LodError,
		ParentError: n.ParentError,
		BBoxMin:     n.BBoxMin.Array(),
		BBoxMax:     n.BBoxMax.Array(),
		Children:    n.Children,
		Clusters:    append([]int32{}, n.ClusterIndices[:n.ClusterCount]...),
	}
}

// node converts a stored node of a hierarchy with count nodes over clusters clusters.
// Only internal nodes may have children and only leaves may reference clusters.
func (nm *NodeMeta) node(count, clusters int) (nanite.NodeInfo, error) {
	status, ok := nanite.ParseNodeStatus(nm.Status)
	if !ok || (status != nanite.StatusInternal && status != nanite.StatusLeaf) {
		return nanite.NodeInfo{}, fmt.Errorf("%w: node %d has status %q", ErrMalformedCache, nm.Index, nm.Status)
	}
	if len(nm.Clusters) > config.LeafCapacity {
		return nanite.NodeInfo{}, fmt.Errorf("%w: node %d: %w", ErrMalformedCache, nm.Index, nanite.ErrLeafOverflow)
	}
	if status == nanite.StatusInternal && len(nm.Clusters) > 0 {
		return nanite.NodeInfo{}, fmt.Errorf("%w: internal node %d references %d clusters", ErrMalformedCache, nm.Index, len(nm.Clusters))
	}
	for _, c := range nm.Children {
		if c < -1 || int(c) >= count {
			return nanite.NodeInfo{}, fmt.Errorf("%w: node %d has child %d of %d nodes", ErrMalformedCache, nm.Index, c, count)
		}
		if c >= 0 && status == nanite.StatusLeaf {
			return nanite.NodeInfo{}, fmt.Errorf("%w: leaf node %d has child %d", ErrMalformedCache, nm.Index, c)
		}
	}
	for _, c := range nm.Clusters {
		if c < 0 || int(c) >= clusters {
			return nanite.NodeInfo{}, fmt.Errorf("%w: node %d references cluster %d of %d", ErrMalformedCache, nm.Index, c, clusters)
		}
	}

	n := nanite.NodeInfo{
		BBoxMin:      math.Vec3FromArray(nm.BBoxMin),
		BBoxMax:      math.Vec3FromArray(nm.BBoxMax),
		LodError:     nm.LodError,
		ParentError:  nm.ParentError,
		Children:     nm.Children,
		ClusterCount: int32(len(nm.Clusters)),
		Status:       status,
		Depth:        nm.Depth,
		ObjectID:     nm.ObjectID,
		Index:        nm.Index,
	}
	for i := range n.ClusterIndices {
		n.ClusterIndices[i] = -1
	}
	copy(n.ClusterIndices[:], nm.Clusters)
	return n, nil
}

// checkRequired reports the first required field the document lacks.
func (m *Metadata) checkRequired() error {
	switch {
	case m.LodNums == nil:
		return missing("lodNums")
	case m.CacheTimestamp == nil:
		return missing("cacheTimestamp")
	case m.Levels == nil:
		return missing("levels")
	}
	if *m.LodNums != len(m.Levels) {
		return fmt.Errorf("%w: lodNums is %d but %d levels are stored", ErrMalformedCache, *m.LodNums, len(m.Levels))
	}
	if *m.LodNums == 0 {
		return fmt.Errorf("%w: %w", ErrMalformedCache, nanite.ErrNoLevels)
	}
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %w: %s", ErrMalformedCache, ErrMissingCacheField, field)
}
