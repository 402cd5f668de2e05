package nanite

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"

	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

// NodeStatus tags a hierarchy node.
type NodeStatus int32

// Node status values.
const (
	StatusInvalid  NodeStatus = 0
	StatusVirtual  NodeStatus = 1 // Joins trees; has no bounding volume
	StatusInternal NodeStatus = 2
	StatusLeaf     NodeStatus = 3
)

// String returns the status name.
func (s NodeStatus) String() string {
	switch s {
	case StatusVirtual:
		return "virtual"
	case StatusInternal:
		return "internal"
	case StatusLeaf:
		return "leaf"
	default:
		return "invalid"
	}
}

// ParseNodeStatus is the inverse of String. Unknown names report false.
func ParseNodeStatus(name string) (NodeStatus, bool) {
	for _, s := range []NodeStatus{StatusInvalid, StatusVirtual, StatusInternal, StatusLeaf} {
		if s.String() == name {
			return s, true
		}
	}
	return StatusInvalid, false
}

// Node is an in-memory hierarchy node. Children are arena indices.
type Node struct {
	Status      NodeStatus
	Bounds      math.AABB
	LodError    float32 // Normalized
	ParentError float32 // Normalized
	Children    []int
	Clusters    []int // Scene cluster indices, leaves only
	ObjectID    int   // Set on the roots attached to a virtual node
}

// BVH is an arena of hierarchy nodes. Index 0 is the virtual scene root.
type BVH struct {
	Nodes []Node
}

// NewBVH returns an arena holding only the virtual root.
func NewBVH() *BVH {
	return &BVH{Nodes: []Node{{Status: StatusVirtual, Bounds: math.EmptyAABB(), ObjectID: -1}}}
}

// Root is the arena index of the virtual root.
const Root = 0

func (b *BVH) add(n Node) int {
	b.Nodes = append(b.Nodes, n)
	return len(b.Nodes) - 1
}

// AddLeaf appends a leaf holding clusters.
func (b *BVH) AddLeaf(bounds math.AABB, lodError, parentError float32, clusters []int) int {
	return b.add(Node{
		Status:      StatusLeaf,
		Bounds:      bounds,
		LodError:    lodError,
		ParentError: parentError,
		Clusters:    clusters,
		ObjectID:    -1,
	})
}

// AddInternal appends an internal node aggregating children: bounds are the union
// and each error term is the maximum over the children.
func (b *BVH) AddInternal(children []int) int {
	n := Node{Status: StatusInternal, Bounds: math.EmptyAABB(), Children: children, ObjectID: -1}
	for i, c := range children {
		child := &b.Nodes[c]
		n.Bounds = n.Bounds.Union(child.Bounds)
		if i == 0 {
			n.LodError, n.ParentError = child.LodError, child.ParentError
			continue
		}
		n.LodError = math32.Max(n.LodError, child.LodError)
		n.ParentError = math32.Max(n.ParentError, child.ParentError)
	}
	return b.add(n)
}

// Attach makes node a child of the virtual root, tagged with objectID.
func (b *BVH) Attach(node, objectID int) {
	b.Nodes[node].ObjectID = objectID
	b.Nodes[Root].Children = append(b.Nodes[Root].Children, node)
}

// BuildTree joins nodes into a 4-ary tree top-down and returns its root. Each split
// sorts by bounding box centroid along the longest axis of the centroids' extent.
// A single node is returned unchanged.
func (b *BVH) BuildTree(nodes []int) int {
	if len(nodes) == 1 {
		return nodes[0]
	}
	if len(nodes) <= MaxChildren {
		return b.AddInternal(append([]int(nil), nodes...))
	}

	extent := math.EmptyAABB()
	for _, n := range nodes {
		extent = extent.Extend(b.Nodes[n].Bounds.Center())
	}
	axis := extent.LongestAxis()
	sorted := append([]int(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return b.Nodes[sorted[i]].Bounds.Center().Axis(axis) < b.Nodes[sorted[j]].Bounds.Center().Axis(axis)
	})

	children := make([]int, 0, MaxChildren)
	for i := 0; i < MaxChildren; i++ {
		part := sorted[i*len(sorted)/MaxChildren : (i+1)*len(sorted)/MaxChildren]
		if len(part) > 0 {
			children = append(children, b.BuildTree(part))
		}
	}
	return b.AddInternal(children)
}

// AddInstance builds the hierarchy of one instance and attaches it to the root.
// Leaves are the instance's cluster-groups split into chunks of at most
// maxPerLeaf clusters; each level gets its own subtree and the level subtrees are
// joined under one instance root.
func (b *BVH) AddInstance(inst *Instance, clusterBase, maxPerLeaf int) int {
	var levelRoots []int
	for li, level := range inst.Chain.Levels {
		var leaves []int
		for _, grp := range level.ClusterGroups {
			for lo := 0; lo < len(grp.ClusterIndices); lo += maxPerLeaf {
				hi := min(lo+maxPerLeaf, len(grp.ClusterIndices))
				leaves = append(leaves, b.addClusterLeaf(inst, li, grp.ClusterIndices[lo:hi], clusterBase))
			}
		}
		levelRoots = append(levelRoots, b.BuildTree(leaves))
	}
	root := b.BuildTree(levelRoots)
	b.Attach(root, inst.ObjectIndex)
	return root
}

func (b *BVH) addClusterLeaf(inst *Instance, level int, clusters []int, clusterBase int) int {
	bounds := math.EmptyAABB()
	ids := make([]int, len(clusters))
	var lodError, parentError float32
	for i, c := range clusters {
		global := inst.LevelClusterBase[level] + c
		info := inst.ClusterInfo[global]
		bounds = bounds.Union(math.AABB{Min: info.BBoxMin, Max: info.BBoxMax})

		cl := &inst.Chain.Levels[level].Clusters[c]
		if i == 0 {
			lodError, parentError = cl.NormalizedLodError, cl.NormalizedParentError
		} else {
			lodError = math32.Max(lodError, cl.NormalizedLodError)
			parentError = math32.Max(parentError, cl.NormalizedParentError)
		}
		ids[i] = clusterBase + global
	}
	return b.AddLeaf(bounds, lodError, parentError, ids)
}

// NodeInfo is the flattened, index-only form of a node as uploaded and cached.
type NodeInfo struct {
	BBoxMin        math.Vec3
	BBoxMax        math.Vec3
	LodError       float32
	ParentError    float32
	Children       [MaxChildren]int32         // Flat indices, -1 unset
	ClusterIndices [config.LeafCapacity]int32 // -1 unset
	ClusterCount   int32
	Status         NodeStatus
	Depth          int32
	ObjectID       int32
	Index          int32
}

// ChildCount returns the number of set child slots.
func (n *NodeInfo) ChildCount() int {
	count := 0
	for _, c := range n.Children {
		if c >= 0 {
			count++
		}
	}
	return count
}

// Flatten emits every non-virtual node breadth first from the root. Flat indices
// follow visitation order, objectId flows down from the children of a virtual
// node, and depth does not count virtual ancestors.
func (b *BVH) Flatten() ([]NodeInfo, error) {
	type visit struct {
		node     int
		depth    int
		objectID int
	}

	flat := make([]int, len(b.Nodes))
	for i := range flat {
		flat[i] = -1
	}
	var order []visit
	queue := []visit{{node: Root, depth: 0, objectID: -1}}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		n := &b.Nodes[v.node]

		childDepth := v.depth + 1
		if n.Status == StatusVirtual {
			childDepth = v.depth
		} else {
			flat[v.node] = len(order)
			order = append(order, v)
		}
		for _, c := range n.Children {
			objectID := v.objectID
			if n.Status == StatusVirtual {
				objectID = b.Nodes[c].ObjectID
			}
			queue = append(queue, visit{node: c, depth: childDepth, objectID: objectID})
		}
	}

	out := make([]NodeInfo, len(order))
	for i, v := range order {
		n := &b.Nodes[v.node]
		if len(n.Children) > MaxChildren {
			return nil, fmt.Errorf("%w: node %d has %d", ErrFanOutExceeded, i, len(n.Children))
		}
		if len(n.Clusters) > config.LeafCapacity {
			return nil, fmt.Errorf("%w: node %d has %d, capacity %d", ErrLeafOverflow, i, len(n.Clusters), config.LeafCapacity)
		}

		info := NodeInfo{
			BBoxMin:      n.Bounds.Min,
			BBoxMax:      n.Bounds.Max,
			LodError:     n.LodError,
			ParentError:  n.ParentError,
			ClusterCount: int32(len(n.Clusters)),
			Status:       n.Status,
			Depth:        int32(v.depth),
			ObjectID:     int32(v.objectID),
			Index:        int32(i),
		}
		for k := range info.Children {
			info.Children[k] = -1
		}
		for k := range info.ClusterIndices {
			info.ClusterIndices[k] = -1
		}
		for k, c := range n.Children {
			if flat[c] < 0 {
				return nil, fmt.Errorf("node %d: child %d is virtual", i, c)
			}
			info.Children[k] = int32(flat[c])
		}
		for k, c := range n.Clusters {
			info.ClusterIndices[k] = int32(c)
		}
		out[i] = info
	}
	return out, nil
}
