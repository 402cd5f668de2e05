package nanite

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/nanite-lod/internal/config"
	"github.com/Faultbox/nanite-lod/internal/logger"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

// Vertex is one entry of the shared vertex buffer.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	TexCoord math.Vec2
}

// ClusterInfo is the render-facing record of one cluster. The triangle range
// addresses the owning buffer's triangle list.
type ClusterInfo struct {
	BBoxMin            math.Vec3
	BBoxMax            math.Vec3
	SphereCenter       math.Vec3
	SphereRadius       float32
	TriangleRangeStart uint32
	TriangleRangeEnd   uint32 // Exclusive
	ObjectIndex        uint32
}

// Instance places one LOD chain in the world.
type Instance struct {
	Chain       *Chain
	Transform   math.Mat4
	ObjectIndex int

	// Every level's geometry concatenated; triangles are emitted per level in
	// cluster-sorted order, so each ClusterInfo range is contiguous.
	Vertices    []Vertex
	Indices     [][3]uint32
	ClusterInfo []ClusterInfo // World-space, ranges local to Indices

	LevelClusterBase  []int // First ClusterInfo entry of each level
	LevelTriangleBase []int // First Indices entry of each level
}

// NewInstance builds the buffers and world-space cluster records of chain under
// transform.
func NewInstance(chain *Chain, transform math.Mat4, objectIndex int) *Instance {
	inst := &Instance{Chain: chain, Transform: transform, ObjectIndex: objectIndex}

	for _, level := range chain.Levels {
		g := level.Geometry
		vertexBase := uint32(len(inst.Vertices))
		inst.LevelClusterBase = append(inst.LevelClusterBase, len(inst.ClusterInfo))
		inst.LevelTriangleBase = append(inst.LevelTriangleBase, len(inst.Indices))

		for v := range g.Positions {
			vert := Vertex{Position: g.Positions[v]}
			if g.HasNormals() {
				vert.Normal = g.Normals[v]
			}
			if g.HasTexCoords() {
				vert.TexCoord = g.TexCoords[v]
			}
			inst.Vertices = append(inst.Vertices, vert)
		}

		for c := range level.Clusters {
			start := uint32(len(inst.Indices))
			bounds := math.EmptyAABB()
			for _, f := range level.ClusterFaces(c) {
				face := g.Faces[f]
				inst.Indices = append(inst.Indices, [3]uint32{
					vertexBase + uint32(face[0]),
					vertexBase + uint32(face[1]),
					vertexBase + uint32(face[2]),
				})
				bounds = bounds.Union(g.FaceBounds(f, transform))
			}
			sphere := level.Clusters[c].BoundingSphere.Transform(transform)
			inst.ClusterInfo = append(inst.ClusterInfo, ClusterInfo{
				BBoxMin:            bounds.Min,
				BBoxMax:            bounds.Max,
				SphereCenter:       sphere.Center,
				SphereRadius:       sphere.Radius,
				TriangleRangeStart: start,
				TriangleRangeEnd:   uint32(len(inst.Indices)),
				ObjectIndex:        uint32(objectIndex),
			})
		}
	}
	return inst
}

// IndexCount returns the number of triangles in the instance's index buffer.
func (inst *Instance) IndexCount() int {
	return len(inst.Indices)
}

// Bounds returns a world-space box enclosing the finest level: its object-space
// box moved by the instance transform.
func (inst *Instance) Bounds() math.AABB {
	if len(inst.Chain.Levels) == 0 {
		return math.EmptyAABB()
	}
	return inst.Chain.Levels[0].Geometry.Bounds().Transform(inst.Transform)
}

// Scene concatenates instances into shared buffers and one hierarchy.
type Scene struct {
	Instances []*Instance

	Vertices    []Vertex
	Indices     [][3]uint32
	ClusterInfo []ClusterInfo
	Nodes       []NodeInfo
	BVH         *BVH

	MaxClustersPerLeaf int
}

// NewScene returns an empty scene whose leaves hold at most maxPerLeaf clusters.
func NewScene(maxPerLeaf int) *Scene {
	if maxPerLeaf <= 0 || maxPerLeaf > config.LeafCapacity {
		maxPerLeaf = config.LeafCapacity
	}
	return &Scene{MaxClustersPerLeaf: maxPerLeaf}
}

// AddInstance places chain under transform. Object indices follow insertion order.
func (s *Scene) AddInstance(chain *Chain, transform math.Mat4) *Instance {
	inst := NewInstance(chain, transform, len(s.Instances))
	s.Instances = append(s.Instances, inst)
	return inst
}

// Build concatenates the instance buffers and builds and flattens the hierarchy.
// Instance k's triangle ranges are offset by the index counts of instances 0..k-1
// and its vertex indices by their vertex counts.
func (s *Scene) Build() error {
	s.Vertices, s.Indices, s.ClusterInfo = nil, nil, nil
	s.BVH = NewBVH()

	for _, inst := range s.Instances {
		triangleBase := uint32(len(s.Indices))
		vertexBase := uint32(len(s.Vertices))
		clusterBase := len(s.ClusterInfo)

		s.Vertices = append(s.Vertices, inst.Vertices...)
		for _, tri := range inst.Indices {
			s.Indices = append(s.Indices, [3]uint32{tri[0] + vertexBase, tri[1] + vertexBase, tri[2] + vertexBase})
		}
		for _, info := range inst.ClusterInfo {
			info.TriangleRangeStart += triangleBase
			info.TriangleRangeEnd += triangleBase
			s.ClusterInfo = append(s.ClusterInfo, info)
		}
		s.BVH.AddInstance(inst, clusterBase, s.MaxClustersPerLeaf)
	}

	nodes, err := s.BVH.Flatten()
	if err != nil {
		return fmt.Errorf("flattening scene hierarchy: %w", err)
	}
	s.Nodes = nodes

	logger.Named("scene").Info("scene built",
		zap.Int("instances", len(s.Instances)),
		zap.Int("clusters", len(s.ClusterInfo)),
		zap.Int("triangles", len(s.Indices)),
		zap.Int("nodes", len(s.Nodes)))
	return nil
}
