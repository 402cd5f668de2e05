package mesh

// EdgeKey identifies an undirected edge by its sorted endpoint pair.
type EdgeKey struct {
	A, B int
}

// MakeEdgeKey returns the key of the edge (u, v) regardless of orientation.
func MakeEdgeKey(u, v int) EdgeKey {
	if u > v {
		u, v = v, u
	}
	return EdgeKey{A: u, B: v}
}

// Edge is one undirected mesh edge with up to two incident faces.
// Faces[1] is -1 on an open boundary.
type Edge struct {
	Vertices    [2]int
	Faces       [2]int
	NonManifold bool // More than two faces share the edge
}

// IsBoundary reports whether the edge is a true mesh boundary. Non-manifold edges
// count as boundary: they cannot be collapsed or crossed safely.
func (e Edge) IsBoundary() bool {
	return e.Faces[1] < 0 || e.NonManifold
}

// Topology is the edge adjacency of a mesh, rebuilt whenever faces change.
type Topology struct {
	Edges          []Edge
	index          map[EdgeKey]int
	boundaryVertex []bool
	vertexFaces    [][]int
}

// BuildTopology derives edges, boundary flags and vertex-face incidence.
// Edges are numbered in first-seen order over faces and corners, so the result is
// identical across runs.
func BuildTopology(m *Mesh) *Topology {
	t := &Topology{
		Edges:          make([]Edge, 0, len(m.Faces)*3/2+1),
		index:          make(map[EdgeKey]int, len(m.Faces)*3/2+1),
		boundaryVertex: make([]bool, len(m.Positions)),
		vertexFaces:    make([][]int, len(m.Positions)),
	}

	for f, face := range m.Faces {
		for c := 0; c < 3; c++ {
			u, v := face[c], face[(c+1)%3]
			key := MakeEdgeKey(u, v)
			if idx, ok := t.index[key]; ok {
				e := &t.Edges[idx]
				if e.Faces[1] < 0 {
					e.Faces[1] = f
				} else {
					e.NonManifold = true
				}
				continue
			}
			t.index[key] = len(t.Edges)
			t.Edges = append(t.Edges, Edge{Vertices: [2]int{key.A, key.B}, Faces: [2]int{f, -1}})
		}
		for _, v := range face {
			t.vertexFaces[v] = append(t.vertexFaces[v], f)
		}
	}

	for _, e := range t.Edges {
		if e.IsBoundary() {
			t.boundaryVertex[e.Vertices[0]] = true
			t.boundaryVertex[e.Vertices[1]] = true
		}
	}
	return t
}

// Edge returns the edge between u and v.
func (t *Topology) Edge(u, v int) (Edge, bool) {
	idx, ok := t.index[MakeEdgeKey(u, v)]
	if !ok {
		return Edge{}, false
	}
	return t.Edges[idx], true
}

// IsBoundaryVertex reports whether v touches a boundary or non-manifold edge.
func (t *Topology) IsBoundaryVertex(v int) bool {
	return t.boundaryVertex[v]
}

// VertexFaces returns the faces incident to v, in ascending order.
func (t *Topology) VertexFaces(v int) []int {
	return t.vertexFaces[v]
}

// BoundaryEdgeCount returns how many edges lie on the mesh boundary.
func (t *Topology) BoundaryEdgeCount() int {
	n := 0
	for _, e := range t.Edges {
		if e.IsBoundary() {
			n++
		}
	}
	return n
}
