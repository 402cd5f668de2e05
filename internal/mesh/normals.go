package mesh

import "github.com/Faultbox/nanite-lod/pkg/math"

// ComputeNormals replaces the vertex normals with area-weighted averages of the
// incident face normals. Vertices without faces get a zero normal.
func ComputeNormals(m *Mesh) {
	normals := make([]math.Vec3, len(m.Positions))
	for _, f := range m.Faces {
		a, b, c := m.Positions[f[0]], m.Positions[f[1]], m.Positions[f[2]]
		// Unnormalized cross product: its length is twice the face area.
		n := b.Sub(a).Cross(c.Sub(a))
		for _, v := range f {
			normals[v] = normals[v].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	m.Normals = normals
}
