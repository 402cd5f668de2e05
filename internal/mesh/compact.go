package mesh

// Compact removes vertices no face references, rewriting face indices in place.
// Returns the old -> new vertex map (-1 for removed vertices).
func Compact(m *Mesh) []int {
	used := make([]bool, len(m.Positions))
	for _, f := range m.Faces {
		used[f[0]] = true
		used[f[1]] = true
		used[f[2]] = true
	}

	remap := make([]int, len(m.Positions))
	next := 0
	for v := range m.Positions {
		if !used[v] {
			remap[v] = -1
			continue
		}
		remap[v] = next
		m.Positions[next] = m.Positions[v]
		if m.HasNormals() {
			m.Normals[next] = m.Normals[v]
		}
		if m.HasTexCoords() {
			m.TexCoords[next] = m.TexCoords[v]
		}
		next++
	}

	m.Positions = m.Positions[:next]
	if m.HasNormals() {
		m.Normals = m.Normals[:next]
	}
	if m.HasTexCoords() {
		m.TexCoords = m.TexCoords[:next]
	}
	for i, f := range m.Faces {
		m.Faces[i] = [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
	}
	return remap
}
