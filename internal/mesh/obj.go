package mesh

import (
	"fmt"

	"github.com/Faultbox/nanite-lod/pkg/formats"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

// FromOBJ converts a parsed OBJ into a mesh with per-vertex attributes.
//
// Files whose corners always use the position index for vt and vn (as written by
// ToOBJ) map one to one, keeping vertex order and unreferenced vertices. Any other
// file is split: each distinct (v, vt, vn) corner becomes its own vertex.
func FromOBJ(o *formats.OBJ) (*Mesh, error) {
	var m *Mesh
	if aligned(o) {
		m = fromAlignedOBJ(o)
	} else {
		m = fromSplitOBJ(o)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("converting OBJ: %w", err)
	}
	return m, nil
}

func aligned(o *formats.OBJ) bool {
	hasVT := len(o.TexCoords) == len(o.Positions)
	hasVN := len(o.Normals) == len(o.Positions)
	for _, f := range o.Faces {
		for _, c := range f {
			if c.VT >= 0 && (!hasVT || c.VT != c.V) {
				return false
			}
			if c.VN >= 0 && (!hasVN || c.VN != c.V) {
				return false
			}
		}
	}
	return true
}

func fromAlignedOBJ(o *formats.OBJ) *Mesh {
	m := &Mesh{
		Positions: append([]math.Vec3(nil), o.Positions...),
		Faces:     make([][3]int, len(o.Faces)),
	}
	if len(o.Normals) == len(o.Positions) {
		m.Normals = append([]math.Vec3(nil), o.Normals...)
	}
	if len(o.TexCoords) == len(o.Positions) {
		m.TexCoords = append([]math.Vec2(nil), o.TexCoords...)
	}
	for i, f := range o.Faces {
		m.Faces[i] = [3]int{f[0].V, f[1].V, f[2].V}
	}
	return m
}

func fromSplitOBJ(o *formats.OBJ) *Mesh {
	m := &Mesh{Faces: make([][3]int, len(o.Faces))}
	index := make(map[formats.OBJCorner]int)
	withVT := len(o.TexCoords) > 0
	withVN := len(o.Normals) > 0

	for i, f := range o.Faces {
		for k, c := range f {
			v, ok := index[c]
			if !ok {
				v = len(m.Positions)
				index[c] = v
				m.Positions = append(m.Positions, o.Positions[c.V])
				if withVT {
					var uv math.Vec2
					if c.VT >= 0 {
						uv = o.TexCoords[c.VT]
					}
					m.TexCoords = append(m.TexCoords, uv)
				}
				if withVN {
					var n math.Vec3
					if c.VN >= 0 {
						n = o.Normals[c.VN]
					}
					m.Normals = append(m.Normals, n)
				}
			}
			m.Faces[i][k] = v
		}
	}
	return m
}

// ToOBJ converts the mesh to an OBJ whose vt and vn indices equal the position index.
func ToOBJ(m *Mesh) *formats.OBJ {
	o := &formats.OBJ{
		Positions: m.Positions,
		Normals:   m.Normals,
		TexCoords: m.TexCoords,
		Faces:     make([][3]formats.OBJCorner, len(m.Faces)),
	}
	for i, f := range m.Faces {
		for k, v := range f {
			c := formats.OBJCorner{V: v, VT: -1, VN: -1}
			if m.HasTexCoords() {
				c.VT = v
			}
			if m.HasNormals() {
				c.VN = v
			}
			o.Faces[i][k] = c
		}
	}
	return o
}

// LoadOBJ reads a mesh from an OBJ file. Missing normals are recomputed.
func LoadOBJ(path string) (*Mesh, error) {
	o, err := formats.ParseOBJFile(path)
	if err != nil {
		return nil, err
	}
	m, err := FromOBJ(o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !m.HasNormals() {
		ComputeNormals(m)
	}
	return m, nil
}

// SaveOBJ writes the mesh to path.
func SaveOBJ(path string, m *Mesh) error {
	return formats.WriteOBJFile(path, ToOBJ(m))
}
