// Package mesh provides the indexed triangle mesh every LOD level is built from,
// together with its edge topology, compaction and procedural primitives.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/nanite-lod/pkg/math"
)

// Mesh errors.
var (
	ErrInvalidFace       = errors.New("invalid face")
	ErrAttributeMismatch = errors.New("vertex attribute count mismatch")
)

// Mesh is an indexed triangle mesh. Normals and TexCoords are per vertex and are
// either empty or exactly as long as Positions.
type Mesh struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	TexCoords []math.Vec2
	Faces     [][3]int
}

// NumVertices returns the vertex count.
func (m *Mesh) NumVertices() int {
	return len(m.Positions)
}

// NumFaces returns the triangle count.
func (m *Mesh) NumFaces() int {
	return len(m.Faces)
}

// HasNormals reports whether per-vertex normals are present.
func (m *Mesh) HasNormals() bool {
	return len(m.Normals) > 0
}

// HasTexCoords reports whether per-vertex texture coordinates are present.
func (m *Mesh) HasTexCoords() bool {
	return len(m.TexCoords) > 0
}

// Validate checks attribute lengths and face indices.
func (m *Mesh) Validate() error {
	n := len(m.Positions)
	if m.HasNormals() && len(m.Normals) != n {
		return fmt.Errorf("%w: %d normals for %d vertices", ErrAttributeMismatch, len(m.Normals), n)
	}
	if m.HasTexCoords() && len(m.TexCoords) != n {
		return fmt.Errorf("%w: %d texcoords for %d vertices", ErrAttributeMismatch, len(m.TexCoords), n)
	}
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= n {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrInvalidFace, i, v, n)
			}
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			return fmt.Errorf("%w: face %d repeats a vertex %v", ErrInvalidFace, i, f)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Positions: append([]math.Vec3(nil), m.Positions...),
		Faces:     append([][3]int(nil), m.Faces...),
	}
	if m.HasNormals() {
		out.Normals = append([]math.Vec3(nil), m.Normals...)
	}
	if m.HasTexCoords() {
		out.TexCoords = append([]math.Vec2(nil), m.TexCoords...)
	}
	return out
}

// FaceCorners returns the three corner positions of face f.
func (m *Mesh) FaceCorners(f int) (math.Vec3, math.Vec3, math.Vec3) {
	face := m.Faces[f]
	return m.Positions[face[0]], m.Positions[face[1]], m.Positions[face[2]]
}

// FaceArea returns the area of face f.
func (m *Mesh) FaceArea(f int) float32 {
	a, b, c := m.FaceCorners(f)
	return math.TriangleArea(a, b, c)
}

// FaceNormal returns the unit normal of face f (zero for degenerate faces).
func (m *Mesh) FaceNormal(f int) math.Vec3 {
	a, b, c := m.FaceCorners(f)
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

// FaceBounds returns the AABB of face f after applying transform.
func (m *Mesh) FaceBounds(f int, transform math.Mat4) math.AABB {
	a, b, c := m.FaceCorners(f)
	return math.EmptyAABB().
		Extend(transform.TransformPoint(a)).
		Extend(transform.TransformPoint(b)).
		Extend(transform.TransformPoint(c))
}

// Bounds returns the AABB of all referenced vertices.
func (m *Mesh) Bounds() math.AABB {
	box := math.EmptyAABB()
	for _, f := range m.Faces {
		for _, v := range f {
			box = box.Extend(m.Positions[v])
		}
	}
	return box
}

// SurfaceArea returns the summed face area.
func (m *Mesh) SurfaceArea() float32 {
	var total float32
	for f := range m.Faces {
		total += m.FaceArea(f)
	}
	return total
}
