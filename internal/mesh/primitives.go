package mesh

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/nanite-lod/pkg/math"
)

// UVSphere builds a closed, manifold latitude/longitude sphere with shared pole
// vertices. It has 2*slices*(stacks-1) faces; slices=100, stacks=51 gives 10,000.
// Faces wind counter-clockwise seen from outside.
func UVSphere(slices, stacks int, radius float32) *Mesh {
	if slices < 3 {
		slices = 3
	}
	if stacks < 2 {
		stacks = 2
	}

	m := &Mesh{}
	addVertex := func(phi, theta float32, u, v float32) {
		dir := math.Vec3{
			X: math32.Sin(phi) * math32.Cos(theta),
			Y: math32.Cos(phi),
			Z: math32.Sin(phi) * math32.Sin(theta),
		}
		m.Positions = append(m.Positions, dir.Scale(radius))
		m.Normals = append(m.Normals, dir)
		m.TexCoords = append(m.TexCoords, math.Vec2{X: u, Y: v})
	}

	addVertex(0, 0, 0.5, 0)
	for i := 1; i < stacks; i++ {
		phi := math32.Pi * float32(i) / float32(stacks)
		for j := 0; j < slices; j++ {
			theta := 2 * math32.Pi * float32(j) / float32(slices)
			addVertex(phi, theta, float32(j)/float32(slices), float32(i)/float32(stacks))
		}
	}
	addVertex(math32.Pi, 0, 0.5, 1)

	north := 0
	south := len(m.Positions) - 1
	ring := func(i, j int) int {
		return 1 + (i-1)*slices + j%slices
	}

	for j := 0; j < slices; j++ {
		m.Faces = append(m.Faces, [3]int{north, ring(1, j+1), ring(1, j)})
	}
	for i := 1; i < stacks-1; i++ {
		for j := 0; j < slices; j++ {
			a, b := ring(i, j), ring(i, j+1)
			c, d := ring(i+1, j), ring(i+1, j+1)
			m.Faces = append(m.Faces, [3]int{a, b, d}, [3]int{a, d, c})
		}
	}
	for j := 0; j < slices; j++ {
		m.Faces = append(m.Faces, [3]int{ring(stacks-1, j), ring(stacks-1, j+1), south})
	}
	return m
}

// Grid builds an open w x h quad grid in the XZ plane, split into 2*w*h triangles.
// Its outer edges form a true mesh boundary.
func Grid(w, h int, cellSize float32) *Mesh {
	m := &Mesh{}
	for z := 0; z <= h; z++ {
		for x := 0; x <= w; x++ {
			m.Positions = append(m.Positions, math.Vec3{X: float32(x) * cellSize, Z: float32(z) * cellSize})
			m.Normals = append(m.Normals, math.Vec3{Y: 1})
			m.TexCoords = append(m.TexCoords, math.Vec2{X: float32(x) / float32(w), Y: float32(z) / float32(h)})
		}
	}
	idx := func(x, z int) int { return z*(w+1) + x }
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			a, b := idx(x, z), idx(x+1, z)
			c, d := idx(x, z+1), idx(x+1, z+1)
			m.Faces = append(m.Faces, [3]int{a, c, b}, [3]int{b, c, d})
		}
	}
	return m
}
