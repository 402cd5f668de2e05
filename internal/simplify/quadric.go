package simplify

import (
	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/nanite-lod/pkg/math"
)

// Quadric is the symmetric 4x4 error quadric of Garland-Heckbert, stored as its
// upper triangle: a2 ab ac ad b2 bc bd c2 cd d2.
type Quadric [10]float64

// PlaneQuadric returns the area-weighted quadric of the plane through a, b, c.
// Degenerate triangles yield the zero quadric.
func PlaneQuadric(a, b, c math.Vec3) Quadric {
	cross := b.Sub(a).Cross(c.Sub(a))
	length := float64(cross.Length())
	if length == 0 {
		return Quadric{}
	}
	nx := float64(cross.X) / length
	ny := float64(cross.Y) / length
	nz := float64(cross.Z) / length
	d := -(nx*float64(a.X) + ny*float64(a.Y) + nz*float64(a.Z))
	w := length / 2

	return Quadric{
		w * nx * nx, w * nx * ny, w * nx * nz, w * nx * d,
		w * ny * ny, w * ny * nz, w * ny * d,
		w * nz * nz, w * nz * d,
		w * d * d,
	}
}

// Add returns q + o.
func (q Quadric) Add(o Quadric) Quadric {
	for i := range q {
		q[i] += o[i]
	}
	return q
}

// Evaluate returns v^T Q v for the homogeneous point (p, 1).
func (q Quadric) Evaluate(p math.Vec3) float64 {
	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}

// Optimal solves for the point minimizing the quadric. It reports false when the
// 3x3 system is singular or ill-conditioned, as on flat or cylindrical patches.
func (q Quadric) Optimal() (math.Vec3, bool) {
	a := mat.NewSymDense(3, []float64{
		q[0], q[1], q[2],
		q[1], q[4], q[5],
		q[2], q[5], q[7],
	})
	b := mat.NewVecDense(3, []float64{-q[3], -q[6], -q[8]})

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return math.Vec3{}, false
	}
	return math.Vec3{X: float32(x.AtVec(0)), Y: float32(x.AtVec(1)), Z: float32(x.AtVec(2))}, true
}
