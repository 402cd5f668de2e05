// Package simplify reduces triangle meshes by quadric-error edge collapse while
// keeping locked vertices exactly in place.
package simplify

import (
	"container/heap"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/nanite-lod/internal/logger"
	"github.com/Faultbox/nanite-lod/internal/mesh"
	"github.com/Faultbox/nanite-lod/pkg/math"
)

// Simplification errors.
var (
	ErrLockMismatch  = errors.New("locked vertex mask does not match vertex count")
	ErrGroupMismatch = errors.New("face group list does not match face count")
)

// minFlipCosine rejects collapses that rotate a surviving face normal by more than
// about 78 degrees.
const minFlipCosine = 0.2

// Options controls one simplification pass.
type Options struct {
	TargetFaces int    // Stop once the face count is at or below this
	Locked      []bool // Per-vertex; locked vertices never move or disappear
	FaceGroups  []int  // Optional per-face owner id; errors accumulate per owner
	GroupCount  int    // Number of owner ids when FaceGroups is set
}

// Result is the simplified mesh plus per-owner bookkeeping.
type Result struct {
	Mesh       *mesh.Mesh
	FaceGroups []int     // Owner of each surviving face, parallel to Mesh.Faces
	GroupError []float32 // Summed collapse cost per owner
	TotalError float32   // Summed collapse cost over all owners
	Collapses  int
	Remap      []int // Input vertex -> output vertex, -1 when collapsed away
}

// collapse is a queued edge contraction of from into to, moving to onto target.
type collapse struct {
	Cost     float64
	From, To int
	Target   math.Vec3
	stamps   [2]uint32
	Index    int // Index in heap
}

// collapseQueue orders candidate collapses by ascending cost.
type collapseQueue []*collapse

func (q collapseQueue) Len() int { return len(q) }
func (q collapseQueue) Less(i, j int) bool {
	if q[i].Cost != q[j].Cost {
		return q[i].Cost < q[j].Cost
	}
	if q[i].From != q[j].From {
		return q[i].From < q[j].From
	}
	return q[i].To < q[j].To
}
func (q collapseQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].Index = i
	q[j].Index = j
}

func (q *collapseQueue) Push(x interface{}) {
	c := x.(*collapse)
	c.Index = len(*q)
	*q = append(*q, c)
}

func (q *collapseQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	c.Index = -1
	*q = old[:n-1]
	return c
}

// simplifier holds the mutable working state of one pass.
type simplifier struct {
	m         *mesh.Mesh
	locked    []bool
	quadrics  []Quadric
	vertFaces [][]int
	faceAlive []bool
	vertAlive []bool
	stamps    []uint32
	queue     collapseQueue
}

// Simplify collapses edges of a copy of m until TargetFaces is reached or no
// valid collapse remains. The input mesh is not modified.
func Simplify(m *mesh.Mesh, opts Options) (*Result, error) {
	if opts.Locked != nil && len(opts.Locked) != m.NumVertices() {
		return nil, fmt.Errorf("%w: %d flags for %d vertices", ErrLockMismatch, len(opts.Locked), m.NumVertices())
	}
	if opts.FaceGroups != nil && len(opts.FaceGroups) != m.NumFaces() {
		return nil, fmt.Errorf("%w: %d groups for %d faces", ErrGroupMismatch, len(opts.FaceGroups), m.NumFaces())
	}

	s := newSimplifier(m.Clone(), opts.Locked, opts.FaceGroups)
	groupCount := opts.GroupCount
	if opts.FaceGroups == nil {
		groupCount = 1
	}
	groupError := make([]float64, groupCount)

	faces := m.NumFaces()
	collapses := 0
	for faces > opts.TargetFaces && s.queue.Len() > 0 {
		c := heap.Pop(&s.queue).(*collapse)
		if !s.current(c) || !s.valid(c) {
			continue
		}
		group := 0
		if opts.FaceGroups != nil {
			group = opts.FaceGroups[s.liveFaces(c.From)[0]]
		}
		faces -= s.apply(c)
		groupError[group] += c.Cost
		collapses++
	}

	res := s.finish(opts.FaceGroups)
	res.Collapses = collapses
	res.GroupError = make([]float32, groupCount)
	var total float64
	for g, e := range groupError {
		res.GroupError[g] = float32(e)
		total += e
	}
	res.TotalError = float32(total)

	logger.Named("simplify").Debug("simplified",
		zap.Int("faces_in", m.NumFaces()),
		zap.Int("faces_out", res.Mesh.NumFaces()),
		zap.Int("target", opts.TargetFaces),
		zap.Int("collapses", collapses))

	return res, nil
}

// newSimplifier locks mesh boundary vertices and the caller's locked vertices.
// With faceGroups set it also locks every vertex whose faces span more than one
// group, so the owner charged for a collapse is unambiguous.
func newSimplifier(m *mesh.Mesh, locked []bool, faceGroups []int) *simplifier {
	n := m.NumVertices()
	topo := mesh.BuildTopology(m)
	lock := make([]bool, n)
	for v := range lock {
		lock[v] = topo.IsBoundaryVertex(v) || (locked != nil && locked[v])
	}
	if faceGroups != nil {
		owner := make([]int, n)
		for v := range owner {
			owner[v] = -1
		}
		for f, face := range m.Faces {
			for _, v := range face {
				switch owner[v] {
				case -1:
					owner[v] = faceGroups[f]
				case faceGroups[f]:
				default:
					lock[v] = true
				}
			}
		}
	}
	s := &simplifier{
		m:         m,
		locked:    lock,
		quadrics:  make([]Quadric, n),
		vertFaces: make([][]int, n),
		faceAlive: make([]bool, m.NumFaces()),
		vertAlive: make([]bool, n),
		stamps:    make([]uint32, n),
	}

	for f, face := range m.Faces {
		s.faceAlive[f] = true
		q := PlaneQuadric(m.FaceCorners(f))
		for _, v := range face {
			s.quadrics[v] = s.quadrics[v].Add(q)
			s.vertFaces[v] = append(s.vertFaces[v], f)
			s.vertAlive[v] = true
		}
	}

	for _, e := range topo.Edges {
		if e.IsBoundary() {
			continue
		}
		s.push(e.Vertices[0], e.Vertices[1])
	}
	return s
}

// push queues the cheapest admissible collapse of the edge (a, b).
func (s *simplifier) push(a, b int) {
	if s.locked[a] && s.locked[b] {
		return
	}
	q := s.quadrics[a].Add(s.quadrics[b])
	pa, pb := s.m.Positions[a], s.m.Positions[b]

	c := &collapse{}
	switch {
	case s.locked[a]:
		c.From, c.To, c.Target = b, a, pa
	case s.locked[b]:
		c.From, c.To, c.Target = a, b, pb
	default:
		c.From, c.To = a, b
		c.Target = s.bestPosition(q, pa, pb)
	}
	c.Cost = q.Evaluate(c.Target)
	if c.Cost < 0 {
		c.Cost = 0
	}
	c.stamps = [2]uint32{s.stamps[c.From], s.stamps[c.To]}
	heap.Push(&s.queue, c)
}

// bestPosition prefers the quadric optimum when it lies near the edge, otherwise the
// cheapest of the endpoints and midpoint.
func (s *simplifier) bestPosition(q Quadric, pa, pb math.Vec3) math.Vec3 {
	mid := pa.Add(pb).Scale(0.5)
	if p, ok := q.Optimal(); ok && p.Distance(mid) <= pa.Distance(pb) {
		return p
	}
	best, bestCost := pa, q.Evaluate(pa)
	for _, p := range []math.Vec3{pb, mid} {
		if c := q.Evaluate(p); c < bestCost {
			best, bestCost = p, c
		}
	}
	return best
}

// current reports whether neither endpoint changed since c was queued.
func (s *simplifier) current(c *collapse) bool {
	return s.vertAlive[c.From] && s.vertAlive[c.To] &&
		s.stamps[c.From] == c.stamps[0] && s.stamps[c.To] == c.stamps[1]
}

// liveFaces drops dead faces from v's incidence list and returns it.
func (s *simplifier) liveFaces(v int) []int {
	list := s.vertFaces[v][:0]
	for _, f := range s.vertFaces[v] {
		if s.faceAlive[f] {
			list = append(list, f)
		}
	}
	s.vertFaces[v] = list
	return list
}

func (s *simplifier) neighbors(v int) map[int]bool {
	out := make(map[int]bool)
	for _, f := range s.liveFaces(v) {
		for _, w := range s.m.Faces[f] {
			if w != v {
				out[w] = true
			}
		}
	}
	return out
}

func hasVertex(face [3]int, v int) bool {
	return face[0] == v || face[1] == v || face[2] == v
}

// valid checks the link condition and rejects collapses that flip or flatten faces.
func (s *simplifier) valid(c *collapse) bool {
	shared := 0
	for _, f := range s.liveFaces(c.From) {
		if hasVertex(s.m.Faces[f], c.To) {
			shared++
		}
	}
	if shared == 0 {
		return false
	}
	common := 0
	nt := s.neighbors(c.To)
	for w := range s.neighbors(c.From) {
		if nt[w] {
			common++
		}
	}
	if common != shared {
		return false
	}

	return s.keepsOrientation(c.From, c.To, c.Target) && s.keepsOrientation(c.To, c.From, c.Target)
}

// keepsOrientation checks faces around v that survive the collapse when v moves to p.
func (s *simplifier) keepsOrientation(v, other int, p math.Vec3) bool {
	for _, f := range s.liveFaces(v) {
		face := s.m.Faces[f]
		if hasVertex(face, other) {
			continue
		}
		var before, after [3]math.Vec3
		for k, w := range face {
			before[k] = s.m.Positions[w]
			after[k] = before[k]
			if w == v {
				after[k] = p
			}
		}
		n0 := before[1].Sub(before[0]).Cross(before[2].Sub(before[0]))
		n1 := after[1].Sub(after[0]).Cross(after[2].Sub(after[0]))
		l0, l1 := n0.Length(), n1.Length()
		if l1 <= 1e-12*(1+l0) {
			return false
		}
		if l0 > 0 && n0.Dot(n1) < minFlipCosine*l0*l1 {
			return false
		}
	}
	return true
}

// apply performs the collapse and returns how many faces it removed.
func (s *simplifier) apply(c *collapse) int {
	removed := 0
	for _, f := range s.liveFaces(c.From) {
		face := &s.m.Faces[f]
		if hasVertex(*face, c.To) {
			s.faceAlive[f] = false
			removed++
			continue
		}
		for k := range face {
			if face[k] == c.From {
				face[k] = c.To
			}
		}
		s.vertFaces[c.To] = append(s.vertFaces[c.To], f)
	}

	s.blendAttributes(c)
	s.m.Positions[c.To] = c.Target
	s.quadrics[c.To] = s.quadrics[c.To].Add(s.quadrics[c.From])
	s.vertAlive[c.From] = false
	s.vertFaces[c.From] = nil
	s.stamps[c.From]++
	s.stamps[c.To]++

	for w := range s.neighbors(c.To) {
		s.push(c.To, w)
	}
	return removed
}

// blendAttributes interpolates the surviving vertex's normal and texcoord to the
// collapse target along the edge. A locked target keeps its own attributes.
func (s *simplifier) blendAttributes(c *collapse) {
	if s.locked[c.To] {
		return
	}
	a, b := s.m.Positions[c.From], s.m.Positions[c.To]
	ab := b.Sub(a)
	t := float32(0.5)
	if l := ab.Dot(ab); l > 0 {
		t = math.Clamp(c.Target.Sub(a).Dot(ab)/l, 0, 1)
	}
	if s.m.HasNormals() {
		na, nb := s.m.Normals[c.From], s.m.Normals[c.To]
		s.m.Normals[c.To] = na.Scale(1 - t).Add(nb.Scale(t)).Normalize()
	}
	if s.m.HasTexCoords() {
		s.m.TexCoords[c.To] = s.m.TexCoords[c.From].Lerp(s.m.TexCoords[c.To], t)
	}
}

// finish drops dead faces, carries face owners over and compacts the vertices.
func (s *simplifier) finish(groups []int) *Result {
	res := &Result{Mesh: s.m}
	faces := s.m.Faces[:0]
	for f, face := range s.m.Faces {
		if !s.faceAlive[f] {
			continue
		}
		faces = append(faces, face)
		if groups != nil {
			res.FaceGroups = append(res.FaceGroups, groups[f])
		}
	}
	s.m.Faces = faces
	res.Remap = mesh.Compact(s.m)
	return res
}
