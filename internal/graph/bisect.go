package graph

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Bisection is the built-in Partitioner. It splits the vertex set recursively: each
// split grows one side breadth-first from a pseudo-peripheral vertex until it holds its
// share of the vertices, then greedily moves boundary vertices that reduce the cut while
// staying inside the balance tolerance.
type Bisection struct {
	RefinePasses int     // Boundary refinement sweeps per split
	Imbalance    float64 // Allowed deviation from the target side size, as a fraction
}

// NewBisection returns a Bisection with default refinement settings.
func NewBisection() *Bisection {
	return &Bisection{RefinePasses: 8, Imbalance: 0.03}
}

// Partition implements Partitioner.
func (b *Bisection) Partition(g *CSR, parts int, seed uint64) ([]int, error) {
	if parts < 1 {
		return nil, fmt.Errorf("bisection: need at least one part, got %d", parts)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	n := g.NumVertices()
	out := make([]int, n)
	if parts == 1 || n == 0 {
		return out, nil
	}

	s := &bisector{
		g:      g,
		local:  make([]int32, n),
		passes: b.RefinePasses,
		slack:  b.Imbalance,
		rng:    rand.New(rand.NewSource(seed)),
	}
	for i := range s.local {
		s.local[i] = -1
	}

	verts := make([]int32, n)
	for i := range verts {
		verts[i] = int32(i)
	}
	s.split(verts, parts, 0, out)
	return out, nil
}

type bisector struct {
	g      *CSR
	local  []int32 // global vertex -> index in the current subset, -1 outside
	passes int
	slack  float64
	rng    *rand.Rand
}

func (s *bisector) split(verts []int32, parts, base int, out []int) {
	if parts == 1 || len(verts) <= 1 {
		for _, v := range verts {
			out[v] = base
		}
		return
	}

	left := parts / 2
	target := len(verts) * left / parts
	side := s.bisect(verts, target)

	a := make([]int32, 0, target)
	b := make([]int32, 0, len(verts)-target)
	for i, v := range verts {
		if side[i] {
			a = append(a, v)
		} else {
			b = append(b, v)
		}
	}

	s.split(a, left, base, out)
	s.split(b, parts-left, base+left, out)
}

// bisect returns side[i] == true for the vertices placed in the first half.
func (s *bisector) bisect(verts []int32, target int) []bool {
	m := len(verts)
	for i, v := range verts {
		s.local[v] = int32(i)
	}
	defer func() {
		for _, v := range verts {
			s.local[v] = -1
		}
	}()

	side := make([]bool, m)
	if target <= 0 {
		return side
	}

	start := s.farthest(verts, s.rng.Intn(m))
	start = s.farthest(verts, start)

	visited := make([]bool, m)
	queue := []int{start}
	visited[start] = true
	next, count := 0, 0
	for count < target {
		if len(queue) == 0 {
			// Exhausted a component (or reached padding); continue with the next unvisited vertex.
			for visited[next] {
				next++
			}
			visited[next] = true
			queue = append(queue, next)
		}
		v := queue[0]
		queue = queue[1:]
		side[v] = true
		count++

		adj, _ := s.g.Neighbors(int(verts[v]))
		for _, u := range adj {
			lu := s.local[u]
			if lu >= 0 && !visited[lu] {
				visited[lu] = true
				queue = append(queue, int(lu))
			}
		}
	}

	s.refine(verts, side, target)
	return side
}

// farthest returns the subset vertex reached last by a breadth-first walk from start.
func (s *bisector) farthest(verts []int32, start int) int {
	visited := make([]bool, len(verts))
	queue := []int{start}
	visited[start] = true
	last := start
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		last = v
		adj, _ := s.g.Neighbors(int(verts[v]))
		for _, u := range adj {
			lu := s.local[u]
			if lu >= 0 && !visited[lu] {
				visited[lu] = true
				queue = append(queue, int(lu))
			}
		}
	}
	return last
}

func (s *bisector) refine(verts []int32, side []bool, target int) {
	tol := int(s.slack * float64(len(verts)))
	if tol < 1 {
		tol = 1
	}
	countA := target

	for pass := 0; pass < s.passes; pass++ {
		moved := false
		for i, v := range verts {
			gain := 0
			adj, w := s.g.Neighbors(int(v))
			for k, u := range adj {
				lu := s.local[u]
				if lu < 0 {
					continue
				}
				if side[lu] == side[i] {
					gain -= int(w[k])
				} else {
					gain += int(w[k])
				}
			}
			if gain <= 0 {
				continue
			}
			if side[i] {
				if countA-1 < target-tol {
					continue
				}
				countA--
			} else {
				if countA+1 > target+tol {
					continue
				}
				countA++
			}
			side[i] = !side[i]
			moved = true
		}
		if !moved {
			break
		}
	}
}
