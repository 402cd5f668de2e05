package nanite

import (
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/Faultbox/nanite-lod/internal/mesh"
)

// Source is a named mesh to build a chain for.
type Source struct {
	Name string
	Mesh *mesh.Mesh
}

// BuildChains builds one chain per source concurrently, at most parallelism at a
// time (0 means one per CPU). Levels within a chain stay sequential. Results
// follow the order of sources; the first failure by source order is returned.
func (b *Builder) BuildChains(sources []Source, parallelism int) ([]*Chain, error) {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	pool := pond.NewPool(parallelism)
	defer pool.StopAndWait()

	chains := make([]*Chain, len(sources))
	errs := make([]error, len(sources))
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			chains[i], errs[i] = b.Build(src.Name, src.Mesh)
		})
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return chains, nil
}
