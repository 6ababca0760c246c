package forces

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/octree"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

// TreeStats describes the most recent Barnes-Hut evaluation.
type TreeStats struct {
	Nodes          int
	Depth          int
	DirectFallback bool
}

// BarnesHut approximates gravity through an octree rebuilt on every call.
// When every particle coincides the tree cannot be built and the step falls
// back to direct summation.
type BarnesHut struct {
	G            float64
	Softening    float64
	Theta        float64
	LeafCapacity int

	backend compute.Backend
	direct  *DirectGravity
	stats   TreeStats
}

func NewBarnesHut(g, softening, theta float64, leafCapacity int, backend compute.Backend) *BarnesHut {
	if backend == nil {
		backend = compute.Serial()
	}
	return &BarnesHut{
		G:            g,
		Softening:    softening,
		Theta:        theta,
		LeafCapacity: leafCapacity,
		backend:      backend,
		direct:       NewDirectGravity(g, softening, backend),
	}
}

func (m *BarnesHut) Name() string { return "gravity/barnes-hut" }

func (m *BarnesHut) Params() map[string]float64 {
	return map[string]float64{
		"G":             m.G,
		"softening":     m.Softening,
		"theta":         m.Theta,
		"leaf_capacity": float64(m.LeafCapacity),
	}
}

// Stats reports the tree built by the last Compute call.
func (m *BarnesHut) Stats() TreeStats { return m.stats }

func (m *BarnesHut) Compute(s *particles.Store) ([]r3.Vec, error) {
	pos, mass := s.Positions(), s.Masses()

	tree, err := octree.Build(pos, mass, m.LeafCapacity)
	if errors.Is(err, physerr.ErrDegenerateGeometry) {
		m.stats = TreeStats{DirectFallback: true}
		return m.direct.Compute(s)
	}
	if err != nil {
		return nil, err
	}
	m.stats = TreeStats{Nodes: tree.Len(), Depth: tree.Depth()}

	// the tree is complete and aggregated here; traversal only reads it
	out := make([]r3.Vec, len(pos))
	kernel := gravityKernel(m.G, m.Softening)
	err = m.backend.For(len(pos), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = tree.ForceOn(i, pos, mass, m.Theta, kernel)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
