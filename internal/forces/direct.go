package forces

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/particles"
)

// DirectGravity sums every pair. It is the baseline the tree is checked against.
type DirectGravity struct {
	G         float64
	Softening float64
	backend   compute.Backend
}

func NewDirectGravity(g, softening float64, backend compute.Backend) *DirectGravity {
	if backend == nil {
		backend = compute.Serial()
	}
	return &DirectGravity{G: g, Softening: softening, backend: backend}
}

func (m *DirectGravity) Name() string { return "gravity/direct" }

func (m *DirectGravity) Params() map[string]float64 {
	return map[string]float64{"G": m.G, "softening": m.Softening}
}

func (m *DirectGravity) Compute(s *particles.Store) ([]r3.Vec, error) {
	pos, mass := s.Positions(), s.Masses()
	out := make([]r3.Vec, len(pos))
	kernel := gravityKernel(m.G, m.Softening)

	err := m.backend.For(len(pos), func(start, end int) {
		for i := start; i < end; i++ {
			var f r3.Vec
			for j := range pos {
				if j == i {
					continue
				}
				f = r3.Add(f, kernel(pos[i], pos[j], mass[i], mass[j]))
			}
			out[i] = f
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
