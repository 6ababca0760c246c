package forces

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/particles"
)

// Coulomb is the pairwise electrostatic force k·qi·qj·(ri−rj)/(|ri−rj|+ε)³.
// Like charges repel.
type Coulomb struct {
	K         float64
	Softening float64
	backend   compute.Backend
}

func NewCoulomb(k, softening float64, backend compute.Backend) *Coulomb {
	if backend == nil {
		backend = compute.Serial()
	}
	return &Coulomb{K: k, Softening: softening, backend: backend}
}

func (m *Coulomb) Name() string { return "electromagnetism" }

func (m *Coulomb) Params() map[string]float64 {
	return map[string]float64{"k": m.K, "softening": m.Softening}
}

func (m *Coulomb) Compute(s *particles.Store) ([]r3.Vec, error) {
	pos := s.Positions()
	out := make([]r3.Vec, len(pos))
	q := s.Charges()
	if q == nil {
		return out, nil
	}

	err := m.backend.For(len(pos), func(start, end int) {
		for i := start; i < end; i++ {
			if q[i] == 0 {
				continue
			}
			var f r3.Vec
			for j := range pos {
				if j == i || q[j] == 0 {
					continue
				}
				d := r3.Sub(pos[i], pos[j])
				dist := r3.Norm(d) + m.Softening
				if dist == 0 {
					continue
				}
				f = r3.Add(f, r3.Scale(m.K*q[i]*q[j]/(dist*dist*dist), d))
			}
			out[i] = f
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
