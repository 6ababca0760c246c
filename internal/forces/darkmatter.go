package forces

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/particles"
)

// DarkMatter pulls every particle toward the origin with magnitude m·v0²/r,
// the force that keeps a circular orbit at speed v0 for any radius. It is a
// flat-rotation-curve heuristic, not a halo model. Particles within the
// softening length of the origin feel nothing.
type DarkMatter struct {
	V0        float64
	Softening float64
}

func NewDarkMatter(v0, softening float64) *DarkMatter {
	return &DarkMatter{V0: v0, Softening: softening}
}

func (m *DarkMatter) Name() string { return "dark_matter" }

func (m *DarkMatter) Params() map[string]float64 {
	return map[string]float64{"v0": m.V0}
}

func (m *DarkMatter) Compute(s *particles.Store) ([]r3.Vec, error) {
	pos, mass := s.Positions(), s.Masses()
	out := make([]r3.Vec, len(pos))
	v2 := m.V0 * m.V0
	for i, p := range pos {
		r2 := r3.Norm2(p)
		if r2 == 0 || r2 <= m.Softening*m.Softening {
			continue
		}
		out[i] = r3.Scale(-mass[i]*v2/r2, p)
	}
	return out, nil
}
