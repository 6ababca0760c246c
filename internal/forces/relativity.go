package forces

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

// Relativity scales an already composed net force by 1/γ³. It is a
// corrector, not an additive model.
type Relativity struct {
	C float64
}

func NewRelativity(c float64) *Relativity { return &Relativity{C: c} }

func (r *Relativity) Name() string { return "relativity" }

func (r *Relativity) Params() map[string]float64 {
	return map[string]float64{"c": r.C}
}

// Apply rewrites net in place. A particle at or above the speed of light
// yields ErrNumericInstability and leaves net untouched.
func (r *Relativity) Apply(s *particles.Store, net []r3.Vec) error {
	vel := s.Velocities()
	c2 := r.C * r.C
	for i, v := range vel {
		if beta2 := r3.Norm2(v) / c2; !(beta2 < 1) {
			return physerr.Wrapf(physerr.ErrNumericInstability,
				"particle %d speed %g is not below c=%g", i, r3.Norm(v), r.C)
		}
	}
	for i, v := range vel {
		beta2 := r3.Norm2(v) / c2
		// 1/γ³ = (1−β²)^(3/2)
		net[i] = r3.Scale(math.Pow(1-beta2, 1.5), net[i])
	}
	return nil
}
