// Package forces implements the per-particle force models and the composer
// that sums them into one net force per tick.
//
// Every model is deterministic and side-effect free on the store: Compute
// reads the columns it needs and returns a freshly allocated N-row force
// array. A model whose input column is absent (charge for Coulomb) returns
// zeros rather than an error. The O(N²) loops are split across the compute
// backend by outer particle index; each worker writes only its own rows.
package forces

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/octree"
	"github.com/san-kum/nbodysim/internal/particles"
)

type Model interface {
	Name() string
	Compute(s *particles.Store) ([]r3.Vec, error)
}

// Configurable exposes a model's tunable parameters, mirroring what the
// live view and the CLI summary print.
type Configurable interface {
	Params() map[string]float64
}

// gravityKernel returns the softened Newtonian pair force
// G·mi·mj·(pj−pi)/(|pj−pi|+ε)³. Coincident points with zero softening
// contribute nothing.
func gravityKernel(g, softening float64) octree.Kernel {
	return func(pi, pj r3.Vec, mi, mj float64) r3.Vec {
		d := r3.Sub(pj, pi)
		dist := r3.Norm(d) + softening
		if dist == 0 {
			return r3.Vec{}
		}
		return r3.Scale(g*mi*mj/(dist*dist*dist), d)
	}
}
