package analysis

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/forces"
	"github.com/san-kum/nbodysim/internal/integrators"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

type LyapunovResult struct {
	// Exponent is the estimate after the last step, in 1/time.
	Exponent float64
	Steps    int
	// Running holds the estimate after every step.
	Running []float64
}

// Lyapunov estimates the largest Lyapunov exponent of the system started
// from initial. A copy with body 0 displaced by perturbation along x is
// advanced alongside; after every step their phase-space separation d is
// recorded as ln(d/perturbation) and the copy is pulled back to distance
// perturbation along the same direction.
//
//	λ ≈ Σ ln(d_k/d0) / (steps·dt)
func Lyapunov(
	ctx context.Context,
	cfg *config.Config,
	initial *particles.Store,
	steps int,
	perturbation float64,
	backend compute.Backend,
) (LyapunovResult, error) {
	if initial.Len() == 0 {
		return LyapunovResult{}, physerr.Wrap(physerr.ErrInvalidParticleInput, "no particles")
	}
	if steps <= 0 {
		return LyapunovResult{}, physerr.Wrapf(physerr.ErrInvalidConfig, "steps must be positive, got %d", steps)
	}
	if !(perturbation > 0) {
		return LyapunovResult{}, physerr.Wrapf(physerr.ErrInvalidConfig, "perturbation must be positive, got %g", perturbation)
	}
	if err := cfg.Validate(); err != nil {
		return LyapunovResult{}, err
	}

	composer, err := forces.NewComposer(cfg, backend)
	if err != nil {
		return LyapunovResult{}, err
	}
	// RK4 keeps scratch space, so each trajectory gets its own integrator
	refInteg, err := integrators.New(cfg.Integrator)
	if err != nil {
		return LyapunovResult{}, err
	}
	pertInteg, _ := integrators.New(cfg.Integrator)

	ref := initial.Clone()
	pert := initial.Clone()
	pert.Positions()[0].X += perturbation

	res := LyapunovResult{Running: make([]float64, 0, steps)}
	var sumLog float64

	for k := 0; k < steps; k++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := advance(composer, refInteg, ref, cfg.Dt); err != nil {
			return res, err
		}
		if err := advance(composer, pertInteg, pert, cfg.Dt); err != nil {
			return res, err
		}

		if d := separation(ref, pert); d > 0 {
			sumLog += math.Log(d / perturbation)
			pullBack(ref, pert, perturbation/d)
		}
		res.Steps++
		res.Exponent = sumLog / (float64(res.Steps) * cfg.Dt)
		res.Running = append(res.Running, res.Exponent)
	}
	return res, nil
}

func advance(c *forces.Composer, integ integrators.Integrator, s *particles.Store, dt float64) error {
	force, _, err := c.NetForce(s)
	if err != nil {
		return err
	}
	if err := integ.Step(s, force, c.Evaluate, dt); err != nil {
		return err
	}
	return s.CheckFinite()
}

func separation(a, b *particles.Store) float64 {
	var sum float64
	ap, bp := a.Positions(), b.Positions()
	av, bv := a.Velocities(), b.Velocities()
	for i := range ap {
		sum += r3.Norm2(r3.Sub(bp[i], ap[i])) + r3.Norm2(r3.Sub(bv[i], av[i]))
	}
	return math.Sqrt(sum)
}

// pullBack scales the offset of pert from ref by k, including the previous
// positions a leapfrog step carries.
func pullBack(ref, pert *particles.Store, k float64) {
	rescale := func(r, p []r3.Vec) {
		for i := range p {
			p[i] = r3.Add(r[i], r3.Scale(k, r3.Sub(p[i], r[i])))
		}
	}
	rescale(ref.Positions(), pert.Positions())
	rescale(ref.Velocities(), pert.Velocities())
	if rp, pp := ref.Previous(), pert.Previous(); rp != nil && len(rp) == len(pp) {
		rescale(rp, pp)
	}
}
