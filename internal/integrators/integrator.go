// Package integrators advances a particle store by one timestep from a net
// force array.
//
// Every integrator mutates the store in place and returns an error instead
// of writing NaN: a non-positive mass or a force array of the wrong length
// leaves the store untouched.
package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

// Evaluator computes the net force for an arbitrary state. Multi-stage
// methods use it for the intermediate stages.
type Evaluator func(*particles.Store) ([]r3.Vec, error)

type Integrator interface {
	Method() config.Integrator
	Step(s *particles.Store, force []r3.Vec, eval Evaluator, dt float64) error
}

// New returns the integrator for method.
func New(method config.Integrator) (Integrator, error) {
	switch method {
	case config.Euler:
		return NewEuler(), nil
	case config.Leapfrog:
		return NewVerlet(), nil
	case config.RK4:
		return NewRK4(), nil
	}
	return nil, physerr.Wrapf(physerr.ErrUnknownOption, "integrator %d", int(method))
}

// accelerations checks the step inputs and returns force/mass per particle.
func accelerations(s *particles.Store, force []r3.Vec, dt float64) ([]r3.Vec, error) {
	if len(force) != s.Len() {
		return nil, physerr.Wrapf(physerr.ErrInvalidParticleInput, "%d forces for %d particles", len(force), s.Len())
	}
	if !(dt > 0) {
		return nil, physerr.Wrapf(physerr.ErrInvalidConfig, "timestep must be positive, got %g", dt)
	}
	mass := s.Masses()
	acc := make([]r3.Vec, len(force))
	for i, f := range force {
		if !(mass[i] > 0) {
			return nil, physerr.Wrapf(physerr.ErrNumericInstability, "particle %d has mass %g", i, mass[i])
		}
		acc[i] = r3.Scale(1/mass[i], f)
	}
	return acc, nil
}
