package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
)

// Euler is the explicit first-order scheme: x += v·dt with the old velocity,
// then v += a·dt. Its energy error grows without bound on closed orbits.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Method() config.Integrator { return config.Euler }

func (e *Euler) Step(s *particles.Store, force []r3.Vec, _ Evaluator, dt float64) error {
	acc, err := accelerations(s, force, dt)
	if err != nil {
		return err
	}
	pos, vel := s.Positions(), s.Velocities()
	for i := range pos {
		pos[i] = r3.Add(pos[i], r3.Scale(dt, vel[i]))
		vel[i] = r3.Add(vel[i], r3.Scale(dt, acc[i]))
	}
	s.DropPrevious()
	return nil
}
