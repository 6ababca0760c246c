package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
)

// Verlet is position Verlet (leapfrog). It keeps the previous position
// column in the store, seeding it as x − v·dt on first use:
//
//	x' = 2x − x_prev + a·dt²,  x_prev ← x,  x ← x'
//
// Velocity is not needed by the update. It is refreshed as the drift
// velocity (x'−x)/dt plus half a kick, which estimates v at x' to second
// order for energy reporting and velocity-dependent forces.
type Verlet struct{}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Method() config.Integrator { return config.Leapfrog }

func (v *Verlet) Step(s *particles.Store, force []r3.Vec, _ Evaluator, dt float64) error {
	acc, err := accelerations(s, force, dt)
	if err != nil {
		return err
	}
	s.EnsurePrevious(dt)
	pos, vel, prev := s.Positions(), s.Velocities(), s.Previous()
	dt2 := dt * dt
	for i := range pos {
		next := r3.Add(r3.Sub(r3.Scale(2, pos[i]), prev[i]), r3.Scale(dt2, acc[i]))
		drift := r3.Scale(1/dt, r3.Sub(next, pos[i]))
		vel[i] = r3.Add(drift, r3.Scale(0.5*dt, acc[i]))
		prev[i] = pos[i]
		pos[i] = next
	}
	return nil
}

// Leapfrog is the same scheme under its other name.
type Leapfrog = Verlet

func NewLeapfrog() *Leapfrog { return NewVerlet() }
