package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

// RK4 is classical four-stage Runge-Kutta on (x, v). The first stage uses
// the supplied force; the other three call the evaluator at trial states,
// so each step costs three extra force evaluations.
type RK4 struct {
	k1x, k2x, k3x, k4x []r3.Vec
	k1v, k2v, k3v, k4v []r3.Vec
	x, v               []r3.Vec
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Method() config.Integrator { return config.RK4 }

func (r *RK4) ensureScratch(n int) {
	if len(r.k1x) != n {
		r.k1x, r.k2x, r.k3x, r.k4x = make([]r3.Vec, n), make([]r3.Vec, n), make([]r3.Vec, n), make([]r3.Vec, n)
		r.k1v, r.k2v, r.k3v, r.k4v = make([]r3.Vec, n), make([]r3.Vec, n), make([]r3.Vec, n), make([]r3.Vec, n)
		r.x, r.v = make([]r3.Vec, n), make([]r3.Vec, n)
	}
}

func (r *RK4) Step(s *particles.Store, force []r3.Vec, eval Evaluator, dt float64) error {
	acc, err := accelerations(s, force, dt)
	if err != nil {
		return err
	}
	if eval == nil {
		return physerr.Wrap(physerr.ErrInvalidConfig, "rk4 needs a force evaluator")
	}
	n := s.Len()
	r.ensureScratch(n)
	pos, vel := s.Positions(), s.Velocities()

	copy(r.k1x, vel)
	copy(r.k1v, acc)

	// stage computes k = f(y0 + h·kPrev) into kx, kv
	stage := func(h float64, px, pv, kx, kv []r3.Vec) error {
		for i := 0; i < n; i++ {
			r.x[i] = r3.Add(pos[i], r3.Scale(h, px[i]))
			r.v[i] = r3.Add(vel[i], r3.Scale(h, pv[i]))
		}
		trial := s.WithState(r.x, r.v)
		f, err := eval(trial)
		if err != nil {
			return err
		}
		a, err := accelerations(trial, f, dt)
		if err != nil {
			return err
		}
		copy(kx, r.v)
		copy(kv, a)
		return nil
	}

	if err := stage(0.5*dt, r.k1x, r.k1v, r.k2x, r.k2v); err != nil {
		return err
	}
	if err := stage(0.5*dt, r.k2x, r.k2v, r.k3x, r.k3v); err != nil {
		return err
	}
	if err := stage(dt, r.k3x, r.k3v, r.k4x, r.k4v); err != nil {
		return err
	}

	dt6 := dt / 6
	for i := 0; i < n; i++ {
		dx := r3.Add(r3.Add(r.k1x[i], r3.Scale(2, r3.Add(r.k2x[i], r.k3x[i]))), r.k4x[i])
		dv := r3.Add(r3.Add(r.k1v[i], r3.Scale(2, r3.Add(r.k2v[i], r.k3v[i]))), r.k4v[i])
		pos[i] = r3.Add(pos[i], r3.Scale(dt6, dx))
		vel[i] = r3.Add(vel[i], r3.Scale(dt6, dv))
	}
	s.DropPrevious()
	return nil
}
