package forces

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/particles"
)

// SPH is a minimal smoothed-particle-hydrodynamics model with the Gaussian
// kernel W(d) = exp(−d²/h²). Density includes the particle's own mass;
// pressure is the linear equation of state P = k(ρ−ρ0).
type SPH struct {
	H         float64
	Rho0      float64
	Stiffness float64
	Viscosity float64
	backend   compute.Backend
}

func NewSPH(h, rho0, stiffness, viscosity float64, backend compute.Backend) *SPH {
	if backend == nil {
		backend = compute.Serial()
	}
	return &SPH{H: h, Rho0: rho0, Stiffness: stiffness, Viscosity: viscosity, backend: backend}
}

func (m *SPH) Name() string { return "fluid_dynamics" }

func (m *SPH) Params() map[string]float64 {
	return map[string]float64{"h": m.H, "rho0": m.Rho0, "stiffness": m.Stiffness, "viscosity": m.Viscosity}
}

func (m *SPH) kernel(d2 float64) float64 {
	return math.Exp(-d2 / (m.H * m.H))
}

// Densities is the first pass: ρi = Σj mj·W(|ri−rj|) over all j, self included.
func (m *SPH) Densities(s *particles.Store) ([]float64, error) {
	pos, mass := s.Positions(), s.Masses()
	rho := make([]float64, len(pos))
	err := m.backend.For(len(pos), func(start, end int) {
		for i := start; i < end; i++ {
			var sum float64
			for j := range pos {
				sum += mass[j] * m.kernel(r3.Norm2(r3.Sub(pos[i], pos[j])))
			}
			rho[i] = sum
		}
	})
	if err != nil {
		return nil, err
	}
	return rho, nil
}

// Compute runs both passes. The pressure pass starts only after every
// density is known. The returned force is mi times the SPH acceleration
//
//	ai = Σj≠i −mj(Pi/ρi² + Pj/ρj²)∇W(rij) + μ·mj(vj−vi)/ρj·W(rij)
//
// with ∇W(r) = −2r·W/h².
func (m *SPH) Compute(s *particles.Store) ([]r3.Vec, error) {
	rho, err := m.Densities(s)
	if err != nil {
		return nil, err
	}
	press := make([]float64, len(rho))
	for i, r := range rho {
		press[i] = m.Stiffness * (r - m.Rho0)
	}

	pos, vel, mass := s.Positions(), s.Velocities(), s.Masses()
	out := make([]r3.Vec, len(pos))
	h2 := m.H * m.H
	err = m.backend.For(len(pos), func(start, end int) {
		for i := start; i < end; i++ {
			pi := press[i] / (rho[i] * rho[i])
			var a r3.Vec
			for j := range pos {
				if j == i {
					continue
				}
				rij := r3.Sub(pos[i], pos[j])
				w := m.kernel(r3.Norm2(rij))
				if w == 0 {
					continue
				}
				grad := r3.Scale(-2*w/h2, rij)
				pj := press[j] / (rho[j] * rho[j])
				a = r3.Add(a, r3.Scale(-mass[j]*(pi+pj), grad))
				a = r3.Add(a, r3.Scale(m.Viscosity*mass[j]*w/rho[j], r3.Sub(vel[j], vel[i])))
			}
			out[i] = r3.Scale(mass[i], a)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
