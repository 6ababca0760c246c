package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/particles"
)

func Momentum(s *particles.Store) r3.Vec {
	var p r3.Vec
	mass := s.Masses()
	for i, v := range s.Velocities() {
		p = r3.Add(p, r3.Scale(mass[i], v))
	}
	return p
}

func AngularMomentum(s *particles.Store) r3.Vec {
	var l r3.Vec
	mass, vel := s.Masses(), s.Velocities()
	for i, x := range s.Positions() {
		l = r3.Add(l, r3.Scale(mass[i], r3.Cross(x, vel[i])))
	}
	return l
}

// CenterOfMass returns the zero vector for an empty store.
func CenterOfMass(s *particles.Store) r3.Vec {
	var c r3.Vec
	var total float64
	mass := s.Masses()
	for i, x := range s.Positions() {
		c = r3.Add(c, r3.Scale(mass[i], x))
		total += mass[i]
	}
	if total == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/total, c)
}

// MomentumDrift tracks the largest change of total linear momentum,
// relative to the summed momentum magnitudes Σ mi|vi| at the first sample.
type MomentumDrift struct {
	name     string
	initial  r3.Vec
	scale    float64
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(s *particles.Store, t float64) {
	p := Momentum(s)
	if m.samples == 0 {
		m.initial = p
		mass := s.Masses()
		for i, v := range s.Velocities() {
			m.scale += mass[i] * r3.Norm(v)
		}
		if m.scale == 0 {
			m.scale = 1
		}
	}
	m.samples++
	m.maxDrift = math.Max(m.maxDrift, r3.Norm(r3.Sub(p, m.initial))/m.scale)
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = r3.Vec{}
	m.scale = 0
	m.maxDrift = 0
	m.samples = 0
}
