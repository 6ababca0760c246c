package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
)

func KineticEnergy(s *particles.Store) float64 {
	var ke float64
	mass := s.Masses()
	for i, v := range s.Velocities() {
		ke += 0.5 * mass[i] * r3.Norm2(v)
	}
	return ke
}

// PotentialEnergy is the pairwise gravitational energy −G·mi·mj/(r+ε).
func PotentialEnergy(s *particles.Store, g, softening float64) float64 {
	pos, mass := s.Positions(), s.Masses()
	var pe float64
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			r := r3.Norm(r3.Sub(pos[j], pos[i])) + softening
			if r == 0 {
				continue
			}
			pe -= g * mass[i] * mass[j] / r
		}
	}
	return pe
}

// ElectricPotentialEnergy is k·qi·qj/(r+ε) over pairs; zero without charges.
func ElectricPotentialEnergy(s *particles.Store, k, softening float64) float64 {
	q := s.Charges()
	if q == nil {
		return 0
	}
	pos := s.Positions()
	var pe float64
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			r := r3.Norm(r3.Sub(pos[j], pos[i])) + softening
			if r == 0 {
				continue
			}
			pe += k * q[i] * q[j] / r
		}
	}
	return pe
}

// TotalEnergy adds the potential terms of the enabled conservative forces
// to the kinetic energy. Dark matter and SPH have no potential here.
func TotalEnergy(s *particles.Store, cfg *config.Config) float64 {
	e := KineticEnergy(s)
	if cfg.Forces.Gravity {
		e += PotentialEnergy(s, cfg.G, cfg.Softening)
	}
	if cfg.Forces.Electromagnetism {
		e += ElectricPotentialEnergy(s, cfg.CoulombK, cfg.Softening)
	}
	return e
}

// EnergyDrift tracks the largest relative deviation of the total energy
// from the first observed value.
type EnergyDrift struct {
	name          string
	cfg           *config.Config
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(cfg *config.Config) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		cfg:  cfg,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s *particles.Store, t float64) {
	energy := TotalEnergy(s, e.cfg)

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

// Current is the most recently observed total energy.
func (e *EnergyDrift) Current() float64 { return e.currentEnergy }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
