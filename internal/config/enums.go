package config

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/nbodysim/internal/physerr"
)

// Integrator selects the time-stepping scheme.
type Integrator int

const (
	Euler Integrator = iota
	Leapfrog
	RK4
)

var integratorNames = []string{"euler", "leapfrog", "rk4"}

func (m Integrator) String() string {
	if m < 0 || int(m) >= len(integratorNames) {
		return "unknown"
	}
	return integratorNames[m]
}

// ParseIntegrator accepts "euler", "leapfrog" (alias "verlet") and "rk4".
func ParseIntegrator(s string) (Integrator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euler":
		return Euler, nil
	case "leapfrog", "verlet":
		return Leapfrog, nil
	case "rk4":
		return RK4, nil
	}
	return 0, physerr.Wrapf(physerr.ErrUnknownOption, "integrator %q", s)
}

func Integrators() []string { return append([]string(nil), integratorNames...) }

func (m Integrator) MarshalYAML() (interface{}, error) { return m.String(), nil }

func (m *Integrator) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseIntegrator(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Interaction selects how gravity is summed.
type Interaction int

const (
	Direct Interaction = iota
	BarnesHut
)

var interactionNames = []string{"direct", "barnes-hut"}

func (m Interaction) String() string {
	if m < 0 || int(m) >= len(interactionNames) {
		return "unknown"
	}
	return interactionNames[m]
}

// ParseInteraction accepts "direct" and "barnes-hut" (also "barnes_hut", "bh").
func ParseInteraction(s string) (Interaction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return Direct, nil
	case "barnes-hut", "barnes_hut", "bh":
		return BarnesHut, nil
	}
	return 0, physerr.Wrapf(physerr.ErrUnknownOption, "interaction model %q", s)
}

func Interactions() []string { return append([]string(nil), interactionNames...) }

func (m Interaction) MarshalYAML() (interface{}, error) { return m.String(), nil }

func (m *Interaction) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseInteraction(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Distribution is the spatial layout of procedurally generated particles.
type Distribution int

const (
	Uniform Distribution = iota
	Gaussian
	Disk
)

var distributionNames = []string{"uniform", "gaussian", "disk"}

func (d Distribution) String() string {
	if d < 0 || int(d) >= len(distributionNames) {
		return "unknown"
	}
	return distributionNames[d]
}

func ParseDistribution(s string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform", "cube":
		return Uniform, nil
	case "gaussian", "normal", "cluster":
		return Gaussian, nil
	case "disk", "disc":
		return Disk, nil
	}
	return 0, physerr.Wrapf(physerr.ErrUnknownOption, "distribution %q", s)
}

func (d Distribution) MarshalYAML() (interface{}, error) { return d.String(), nil }

func (d *Distribution) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseDistribution(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
