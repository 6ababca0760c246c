package config

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/nbodysim/internal/physerr"
)

const (
	DefaultDt           = 0.01
	DefaultG            = 1.0
	DefaultTheta        = 0.5
	DefaultSoftening    = 1e-5
	DefaultLeafCapacity = 1
	DefaultCoulombK     = 8.9875517923e9
	DefaultSpeedOfLight = 299792458.0
	DefaultCount        = 200
	DefaultExtent       = 10.0
)

type Config struct {
	Integrator  Integrator  `yaml:"integrator"`
	Interaction Interaction `yaml:"interaction_model"`
	Forces      ForceFlags  `yaml:"physics"`
	Dt          float64     `yaml:"timestep"`
	G           float64     `yaml:"g"`
	// Theta is the Barnes-Hut opening threshold; 0 sums every pair exactly.
	// Larger values trade accuracy for speed, and a node holding the particle
	// being evaluated is always opened.
	Theta        float64    `yaml:"theta"`
	Softening    float64    `yaml:"softening"`
	LeafCapacity int        `yaml:"leaf_capacity"`
	CoulombK     float64    `yaml:"coulomb_k"`
	SpeedOfLight float64    `yaml:"speed_of_light"`
	DarkMatter   DarkMatter `yaml:"dark_matter"`
	Fluid        Fluid      `yaml:"fluid"`
	// Workers is the size of the force worker pool; 0 means one per CPU.
	Workers int        `yaml:"workers"`
	Init    InitConfig `yaml:"init"`
}

// ForceFlags enables force categories. Gravity is summed directly or through
// the tree according to Config.Interaction; the rest are always direct.
type ForceFlags struct {
	Gravity          bool `yaml:"gravity"`
	Electromagnetism bool `yaml:"electromagnetism"`
	DarkMatter       bool `yaml:"dark_matter"`
	FluidDynamics    bool `yaml:"fluid_dynamics"`
	Relativity       bool `yaml:"relativity"`
}

// Enabled lists the names of the enabled categories in pipeline order.
func (f ForceFlags) Enabled() []string {
	var out []string
	if f.Gravity {
		out = append(out, "gravity")
	}
	if f.Electromagnetism {
		out = append(out, "electromagnetism")
	}
	if f.DarkMatter {
		out = append(out, "dark_matter")
	}
	if f.FluidDynamics {
		out = append(out, "fluid_dynamics")
	}
	if f.Relativity {
		out = append(out, "relativity")
	}
	return out
}

// DarkMatter parameterises the flat-rotation-curve halo force.
type DarkMatter struct {
	V0 float64 `yaml:"v0"`
}

// Fluid parameterises the SPH model.
type Fluid struct {
	H         float64 `yaml:"h"`
	Rho0      float64 `yaml:"rho0"`
	Stiffness float64 `yaml:"stiffness"`
	Viscosity float64 `yaml:"viscosity"`
}

// InitConfig describes the initial particle set. A non-empty File or Scene
// takes precedence over procedural generation.
type InitConfig struct {
	File         string       `yaml:"file,omitempty"`
	Scene        string       `yaml:"scene,omitempty"`
	Count        int          `yaml:"count"`
	Distribution Distribution `yaml:"distribution"`
	Extent       float64      `yaml:"extent"`
	VelMin       float64      `yaml:"vel_min"`
	VelMax       float64      `yaml:"vel_max"`
	MassMin      float64      `yaml:"mass_min"`
	MassMax      float64      `yaml:"mass_max"`
	Charged      bool         `yaml:"charged"`
	ChargeMin    float64      `yaml:"charge_min"`
	ChargeMax    float64      `yaml:"charge_max"`
	Seed         int64        `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		Integrator:   Leapfrog,
		Interaction:  BarnesHut,
		Forces:       ForceFlags{Gravity: true},
		Dt:           DefaultDt,
		G:            DefaultG,
		Theta:        DefaultTheta,
		Softening:    DefaultSoftening,
		LeafCapacity: DefaultLeafCapacity,
		CoulombK:     DefaultCoulombK,
		SpeedOfLight: DefaultSpeedOfLight,
		DarkMatter:   DarkMatter{V0: 1},
		Fluid:        Fluid{H: 1, Rho0: 1, Stiffness: 1, Viscosity: 0.1},
		Init: InitConfig{
			Count:        DefaultCount,
			Distribution: Uniform,
			Extent:       DefaultExtent,
			VelMin:       -0.1,
			VelMax:       0.1,
			MassMin:      0.5,
			MassMax:      1.5,
			Seed:         1,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown enum names fail with
// ErrUnknownOption; the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

func (c *Config) Validate() error {
	switch {
	case !(c.Dt > 0) || math.IsInf(c.Dt, 0):
		return physerr.Wrapf(physerr.ErrInvalidConfig, "timestep must be positive, got %g", c.Dt)
	case !(c.G >= 0):
		return physerr.Wrapf(physerr.ErrInvalidConfig, "G must be non-negative, got %g", c.G)
	case !(c.Theta >= 0):
		return physerr.Wrapf(physerr.ErrInvalidConfig, "theta must be non-negative, got %g", c.Theta)
	case !(c.Softening >= 0):
		return physerr.Wrapf(physerr.ErrInvalidConfig, "softening must be non-negative, got %g", c.Softening)
	case c.LeafCapacity < 1:
		return physerr.Wrapf(physerr.ErrInvalidConfig, "leaf capacity must be at least 1, got %d", c.LeafCapacity)
	case c.Workers < 0:
		return physerr.Wrapf(physerr.ErrInvalidConfig, "workers must be non-negative, got %d", c.Workers)
	case c.Integrator < Euler || c.Integrator > RK4:
		return physerr.Wrapf(physerr.ErrUnknownOption, "integrator %d", int(c.Integrator))
	case c.Interaction < Direct || c.Interaction > BarnesHut:
		return physerr.Wrapf(physerr.ErrUnknownOption, "interaction model %d", int(c.Interaction))
	}

	if c.Forces.Relativity && !(c.SpeedOfLight > 0) {
		return physerr.Wrapf(physerr.ErrInvalidConfig, "speed of light must be positive, got %g", c.SpeedOfLight)
	}
	if c.Forces.DarkMatter && !(c.DarkMatter.V0 >= 0) {
		return physerr.Wrapf(physerr.ErrInvalidConfig, "dark matter v0 must be non-negative, got %g", c.DarkMatter.V0)
	}
	if c.Forces.FluidDynamics {
		f := c.Fluid
		if !(f.H > 0) {
			return physerr.Wrapf(physerr.ErrInvalidConfig, "fluid kernel radius must be positive, got %g", f.H)
		}
		if !(f.Rho0 >= 0) || !(f.Stiffness >= 0) || !(f.Viscosity >= 0) {
			return physerr.Wrap(physerr.ErrInvalidConfig, "fluid rho0, stiffness and viscosity must be non-negative")
		}
	}
	return c.Init.validate()
}

func (in InitConfig) validate() error {
	if in.File != "" || in.Scene != "" {
		return nil
	}
	switch {
	case in.Count < 0:
		return physerr.Wrapf(physerr.ErrInvalidConfig, "particle count must be non-negative, got %d", in.Count)
	case in.Count == 0:
		return nil
	case in.Distribution < Uniform || in.Distribution > Disk:
		return physerr.Wrapf(physerr.ErrUnknownOption, "distribution %d", int(in.Distribution))
	case !(in.Extent > 0):
		return physerr.Wrapf(physerr.ErrInvalidConfig, "extent must be positive, got %g", in.Extent)
	case !(in.MassMin > 0) || in.MassMax < in.MassMin:
		return physerr.Wrapf(physerr.ErrInvalidConfig, "mass range [%g, %g] must be positive and ordered", in.MassMin, in.MassMax)
	case in.VelMax < in.VelMin:
		return physerr.Wrapf(physerr.ErrInvalidConfig, "velocity range [%g, %g] is reversed", in.VelMin, in.VelMax)
	case in.Charged && in.ChargeMax < in.ChargeMin:
		return physerr.Wrapf(physerr.ErrInvalidConfig, "charge range [%g, %g] is reversed", in.ChargeMin, in.ChargeMax)
	}
	return nil
}
