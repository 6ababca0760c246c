package config

import "sort"

type Preset struct {
	Description string
	Config      *Config
}

var Presets = map[string]Preset{
	"random": {
		Description: "uniform cube of 200 bodies, gravity via Barnes-Hut",
		Config:      DefaultConfig(),
	},
	"binary": {
		Description: "two equal masses on a circular orbit (G=1)",
		Config: with(func(c *Config) {
			c.Interaction = Direct
			c.Init = InitConfig{Scene: "binary"}
		}),
	},
	"solar_system": {
		Description: "sun and eight planets in SI units, one hour per step",
		Config: with(func(c *Config) {
			c.Interaction = Direct
			c.G = 6.67430e-11
			c.Dt = 3600
			c.Init = InitConfig{Scene: "solar_system"}
		}),
	},
	"galaxy": {
		Description: "rotating disk inside a dark-matter halo",
		Config: with(func(c *Config) {
			c.Forces.DarkMatter = true
			c.DarkMatter.V0 = 0.5
			c.Theta = 0.7
			c.Softening = 0.05
			c.Init.Count = 800
			c.Init.Distribution = Disk
			c.Init.Extent = 50
			c.Init.VelMin = 0.3
			c.Init.VelMax = 0.6
		}),
	},
	"plasma": {
		Description: "charged gaussian cloud under Coulomb and gravity",
		Config: with(func(c *Config) {
			c.Interaction = Direct
			c.Forces.Electromagnetism = true
			c.CoulombK = 1
			c.Dt = 0.001
			c.Softening = 0.01
			c.Init.Count = 150
			c.Init.Distribution = Gaussian
			c.Init.Extent = 2
			c.Init.VelMin, c.Init.VelMax = 0, 0
			c.Init.Charged = true
			c.Init.ChargeMin, c.Init.ChargeMax = -1, 1
		}),
	},
	"fluid": {
		Description: "SPH blob with weak self-gravity",
		Config: with(func(c *Config) {
			c.Interaction = Direct
			c.Forces.FluidDynamics = true
			c.G = 0.01
			c.Dt = 0.005
			c.Fluid = Fluid{H: 1, Rho0: 1, Stiffness: 2, Viscosity: 0.2}
			c.Init.Count = 300
			c.Init.Distribution = Gaussian
			c.Init.Extent = 2
			c.Init.VelMin, c.Init.VelMax = 0, 0
			c.Init.MassMin, c.Init.MassMax = 1, 1
		}),
	},
}

func with(fn func(*Config)) *Config {
	c := DefaultConfig()
	fn(c)
	return c
}

// GetPreset returns a copy of the named preset's configuration, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p.Config.Clone()
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
