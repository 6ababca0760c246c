package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/physerr"
	"github.com/san-kum/nbodysim/internal/scene"
	"github.com/san-kum/nbodysim/internal/sim"
)

const defaultPreset = "random"

// addSimFlags registers the flags that choose and adjust a configuration.
// Only flags that were set (or whose NBODYSIM_* variable is set) override
// the preset or config file.
func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("preset", "", "named preset ("+strings.Join(config.ListPresets(), ", ")+")")
	f.String("config", "", "YAML config file (overrides --preset)")
	f.String("scene-file", "", "JSON/YAML body list for the initial state")
	f.String("integrator", "", "euler, leapfrog or rk4")
	f.String("interaction", "", "direct or barnes-hut")
	f.StringSlice("forces", nil, "enabled forces (gravity, electromagnetism, dark_matter, fluid_dynamics, relativity)")
	f.Float64("dt", 0, "timestep")
	f.Float64("g", 0, "gravitational constant")
	f.Float64("theta", 0, "Barnes-Hut opening angle")
	f.Float64("softening", 0, "softening length")
	f.Int("leaf-capacity", 0, "bodies per octree leaf")
	f.Float64("c", 0, "speed of light for the relativistic correction")
	f.Int("count", 0, "bodies to generate")
	f.String("distribution", "", "uniform, gaussian or disk")
	f.Int64("seed", 0, "random seed for generated bodies")
}

// buildConfig resolves the configuration: config file, else preset, else
// the default preset, then flag and environment overrides. It returns the
// name runs are saved under.
func buildConfig(v *viper.Viper) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		name string
	)
	switch path, preset := v.GetString("config"), v.GetString("preset"); {
	case path != "":
		loaded, err := config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("config %s: %w", path, err)
		}
		cfg, name = loaded, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	case preset != "":
		cfg, name = config.GetPreset(preset), preset
		if cfg == nil {
			return nil, "", physerr.Wrapf(physerr.ErrUnknownOption, "preset %q (available: %s)",
				preset, strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg, name = config.GetPreset(defaultPreset), defaultPreset
	}

	if v.IsSet("integrator") {
		m, err := config.ParseIntegrator(v.GetString("integrator"))
		if err != nil {
			return nil, "", err
		}
		cfg.Integrator = m
	}
	if v.IsSet("interaction") {
		m, err := config.ParseInteraction(v.GetString("interaction"))
		if err != nil {
			return nil, "", err
		}
		cfg.Interaction = m
	}
	if v.IsSet("forces") {
		flags, err := parseForces(v.GetStringSlice("forces"))
		if err != nil {
			return nil, "", err
		}
		cfg.Forces = flags
	}
	if v.IsSet("distribution") {
		d, err := config.ParseDistribution(v.GetString("distribution"))
		if err != nil {
			return nil, "", err
		}
		cfg.Init.Distribution = d
	}

	floats := map[string]*float64{
		"dt":        &cfg.Dt,
		"g":         &cfg.G,
		"theta":     &cfg.Theta,
		"softening": &cfg.Softening,
		"c":         &cfg.SpeedOfLight,
	}
	for key, dst := range floats {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	if v.IsSet("leaf-capacity") {
		cfg.LeafCapacity = v.GetInt("leaf-capacity")
	}
	if v.IsSet("workers") {
		cfg.Workers = v.GetInt("workers")
	}
	if v.IsSet("seed") {
		cfg.Init.Seed = v.GetInt64("seed")
	}
	if v.IsSet("count") {
		// an explicit count means generated bodies, not the preset's scene
		cfg.Init.Count = v.GetInt("count")
		cfg.Init.Scene = ""
		if cfg.Init.Extent == 0 {
			def := config.DefaultConfig().Init
			def.Count, def.Seed, def.Distribution = cfg.Init.Count, cfg.Init.Seed, cfg.Init.Distribution
			cfg.Init = def
		}
	}
	if v.IsSet("scene-file") {
		cfg.Init.File = v.GetString("scene-file")
		name = strings.TrimSuffix(filepath.Base(cfg.Init.File), filepath.Ext(cfg.Init.File))
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, name, nil
}

// parseForces accepts names separated by commas or whitespace.
func parseForces(names []string) (config.ForceFlags, error) {
	var f config.ForceFlags
	for _, group := range names {
		for _, n := range strings.FieldsFunc(group, func(r rune) bool { return r == ',' || r == ' ' }) {
			switch strings.ToLower(n) {
			case "gravity":
				f.Gravity = true
			case "electromagnetism", "em", "coulomb":
				f.Electromagnetism = true
			case "dark_matter", "dark-matter", "dm":
				f.DarkMatter = true
			case "fluid_dynamics", "fluid", "sph":
				f.FluidDynamics = true
			case "relativity":
				f.Relativity = true
			default:
				return f, physerr.Wrapf(physerr.ErrUnknownOption, "force %q", n)
			}
		}
	}
	return f, nil
}

// newSimulator builds the initial state for cfg and the simulator over it.
func newSimulator(cfg *config.Config, energy bool) (*sim.Simulator, error) {
	store, err := scene.Initialize(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int("particles", store.Len()).
		Str("integrator", cfg.Integrator.String()).
		Str("interaction", cfg.Interaction.String()).
		Strs("forces", cfg.Forces.Enabled()).
		Msg("initial state ready")
	return sim.New(cfg, store, sim.WithLogger(log), sim.WithEnergy(energy))
}
