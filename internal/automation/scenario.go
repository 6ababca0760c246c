// Package automation runs scripted scenarios and Monte Carlo studies on top
// of the simulator.
package automation

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/physerr"
	"github.com/san-kum/nbodysim/internal/scene"
	"github.com/san-kum/nbodysim/internal/sim"
)

// Scenario drives one simulation through a sequence of stages:
//
//	name: kick
//	preset: binary
//	config: {integrator: rk4}
//	stages:
//	  - {name: settle, steps: 200}
//	  - name: intruder
//	    steps: 300
//	    config: {timestep: 0.005}
//	    add: [{position: [3, 0, 0], velocity: [-1, 0, 0], mass: 0.1}]
//
// config blocks use the keys of a config file and are laid over the current
// configuration, so only the keys present change.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Preset      string    `yaml:"preset"`
	ConfigFile  string    `yaml:"config_file"`
	Config      yaml.Node `yaml:"config"`
	Stages      []Stage   `yaml:"stages"`

	dir string
}

// Stage changes the simulation, then runs it. Removals are requested
// before additions, in the order listed.
type Stage struct {
	Name   string           `yaml:"name"`
	Steps  int              `yaml:"steps"`
	Config yaml.Node        `yaml:"config"`
	Add    []scene.BodySpec `yaml:"add"`
	Remove []int            `yaml:"remove"`
	Resume bool             `yaml:"resume"`
}

type StageResult struct {
	Name   string
	Result *sim.Result
	// MutationErrors are the add and remove requests the stage's first
	// tick (or the immediate apply of a zero-step stage) rejected.
	MutationErrors []error
}

// LoadScenario reads a YAML scenario. Relative config_file paths are
// resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, physerr.Wrapf(physerr.ErrInvalidConfig, "scenario %s: %v", path, err)
	}
	sc.dir = filepath.Dir(path)
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) Validate() error {
	if len(sc.Stages) == 0 {
		return physerr.Wrapf(physerr.ErrInvalidConfig, "scenario %q has no stages", sc.Name)
	}
	for i, st := range sc.Stages {
		if st.Steps < 0 {
			return physerr.Wrapf(physerr.ErrInvalidConfig, "stage %d: steps must be non-negative, got %d", i+1, st.Steps)
		}
	}
	return nil
}

// BaseConfig resolves the starting configuration: config_file, else preset,
// else the defaults, with the scenario's config block on top.
func (sc *Scenario) BaseConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case sc.ConfigFile != "":
		path := sc.ConfigFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(sc.dir, path)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case sc.Preset != "":
		cfg = config.GetPreset(sc.Preset)
		if cfg == nil {
			return nil, physerr.Wrapf(physerr.ErrUnknownOption, "preset %q", sc.Preset)
		}
	default:
		cfg = config.DefaultConfig()
	}
	if err := overlay(cfg, &sc.Config); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func overlay(cfg *config.Config, node *yaml.Node) error {
	if node.Kind == 0 {
		return nil
	}
	if err := node.Decode(cfg); err != nil {
		return physerr.Wrapf(physerr.ErrInvalidConfig, "config block: %v", err)
	}
	return nil
}

func (st *Stage) label(i int) string {
	if st.Name != "" {
		return st.Name
	}
	return "stage " + strconv.Itoa(i+1)
}

// Run plays every stage on a fresh simulator and returns it with the
// per-stage results. It stops at the first stage that fails; the results of
// the stages before it are kept.
func Run(ctx context.Context, sc *Scenario, opts ...sim.Option) ([]StageResult, *sim.Simulator, error) {
	cfg, err := sc.BaseConfig()
	if err != nil {
		return nil, nil, err
	}
	initial, err := scene.Initialize(cfg)
	if err != nil {
		return nil, nil, err
	}
	s, err := sim.New(cfg, initial, opts...)
	if err != nil {
		return nil, nil, err
	}

	results := make([]StageResult, 0, len(sc.Stages))
	for i := range sc.Stages {
		st := &sc.Stages[i]
		res, err := runStage(ctx, s, st)
		res.Name = st.label(i)
		results = append(results, res)
		if err != nil {
			return results, s, physerr.Wrapf(err, "%s", res.Name)
		}
	}
	return results, s, nil
}

func runStage(ctx context.Context, s *sim.Simulator, st *Stage) (StageResult, error) {
	var out StageResult

	if st.Resume {
		s.Resume()
	}
	if st.Config.Kind != 0 {
		cfg := s.Config()
		if err := overlay(cfg, &st.Config); err != nil {
			return out, err
		}
		if err := s.SetConfig(cfg); err != nil {
			return out, err
		}
	}

	for _, i := range st.Remove {
		s.RequestRemove(i)
	}
	if len(st.Add) > 0 {
		added, err := (&scene.File{Bodies: st.Add}).Store()
		if err != nil {
			return out, err
		}
		for _, b := range added.Bodies() {
			s.RequestAdd(b)
		}
	}

	if st.Steps == 0 {
		out.MutationErrors = s.ApplyPending()
		return out, nil
	}
	res, err := s.Run(ctx, st.Steps)
	out.Result = res
	if res != nil && len(res.Stats) > 0 {
		out.MutationErrors = res.Stats[0].MutationErrors
	}
	return out, err
}
