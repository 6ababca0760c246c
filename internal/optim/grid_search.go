// Package optim sweeps configuration parameters over a grid and ranks the
// resulting runs by a metric.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
	"github.com/san-kum/nbodysim/internal/sim"
)

// Param is one swept configuration field and the values it takes.
type Param struct {
	Name   string
	Values []float64
}

// Trial is the outcome of one grid point. Failed runs score +Inf.
type Trial struct {
	Params map[string]float64
	Score  float64
	Steps  int
	Err    error
}

func (t Trial) Label() string {
	keys := make([]string, 0, len(t.Params))
	for k := range t.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, t.Params[k])
	}
	return strings.Join(parts, " ")
}

var setters = map[string]func(*config.Config, float64){
	"dt":             func(c *config.Config, v float64) { c.Dt = v },
	"theta":          func(c *config.Config, v float64) { c.Theta = v },
	"softening":      func(c *config.Config, v float64) { c.Softening = v },
	"g":              func(c *config.Config, v float64) { c.G = v },
	"leaf_capacity":  func(c *config.Config, v float64) { c.LeafCapacity = int(v) },
	"coulomb_k":      func(c *config.Config, v float64) { c.CoulombK = v },
	"speed_of_light": func(c *config.Config, v float64) { c.SpeedOfLight = v },
	"dm_v0":          func(c *config.Config, v float64) { c.DarkMatter.V0 = v },
	"viscosity":      func(c *config.Config, v float64) { c.Fluid.Viscosity = v },
}

// ParamNames lists the fields Apply understands.
func ParamNames() []string {
	names := make([]string, 0, len(setters))
	for n := range setters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with the named fields set.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := base.Clone()
	for name, v := range params {
		set, ok := setters[name]
		if !ok {
			return nil, physerr.Wrapf(physerr.ErrUnknownOption, "parameter %q", name)
		}
		set(cfg, v)
	}
	return cfg, nil
}

type GridSearch struct {
	params  []Param
	metric  string
	workers int
}

// NewGridSearch minimises metric over the cartesian product of params.
func NewGridSearch(params []Param, metric string) *GridSearch {
	return &GridSearch{params: params, metric: metric, workers: 1}
}

// SetWorkers bounds how many grid points run at once.
func (g *GridSearch) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	g.workers = n
}

// Points enumerates the grid, varying the last parameter fastest.
func (g *GridSearch) Points() []map[string]float64 {
	points := []map[string]float64{{}}
	for _, p := range g.params {
		next := make([]map[string]float64, 0, len(points)*len(p.Values))
		for _, base := range points {
			for _, v := range p.Values {
				pt := make(map[string]float64, len(base)+1)
				for k, x := range base {
					pt[k] = x
				}
				pt[p.Name] = v
				next = append(next, pt)
			}
		}
		points = next
	}
	return points
}

// Search runs every grid point for steps ticks from a copy of initial and
// returns the trials sorted best first. A failed or invalid point becomes a
// trial with an error; only unknown parameters and cancellation fail the
// search.
func (g *GridSearch) Search(
	ctx context.Context,
	base *config.Config,
	initial *particles.Store,
	steps int,
	metrics func(*config.Config) []sim.Metric,
	opts ...sim.Option,
) ([]Trial, error) {
	if len(g.params) == 0 {
		return nil, physerr.Wrap(physerr.ErrInvalidConfig, "no parameters to sweep")
	}
	for _, p := range g.params {
		if _, ok := setters[p.Name]; !ok {
			return nil, physerr.Wrapf(physerr.ErrUnknownOption, "parameter %q", p.Name)
		}
		if len(p.Values) == 0 {
			return nil, physerr.Wrapf(physerr.ErrInvalidConfig, "parameter %q has no values", p.Name)
		}
	}

	points := g.Points()
	trials := make([]Trial, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, pt := range points {
		eg.Go(func() error {
			trials[i] = g.trial(ctx, base, initial, pt, steps, metrics, opts)
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Score < trials[j].Score })
	return trials, nil
}

func (g *GridSearch) trial(
	ctx context.Context,
	base *config.Config,
	initial *particles.Store,
	pt map[string]float64,
	steps int,
	metrics func(*config.Config) []sim.Metric,
	opts []sim.Option,
) Trial {
	t := Trial{Params: pt, Score: math.Inf(1)}

	cfg, err := Apply(base, pt)
	if err != nil {
		t.Err = err
		return t
	}
	s, err := sim.New(cfg, initial.Clone(), opts...)
	if err != nil {
		t.Err = err
		return t
	}
	if metrics != nil {
		for _, m := range metrics(cfg) {
			s.AddMetric(m)
		}
	}

	res, err := s.Run(ctx, steps)
	if res != nil {
		t.Steps = res.Steps
	}
	if err != nil {
		t.Err = err
		return t
	}
	score, ok := res.Metrics[g.metric]
	if !ok {
		t.Err = physerr.Wrapf(physerr.ErrUnknownOption, "metric %q", g.metric)
		return t
	}
	if !math.IsNaN(score) {
		t.Score = score
	}
	return t
}
