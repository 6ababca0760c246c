package automation

import (
	"context"
	"math"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/metrics"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
	"github.com/san-kum/nbodysim/internal/sim"
)

// MonteCarlo runs Trials copies of an initial state, each with every
// position displaced by up to Perturbation per axis, and records whether the
// system stayed within Threshold of its centre of mass.
type MonteCarlo struct {
	Trials       int
	Steps        int
	Perturbation float64
	Threshold    float64
	Seed         uint64
	Workers      int
}

type MonteCarloResult struct {
	TrialID     int
	Steps       int
	Stability   float64
	EnergyDrift float64
	Err         error
}

// Stable reports a trial that completed with every sample bounded.
func (r MonteCarloResult) Stable() bool {
	return r.Err == nil && r.Stability == 1
}

func (mc MonteCarlo) validate() error {
	switch {
	case mc.Trials <= 0:
		return physerr.Wrapf(physerr.ErrInvalidConfig, "trials must be positive, got %d", mc.Trials)
	case mc.Steps <= 0:
		return physerr.Wrapf(physerr.ErrInvalidConfig, "steps must be positive, got %d", mc.Steps)
	case !(mc.Perturbation >= 0):
		return physerr.Wrapf(physerr.ErrInvalidConfig, "perturbation must be non-negative, got %g", mc.Perturbation)
	case !(mc.Threshold > 0):
		return physerr.Wrapf(physerr.ErrInvalidConfig, "threshold must be positive, got %g", mc.Threshold)
	}
	return nil
}

// Run executes the trials concurrently. Trial i is seeded with Seed+i, so a
// study is reproducible regardless of scheduling.
func (mc MonteCarlo) Run(ctx context.Context, cfg *config.Config, initial *particles.Store, opts ...sim.Option) ([]MonteCarloResult, error) {
	if err := mc.validate(); err != nil {
		return nil, err
	}
	workers := mc.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]MonteCarloResult, mc.Trials)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range results {
		g.Go(func() error {
			results[i] = mc.trial(ctx, i, cfg, initial, opts)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (mc MonteCarlo) trial(ctx context.Context, id int, cfg *config.Config, initial *particles.Store, opts []sim.Option) MonteCarloResult {
	out := MonteCarloResult{TrialID: id, EnergyDrift: math.NaN()}

	store := initial.Clone()
	rng := rand.New(rand.NewSource(mc.Seed + uint64(id)))
	pos := store.Positions()
	for j := range pos {
		pos[j].X += (2*rng.Float64() - 1) * mc.Perturbation
		pos[j].Y += (2*rng.Float64() - 1) * mc.Perturbation
		pos[j].Z += (2*rng.Float64() - 1) * mc.Perturbation
	}

	s, err := sim.New(cfg, store, opts...)
	if err != nil {
		out.Err = err
		return out
	}
	stability := metrics.NewStability(mc.Threshold)
	drift := metrics.NewEnergyDrift(cfg)
	s.AddMetric(stability)
	s.AddMetric(drift)

	res, err := s.Run(ctx, mc.Steps)
	if res != nil {
		out.Steps = res.Steps
	}
	out.Stability = stability.Value()
	out.EnergyDrift = drift.Value()
	out.Err = err
	return out
}

// Summarize counts stable, unstable and failed trials.
func Summarize(results []MonteCarloResult) (stable, unstable, failed int) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Stable():
			stable++
		default:
			unstable++
		}
	}
	return stable, unstable, failed
}
