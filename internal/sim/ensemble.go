package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

// Variant is one configuration run by an Ensemble.
type Variant struct {
	Name   string
	Config *config.Config
}

// Ensemble runs several configurations from the same initial state in
// parallel. Each run gets its own copy of the store and its own metrics.
type Ensemble struct {
	initial  *particles.Store
	variants []Variant
	metrics  func(cfg *config.Config) []Metric
	opts     []Option
}

// NewEnsemble keeps a copy of initial. metrics, when non-nil, is called once
// per variant so that no metric is shared between runs.
func NewEnsemble(initial *particles.Store, variants []Variant, metrics func(cfg *config.Config) []Metric, opts ...Option) *Ensemble {
	return &Ensemble{
		initial:  initial.Clone(),
		variants: variants,
		metrics:  metrics,
		opts:     opts,
	}
}

// Run advances every variant by steps ticks. Results are in variant order.
// The first failing variant cancels the others.
func (e *Ensemble) Run(ctx context.Context, steps int) ([]*Result, error) {
	results := make([]*Result, len(e.variants))
	g, ctx := errgroup.WithContext(ctx)

	for i, v := range e.variants {
		g.Go(func() error {
			s, err := New(v.Config, e.initial.Clone(), e.opts...)
			if err != nil {
				return physerr.Wrapf(err, "variant %s", v.Name)
			}
			if e.metrics != nil {
				for _, m := range e.metrics(v.Config) {
					s.AddMetric(m)
				}
			}
			res, err := s.Run(ctx, steps)
			results[i] = res
			if err != nil {
				return physerr.Wrapf(err, "variant %s", v.Name)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
