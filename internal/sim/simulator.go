// Package sim sequences force composition, integration and pending particle
// mutations into atomic ticks and publishes a snapshot after each one.
//
// A tick works on a copy of the particle store and swaps it in only when
// every stage succeeded, so a failed tick leaves the last valid state in
// place. A numeric instability freezes the simulator until Resume is called.
// Ticks never overlap; RequestAdd, RequestRemove and Snapshot are safe to
// call from other goroutines.
package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/forces"
	"github.com/san-kum/nbodysim/internal/integrators"
	"github.com/san-kum/nbodysim/internal/metrics"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

type mutation struct {
	add    *particles.Body
	remove int
}

type Simulator struct {
	// tick serialises everything that touches store, cfg or the step counter
	tick sync.Mutex

	cfg        *config.Config
	store      *particles.Store
	composer   *forces.Composer
	integrator integrators.Integrator
	backend    compute.Backend
	log        zerolog.Logger

	step   uint64
	time   float64
	frozen error

	pendingMu sync.Mutex
	pending   []mutation

	trackEnergy bool
	metrics     []Metric
	observers   []Observer

	snap atomic.Pointer[Snapshot]
}

// New takes ownership of store. cfg is copied.
func New(cfg *config.Config, store *particles.Store, opts ...Option) (*Simulator, error) {
	if store == nil {
		return nil, physerr.Wrap(physerr.ErrInvalidParticleInput, "nil particle store")
	}
	if cfg == nil {
		return nil, physerr.Wrap(physerr.ErrInvalidConfig, "nil config")
	}
	s := &Simulator{
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = compute.NewCPUBackend(cfg.Workers)
	}
	if err := s.configure(cfg); err != nil {
		return nil, err
	}
	s.publish()
	return s, nil
}

func (s *Simulator) configure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	composer, err := forces.NewComposer(cfg, s.backend)
	if err != nil {
		return err
	}
	integ := s.integrator
	if integ == nil || integ.Method() != cfg.Integrator {
		if integ, err = integrators.New(cfg.Integrator); err != nil {
			return err
		}
	}
	s.cfg = cfg.Clone()
	s.composer = composer
	s.integrator = integ
	return nil
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Config returns a copy of the active configuration.
func (s *Simulator) Config() *config.Config {
	s.tick.Lock()
	defer s.tick.Unlock()
	return s.cfg.Clone()
}

// SetConfig replaces the configuration between ticks. An invalid config is
// rejected and the previous one stays active.
func (s *Simulator) SetConfig(cfg *config.Config) error {
	s.tick.Lock()
	defer s.tick.Unlock()
	if err := s.configure(cfg); err != nil {
		return err
	}
	s.log.Info().
		Str("integrator", cfg.Integrator.String()).
		Str("interaction", cfg.Interaction.String()).
		Strs("forces", cfg.Forces.Enabled()).
		Msg("configuration changed")
	return nil
}

// Composer exposes the force pipeline of the active configuration.
func (s *Simulator) Composer() *forces.Composer {
	s.tick.Lock()
	defer s.tick.Unlock()
	return s.composer
}

// Snapshot returns the state after the last completed tick.
func (s *Simulator) Snapshot() Snapshot { return *s.snap.Load() }

// Frozen returns the instability that halted the simulator, or nil.
func (s *Simulator) Frozen() error {
	s.tick.Lock()
	defer s.tick.Unlock()
	return s.frozen
}

// Resume clears a freeze. The next tick starts from the last valid state.
func (s *Simulator) Resume() {
	s.tick.Lock()
	defer s.tick.Unlock()
	if s.frozen != nil {
		s.log.Info().Uint64("step", s.step).Msg("resumed")
	}
	s.frozen = nil
}

// RequestAdd queues b for insertion after the current tick.
func (s *Simulator) RequestAdd(b particles.Body) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, mutation{add: &b})
	s.pendingMu.Unlock()
}

// RequestRemove queues removal of row i after the current tick. Indices refer
// to the store as it stands when the request is applied, after earlier
// requests in the same batch.
func (s *Simulator) RequestRemove(i int) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, mutation{remove: i})
	s.pendingMu.Unlock()
}

// ApplyPending applies queued requests without advancing time, so a paused
// simulation reflects them. It returns the rejected requests' errors.
func (s *Simulator) ApplyPending() []error {
	s.tick.Lock()
	defer s.tick.Unlock()
	errs := s.applyPending()
	s.publish()
	return errs
}

func (s *Simulator) applyPending() []error {
	s.pendingMu.Lock()
	batch := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	var errs []error
	for _, m := range batch {
		var err error
		if m.add != nil {
			_, err = s.store.Add(*m.add)
		} else {
			err = s.store.Remove(m.remove)
		}
		if err != nil {
			s.log.Warn().Err(err).Uint64("step", s.step).Msg("particle request rejected")
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Simulator) publish() {
	s.snap.Store(&Snapshot{Step: s.step, Time: s.time, Store: s.store.Clone()})
}

func (s *Simulator) fail(msg string, err error) error {
	if errors.Is(err, physerr.ErrNumericInstability) {
		s.frozen = err
		s.log.Error().Err(err).Uint64("step", s.step).Float64("t", s.time).Msg("simulation frozen")
	} else {
		s.log.Warn().Err(err).Uint64("step", s.step).Msg(msg)
	}
	return SimError{Time: s.time, Step: s.step, Message: msg, Err: err}
}

// Step advances one tick: net force, integration on a copy, finiteness
// check, swap, pending mutations, snapshot. Cancellation is only observed
// before the tick starts. Observers run after the tick lock is released, so
// they may call back into the simulator.
func (s *Simulator) Step(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	snap, stats, observers, err := s.advance()
	if err != nil {
		return Stats{}, err
	}
	for _, o := range observers {
		o.OnStep(snap, stats)
	}
	return stats, nil
}

func (s *Simulator) advance() (Snapshot, Stats, []Observer, error) {
	s.tick.Lock()
	defer s.tick.Unlock()

	if s.frozen != nil {
		return Snapshot{}, Stats{}, nil, physerr.Wrapf(physerr.ErrFrozen, "%v", s.frozen)
	}

	start := time.Now()
	work := s.store.Clone()

	force, rep, err := s.composer.NetForce(work)
	if err != nil {
		return Snapshot{}, Stats{}, nil, s.fail("force evaluation failed", err)
	}
	if rep.DirectFallback {
		s.log.Warn().Uint64("step", s.step).Msg("degenerate geometry, gravity summed directly")
	}
	if err := s.integrator.Step(work, force, s.composer.Evaluate, s.cfg.Dt); err != nil {
		return Snapshot{}, Stats{}, nil, s.fail("integration failed", err)
	}
	if err := work.CheckFinite(); err != nil {
		return Snapshot{}, Stats{}, nil, s.fail("non-finite state", err)
	}

	s.store = work
	s.step++
	s.time += s.cfg.Dt
	mutErrs := s.applyPending()

	stats := Stats{
		Step:           s.step,
		Time:           s.time,
		Particles:      s.store.Len(),
		TreeNodes:      rep.TreeNodes,
		TreeDepth:      rep.TreeDepth,
		DirectFallback: rep.DirectFallback,
		MutationErrors: mutErrs,
	}
	if s.trackEnergy {
		stats.Energy = metrics.TotalEnergy(s.store, s.cfg)
		stats.HasEnergy = true
	}
	for _, m := range s.metrics {
		m.Observe(s.store, s.time)
	}
	s.publish()
	stats.Elapsed = time.Since(start)

	s.log.Debug().
		Uint64("step", stats.Step).
		Int("n", stats.Particles).
		Dur("elapsed", stats.Elapsed).
		Msg("tick")

	return s.Snapshot(), stats, s.observers, nil
}

// Run advances up to steps ticks and stops at the first error. The partial
// result is returned alongside the error.
func (s *Simulator) Run(ctx context.Context, steps int) (*Result, error) {
	if steps <= 0 {
		return nil, physerr.Wrapf(physerr.ErrInvalidConfig, "steps must be positive, got %d", steps)
	}

	result := &Result{
		Stats:   make([]Stats, 0, steps),
		Metrics: make(map[string]float64),
	}
	s.resetMetrics()
	begin := time.Now()

	var runErr error
	for i := 0; i < steps; i++ {
		st, err := s.Step(ctx)
		if err != nil {
			runErr = err
			break
		}
		result.Stats = append(result.Stats, st)
		result.Steps++
	}

	result.Elapsed = time.Since(begin)
	result.Final = s.Snapshot()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, runErr
}

// RunWithCallback ticks until fn returns false, ctx is done or a tick fails.
func (s *Simulator) RunWithCallback(ctx context.Context, fn func(Snapshot, Stats) bool) error {
	s.resetMetrics()
	for {
		st, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if !fn(s.Snapshot(), st) {
			return nil
		}
	}
}

// metrics see the starting state as their first sample
func (s *Simulator) resetMetrics() {
	s.tick.Lock()
	defer s.tick.Unlock()
	for _, m := range s.metrics {
		m.Reset()
		m.Observe(s.store, s.time)
	}
}
