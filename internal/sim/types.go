package sim

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/particles"
)

// Snapshot is the read-only state published after a completed tick. Store
// is a private copy; holders may keep it across ticks.
type Snapshot struct {
	Step  uint64
	Time  float64
	Store *particles.Store
}

// Stats describes one tick.
type Stats struct {
	Step      uint64
	Time      float64
	Particles int
	Elapsed   time.Duration
	// Energy is only filled in when energy tracking is enabled.
	Energy    float64
	HasEnergy bool

	TreeNodes      int
	TreeDepth      int
	DirectFallback bool

	// MutationErrors holds the rejected add/remove requests applied after
	// this tick; each rejected request was a no-op.
	MutationErrors []error
}

type Metric interface {
	Name() string
	Observe(s *particles.Store, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(snap Snapshot, stats Stats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot, Stats)

func (f ObserverFunc) OnStep(snap Snapshot, stats Stats) { f(snap, stats) }

type Result struct {
	Steps   int
	Stats   []Stats
	Final   Snapshot
	Metrics map[string]float64
	Elapsed time.Duration
}

// SimError locates a failed tick.
type SimError struct {
	Time    float64
	Step    uint64
	Message string
	Err     error
}

func (e SimError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
	}
	return fmt.Sprintf("step %d (t=%.4f): %s: %v", e.Step, e.Time, e.Message, e.Err)
}

func (e SimError) Unwrap() error { return e.Err }

type Option func(*Simulator)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

// WithBackend overrides the worker backend sized from Config.Workers.
func WithBackend(b compute.Backend) Option {
	return func(s *Simulator) { s.backend = b }
}

// WithEnergy enables the O(N²) total-energy figure in Stats.
func WithEnergy(on bool) Option {
	return func(s *Simulator) { s.trackEnergy = on }
}
