package integrators

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/forces"
	"github.com/san-kum/nbodysim/internal/metrics"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

// twoBody places equal unit masses a unit apart; speed 1/√2 each gives a
// circular orbit with G = 1, smaller speeds an eccentric one.
func twoBody(t testing.TB, speed float64) *particles.Store {
	t.Helper()
	s, err := particles.FromBodies([]particles.Body{
		{Position: r3.Vec{X: -0.5}, Velocity: r3.Vec{Y: -speed}, Mass: 1},
		{Position: r3.Vec{X: 0.5}, Velocity: r3.Vec{Y: speed}, Mass: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func gravityOnly() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Interaction = config.Direct
	cfg.Softening = 0
	return cfg
}

// maxDrift integrates for steps and returns the largest relative energy error.
func maxDrift(t *testing.T, integ Integrator, s *particles.Store, dt float64, steps int) float64 {
	t.Helper()
	cfg := gravityOnly()
	gravity := forces.NewDirectGravity(cfg.G, cfg.Softening, compute.Serial())
	drift := metrics.NewEnergyDrift(cfg)
	drift.Observe(s, 0)

	for i := 0; i < steps; i++ {
		f, err := gravity.Compute(s)
		if err != nil {
			t.Fatal(err)
		}
		if err := integ.Step(s, f, gravity.Compute, dt); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		drift.Observe(s, float64(i+1)*dt)
	}
	return drift.Value()
}

func TestTwoBodyCircularOrbit(t *testing.T) {
	tests := []struct {
		name     string
		integ    Integrator
		maxDrift float64
	}{
		{"verlet", NewVerlet(), 0.01},
		{"rk4", NewRK4(), 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := twoBody(t, math.Sqrt(0.5))
			d := maxDrift(t, tt.integ, s, 0.01, 10000)
			if d > tt.maxDrift {
				t.Errorf("energy drift %.3e exceeds %.3e", d, tt.maxDrift)
			}
			if sep := r3.Norm(r3.Sub(s.Positions()[1], s.Positions()[0])); math.Abs(sep-1) > 0.02 {
				t.Errorf("separation drifted to %f", sep)
			}
		})
	}
}

func TestEulerDriftExceedsVerlet(t *testing.T) {
	const dt, steps = 0.01, 10000

	euler := maxDrift(t, NewEuler(), twoBody(t, math.Sqrt(0.5)), dt, steps)
	verlet := maxDrift(t, NewVerlet(), twoBody(t, math.Sqrt(0.5)), dt, steps)

	if verlet >= 0.01 {
		t.Errorf("verlet drift %.3e should stay under 1%%", verlet)
	}
	if euler <= 0.01 {
		t.Errorf("euler drift %.3e should exceed 1%%", euler)
	}
}

func TestEulerUsesOldVelocity(t *testing.T) {
	s, err := particles.FromBodies([]particles.Body{{Velocity: r3.Vec{X: 1}, Mass: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if err := NewEuler().Step(s, []r3.Vec{{X: 4}}, nil, 0.5); err != nil {
		t.Fatal(err)
	}
	if x := s.Positions()[0].X; math.Abs(x-0.5) > 1e-12 {
		t.Errorf("expected x=0.5, got %f", x)
	}
	if v := s.Velocities()[0].X; math.Abs(v-2) > 1e-12 {
		t.Errorf("expected v=2, got %f", v)
	}
}

func TestRK4Accuracy(t *testing.T) {
	s, err := particles.FromBodies([]particles.Body{{Position: r3.Vec{X: 1}, Mass: 1}})
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	spring := func(st *particles.Store) ([]r3.Vec, error) {
		calls++
		return []r3.Vec{r3.Scale(-1, st.Positions()[0])}, nil
	}

	integ := NewRK4()
	dt := 0.01
	steps := 100
	for i := 0; i < steps; i++ {
		f, _ := spring(s)
		if err := integ.Step(s, f, spring, dt); err != nil {
			t.Fatal(err)
		}
	}

	if calls != 4*steps {
		t.Errorf("expected %d force evaluations, got %d", 4*steps, calls)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if x := s.Positions()[0].X; math.Abs(x-expectedX) > 1e-8 {
		t.Errorf("position error too large: got %.10f, expected %.10f", x, expectedX)
	}
	if v := s.Velocities()[0].X; math.Abs(v-expectedV) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", v, expectedV)
	}
}

func TestFreeParticle(t *testing.T) {
	for _, method := range []config.Integrator{config.Euler, config.Leapfrog, config.RK4} {
		t.Run(method.String(), func(t *testing.T) {
			integ, err := New(method)
			if err != nil {
				t.Fatal(err)
			}
			if integ.Method() != method {
				t.Errorf("expected method %s, got %s", method, integ.Method())
			}

			s, err := particles.FromBodies([]particles.Body{{Position: r3.Vec{Y: 1}, Velocity: r3.Vec{X: 2}, Mass: 3}})
			if err != nil {
				t.Fatal(err)
			}
			none := func(st *particles.Store) ([]r3.Vec, error) { return make([]r3.Vec, st.Len()), nil }

			for i := 0; i < 4; i++ {
				if err := integ.Step(s, make([]r3.Vec, 1), none, 0.25); err != nil {
					t.Fatal(err)
				}
			}
			want := r3.Vec{X: 2, Y: 1}
			if got := s.Positions()[0]; r3.Norm(r3.Sub(got, want)) > 1e-12 {
				t.Errorf("expected position %v, got %v", want, got)
			}
			if got := s.Velocities()[0]; r3.Norm(r3.Sub(got, r3.Vec{X: 2})) > 1e-12 {
				t.Errorf("expected unchanged velocity, got %v", got)
			}
		})
	}
}

func TestVerletPreviousPosition(t *testing.T) {
	s, err := particles.FromBodies([]particles.Body{{Velocity: r3.Vec{X: 1}, Mass: 1}})
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerlet()
	if err := v.Step(s, []r3.Vec{{}}, nil, 0.1); err != nil {
		t.Fatal(err)
	}
	if prev := s.Previous(); len(prev) != 1 || prev[0] != (r3.Vec{}) {
		t.Errorf("expected previous position at origin, got %v", prev)
	}

	// a body added between steps moves by its own velocity
	if _, err := s.Add(particles.Body{Position: r3.Vec{Y: 5}, Velocity: r3.Vec{Y: -1}, Mass: 1}); err != nil {
		t.Fatal(err)
	}
	// and a changed timestep keeps both velocities
	if err := v.Step(s, make([]r3.Vec, 2), nil, 0.2); err != nil {
		t.Fatal(err)
	}
	if x := s.Positions()[0].X; math.Abs(x-0.3) > 1e-12 {
		t.Errorf("expected x=0.3, got %f", x)
	}
	if y := s.Positions()[1].Y; math.Abs(y-4.8) > 1e-12 {
		t.Errorf("expected y=4.8, got %f", y)
	}

	// switching to euler drops the column
	if err := NewEuler().Step(s, make([]r3.Vec, 2), nil, 0.2); err != nil {
		t.Fatal(err)
	}
	if s.Previous() != nil {
		t.Error("expected previous positions dropped after euler step")
	}
}

func TestStepRejectsBadInput(t *testing.T) {
	integrators := []Integrator{NewEuler(), NewVerlet(), NewRK4()}
	none := func(st *particles.Store) ([]r3.Vec, error) { return make([]r3.Vec, st.Len()), nil }

	for _, integ := range integrators {
		t.Run(integ.Method().String(), func(t *testing.T) {
			s := twoBody(t, 1)
			before := s.Bodies()

			err := integ.Step(s, make([]r3.Vec, 1), none, 0.1)
			if !errors.Is(err, physerr.ErrInvalidParticleInput) {
				t.Errorf("expected ErrInvalidParticleInput for short force array, got %v", err)
			}

			s.Masses()[1] = 0
			err = integ.Step(s, []r3.Vec{{X: 1}, {X: 1}}, none, 0.1)
			if !errors.Is(err, physerr.ErrNumericInstability) {
				t.Errorf("expected ErrNumericInstability for zero mass, got %v", err)
			}
			s.Masses()[1] = 1

			for i, b := range s.Bodies() {
				if b != before[i] {
					t.Errorf("body %d changed by rejected step", i)
				}
			}
		})
	}
}

func TestRK4PropagatesEvaluatorError(t *testing.T) {
	s := twoBody(t, 1)
	before := s.Bodies()
	boom := errors.New("boom")
	failing := func(*particles.Store) ([]r3.Vec, error) { return nil, boom }

	err := NewRK4().Step(s, make([]r3.Vec, 2), failing, 0.1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected evaluator error, got %v", err)
	}
	for i, b := range s.Bodies() {
		if b != before[i] {
			t.Errorf("body %d changed by failed step", i)
		}
	}
}

func TestNewUnknownMethod(t *testing.T) {
	if _, err := New(config.Integrator(42)); !errors.Is(err, physerr.ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got %v", err)
	}
}

func benchmarkStep(b *testing.B, integ Integrator) {
	s := twoBody(b, math.Sqrt(0.5))
	gravity := forces.NewDirectGravity(1, 1e-5, compute.Serial())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f, err := gravity.Compute(s)
		if err != nil {
			b.Fatal(err)
		}
		if err := integ.Step(s, f, gravity.Compute, 0.001); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEuler(b *testing.B)  { benchmarkStep(b, NewEuler()) }
func BenchmarkVerlet(b *testing.B) { benchmarkStep(b, NewVerlet()) }
func BenchmarkRK4(b *testing.B)    { benchmarkStep(b, NewRK4()) }
