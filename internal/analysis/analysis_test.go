package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
	"github.com/san-kum/nbodysim/internal/scene"
)

func TestDominantPeriod(t *testing.T) {
	const dt, period = 0.1, 5.0
	series := make([]float64, 500)
	for i := range series {
		series[i] = 3 + math.Sin(2*math.Pi*float64(i)*dt/period)
	}
	assert.InDelta(t, period, DominantPeriod(series, dt), 1e-9)

	flat := []float64{2, 2, 2, 2}
	assert.Zero(t, DominantPeriod(flat, dt))
	assert.Zero(t, DominantPeriod([]float64{1}, dt))
}

func TestPowerSpectrum(t *testing.T) {
	freq, power := PowerSpectrum([]float64{1, -1, 1, -1, 1, -1, 1, -1}, 0.5)
	require.Len(t, freq, 5)
	require.Len(t, power, 5)
	// alternating samples sit at the Nyquist frequency
	assert.InDelta(t, 1.0, freq[4], 1e-12)
	assert.InDelta(t, 8.0, power[4], 1e-9)
	assert.InDelta(t, 0.0, power[0], 1e-9)

	freq, power = PowerSpectrum(nil, 1)
	assert.Nil(t, freq)
	assert.Nil(t, power)
}

func TestLyapunovFreeMotion(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Interaction = config.Direct
	cfg.Integrator = config.Leapfrog
	cfg.G = 0
	cfg.Dt = 0.01

	s, err := particles.FromBodies([]particles.Body{
		{Position: r3.Vec{X: -1}, Velocity: r3.Vec{Y: 1}, Mass: 1},
		{Position: r3.Vec{X: 1}, Velocity: r3.Vec{Z: -1}, Mass: 1},
	})
	require.NoError(t, err)

	res, err := Lyapunov(context.Background(), cfg, s, 100, 1e-6, compute.Serial())
	require.NoError(t, err)
	assert.Equal(t, 100, res.Steps)
	assert.Len(t, res.Running, 100)
	// without forces nearby trajectories neither diverge nor converge
	assert.InDelta(t, 0, res.Exponent, 1e-5)
	assert.Equal(t, r3.Vec{X: -1}, s.Positions()[0], "initial state must not change")
}

func TestLyapunovBinary(t *testing.T) {
	cfg := config.GetPreset("binary")
	cfg.Integrator = config.RK4
	cfg.Dt = 0.01
	s, err := scene.Initialize(cfg)
	require.NoError(t, err)

	res, err := Lyapunov(context.Background(), cfg, s, 300, 1e-8, compute.Serial())
	require.NoError(t, err)
	assert.Len(t, res.Running, 300)
	assert.False(t, math.IsNaN(res.Exponent) || math.IsInf(res.Exponent, 0))
}

func TestLyapunovInvalid(t *testing.T) {
	cfg := config.GetPreset("binary")
	s, err := scene.Initialize(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = Lyapunov(ctx, cfg, particles.New(0), 10, 1e-8, compute.Serial())
	assert.ErrorIs(t, err, physerr.ErrInvalidParticleInput)

	_, err = Lyapunov(ctx, cfg, s, 0, 1e-8, compute.Serial())
	assert.ErrorIs(t, err, physerr.ErrInvalidConfig)

	_, err = Lyapunov(ctx, cfg, s, 10, 0, compute.Serial())
	assert.ErrorIs(t, err, physerr.ErrInvalidConfig)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	res, err := Lyapunov(cancelled, cfg, s, 10, 1e-8, compute.Serial())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Steps)
}
