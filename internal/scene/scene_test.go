package scene

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/physerr"
)

func TestBuiltinSolarSystem(t *testing.T) {
	f, err := Builtin("solar_system")
	require.NoError(t, err)
	require.Len(t, f.Bodies, 9)

	s, err := f.Store()
	require.NoError(t, err)
	assert.Equal(t, 9, s.Len())
	assert.Equal(t, "Sun", s.Names()[0])
	assert.Equal(t, 1.989e30, s.Masses()[0])
	assert.Equal(t, r3.Vec{X: 1.496e11}, s.Positions()[3])
	assert.Equal(t, r3.Vec{Y: 29780}, s.Velocities()[3])
	assert.False(t, s.HasCharge())
	assert.Len(t, s.Colors(), 9)
}

func TestRoundTrip(t *testing.T) {
	for _, name := range Builtins() {
		for _, ext := range []string{".json", ".yaml"} {
			t.Run(name+ext, func(t *testing.T) {
				orig, err := Builtin(name)
				require.NoError(t, err)
				s, err := orig.Store()
				require.NoError(t, err)

				path := filepath.Join(t.TempDir(), name+ext)
				require.NoError(t, Save(path, FromStore(orig.Name, orig.Description, s)))

				loaded, err := Load(path)
				require.NoError(t, err)
				assert.Equal(t, orig, loaded)

				again, err := loaded.Store()
				require.NoError(t, err)
				assert.Equal(t, s.Bodies(), again.Bodies())
			})
		}
	}
}

func TestRoundTripKeepsCharge(t *testing.T) {
	cfg := config.GetPreset("plasma")
	cfg.Init.Count = 20
	s, err := Initialize(cfg)
	require.NoError(t, err)
	require.True(t, s.HasCharge())

	path := filepath.Join(t.TempDir(), "plasma.json")
	require.NoError(t, Save(path, FromStore("plasma", "", s)))
	f, err := Load(path)
	require.NoError(t, err)
	back, err := f.Store()
	require.NoError(t, err)
	assert.Equal(t, s.Bodies(), back.Bodies())
}

func TestRejectsMalformedBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"two component position", `{"position": [1, 2], "velocity": [0, 0, 0], "mass": 1}`},
		{"four component velocity", `{"position": [1, 2, 3], "velocity": [0, 0, 0, 0], "mass": 1}`},
		{"zero mass", `{"position": [1, 2, 3], "velocity": [0, 0, 0], "mass": 0}`},
		{"negative mass", `{"position": [1, 2, 3], "velocity": [0, 0, 0], "mass": -3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(strings.NewReader(`{"name": "bad", "bodies": [`+tt.body+`]}`), JSON)
			require.NoError(t, err)
			_, err = f.Store()
			assert.ErrorIs(t, err, physerr.ErrInvalidParticleInput)
		})
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	files := map[string]string{
		"typo.json": `{"name": "x", "bodies": [{"positon": [0, 0, 0], "velocity": [0, 0, 0], "mass": 1}]}`,
		"typo.yaml": "name: x\nbodies:\n  - position: [0, 0, 0]\n    velocty: [1, 0, 0]\n    mass: 1\n",
	}
	dir := t.TempDir()
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))

			_, err := Load(path)
			assert.ErrorIs(t, err, physerr.ErrInvalidParticleInput)
		})
	}
}

func TestBuiltinUnknown(t *testing.T) {
	_, err := Builtin("andromeda")
	assert.ErrorIs(t, err, physerr.ErrUnknownOption)
	assert.Equal(t, []string{"binary", "solar_system"}, Builtins())
}

func TestGenerateDeterministic(t *testing.T) {
	in := config.DefaultConfig().Init
	a, err := Generate(in)
	require.NoError(t, err)
	b, err := Generate(in)
	require.NoError(t, err)
	assert.Equal(t, a.Bodies(), b.Bodies())

	in.Seed++
	c, err := Generate(in)
	require.NoError(t, err)
	assert.NotEqual(t, a.Bodies(), c.Bodies())
}

func TestGenerateDistributions(t *testing.T) {
	base := config.DefaultConfig().Init
	base.Count = 300

	t.Run("uniform", func(t *testing.T) {
		s, err := Generate(base)
		require.NoError(t, err)
		require.Equal(t, 300, s.Len())
		for i, p := range s.Positions() {
			assert.LessOrEqual(t, math.Abs(p.X), base.Extent)
			assert.LessOrEqual(t, math.Abs(p.Y), base.Extent)
			assert.LessOrEqual(t, math.Abs(p.Z), base.Extent)
			m := s.Masses()[i]
			assert.True(t, m >= base.MassMin && m <= base.MassMax, "mass %g", m)
		}
		assert.False(t, s.HasCharge())
	})

	t.Run("disk", func(t *testing.T) {
		in := base
		in.Distribution = config.Disk
		in.VelMin, in.VelMax = 0.5, 1
		s, err := Generate(in)
		require.NoError(t, err)
		vel := s.Velocities()
		for i, p := range s.Positions() {
			assert.LessOrEqual(t, math.Hypot(p.X, p.Y), in.Extent)
			// tangential: no radial component in the plane
			assert.InDelta(t, 0, p.X*vel[i].X+p.Y*vel[i].Y, 1e-9)
			speed := r3.Norm(vel[i])
			assert.True(t, speed >= 0.5-1e-12 && speed <= 1+1e-12, "speed %g", speed)
			// counter-clockwise
			assert.GreaterOrEqual(t, p.X*vel[i].Y-p.Y*vel[i].X, 0.0)
		}
	})

	t.Run("gaussian charged", func(t *testing.T) {
		in := base
		in.Distribution = config.Gaussian
		in.Charged = true
		in.ChargeMin, in.ChargeMax = -2, 2
		s, err := Generate(in)
		require.NoError(t, err)
		require.True(t, s.HasCharge())
		var sumSq float64
		for i, p := range s.Positions() {
			sumSq += r3.Norm2(p)
			assert.LessOrEqual(t, math.Abs(s.Charges()[i]), 2.0)
		}
		// three components of σ² each
		sigma := in.Extent / 3
		assert.InDelta(t, 3*sigma*sigma, sumSq/float64(s.Len()), sigma*sigma)
	})

	t.Run("empty", func(t *testing.T) {
		in := base
		in.Count = 0
		s, err := Generate(in)
		require.NoError(t, err)
		assert.Zero(t, s.Len())
	})
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		preset string
		count  int
	}{
		{"solar_system", 9},
		{"binary", 2},
		{"random", config.DefaultCount},
		{"galaxy", 800},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			s, err := Initialize(config.GetPreset(tt.preset))
			require.NoError(t, err)
			assert.Equal(t, tt.count, s.Len())
		})
	}

	t.Run("file wins", func(t *testing.T) {
		f, err := Builtin("binary")
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "b.yaml")
		require.NoError(t, Save(path, f))

		cfg := config.GetPreset("solar_system")
		cfg.Init.File = path
		s, err := Initialize(cfg)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("unknown scene", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Init.Scene = "nowhere"
		_, err := Initialize(cfg)
		assert.ErrorIs(t, err, physerr.ErrUnknownOption)
	})
}
