package scene

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
)

// Generate draws in.Count bodies from the configured distribution. The same
// seed always yields the same store.
//
//   - Uniform: positions uniform in the cube [−extent, extent]³.
//   - Gaussian: positions normal around the origin with σ = extent/3.
//   - Disk: area-uniform in a disk of radius extent in the XY plane, thin
//     normal Z, velocity tangential (counter-clockwise) with speed in
//     [vel_min, vel_max].
//
// Outside the disk each velocity component is uniform in [vel_min, vel_max].
func Generate(in config.InitConfig) (*particles.Store, error) {
	s := particles.New(in.Count)
	if in.Count == 0 {
		return s, nil
	}

	src := rand.NewSource(uint64(in.Seed))
	unit := distuv.Uniform{Min: 0, Max: 1, Src: src}
	cube := distuv.Uniform{Min: -in.Extent, Max: in.Extent, Src: src}
	ball := distuv.Normal{Mu: 0, Sigma: in.Extent / 3, Src: src}
	thin := distuv.Normal{Mu: 0, Sigma: in.Extent / 50, Src: src}
	speed := distuv.Uniform{Min: in.VelMin, Max: in.VelMax, Src: src}
	mass := distuv.Uniform{Min: in.MassMin, Max: in.MassMax, Src: src}
	charge := distuv.Uniform{Min: in.ChargeMin, Max: in.ChargeMax, Src: src}

	for i := 0; i < in.Count; i++ {
		var b particles.Body
		switch in.Distribution {
		case config.Gaussian:
			b.Position = r3.Vec{X: ball.Rand(), Y: ball.Rand(), Z: ball.Rand()}
			b.Velocity = r3.Vec{X: speed.Rand(), Y: speed.Rand(), Z: speed.Rand()}
		case config.Disk:
			r := in.Extent * math.Sqrt(unit.Rand())
			phi := 2 * math.Pi * unit.Rand()
			sin, cos := math.Sincos(phi)
			b.Position = r3.Vec{X: r * cos, Y: r * sin, Z: thin.Rand()}
			b.Velocity = r3.Scale(speed.Rand(), r3.Vec{X: -sin, Y: cos})
		default:
			b.Position = r3.Vec{X: cube.Rand(), Y: cube.Rand(), Z: cube.Rand()}
			b.Velocity = r3.Vec{X: speed.Rand(), Y: speed.Rand(), Z: speed.Rand()}
		}
		b.Mass = mass.Rand()
		if in.Charged {
			b.Charge, b.HasCharge = charge.Rand(), true
		}
		if _, err := s.Add(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}
