package octree

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/physerr"
)

type body struct {
	pos r3.Vec
	m   float64
}

func (b *body) Coord3() r3.Vec { return b.pos }
func (b *body) Mass() float64  { return b.m }

// newtonian gravity with G = 1 and no softening, matching barneshut.Gravity3
func newtonian(pi, pj r3.Vec, mi, mj float64) r3.Vec {
	d := r3.Sub(pj, pi)
	d2 := r3.Norm2(d)
	if d2 == 0 {
		return r3.Vec{}
	}
	return r3.Scale(mi*mj/(d2*math.Sqrt(d2)), d)
}

func randomCloud(n int, seed uint64) ([]r3.Vec, []float64) {
	rnd := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pos := make([]r3.Vec, n)
	mass := make([]float64, n)
	for i := range pos {
		pos[i] = r3.Vec{X: rnd.NormFloat64(), Y: rnd.NormFloat64(), Z: rnd.NormFloat64()}
		mass[i] = 0.5 + rnd.Float64()
	}
	return pos, mass
}

func TestBuildEmpty(t *testing.T) {
	tree, err := Build(nil, nil, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Len() != 0 {
		t.Errorf("expected no nodes, got %d", tree.Len())
	}
	if tree.Root().Mass != 0 {
		t.Errorf("expected zero root mass")
	}
}

func TestSingleParticleFeelsNoForce(t *testing.T) {
	pos := []r3.Vec{{X: 3, Y: -1, Z: 2}}
	tree, err := Build(pos, []float64{5}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f := tree.ForceOn(0, pos, []float64{5}, 0.5, newtonian); f != (r3.Vec{}) {
		t.Errorf("expected zero force, got %v", f)
	}
	if tree.Depth() != 0 || !tree.Root().IsLeaf() {
		t.Errorf("expected a single leaf, depth %d", tree.Depth())
	}
}

func TestTreeInvariants(t *testing.T) {
	pos, mass := randomCloud(300, 7)
	var total float64
	var weighted r3.Vec
	for i := range pos {
		total += mass[i]
		weighted = r3.Add(weighted, r3.Scale(mass[i], pos[i]))
	}
	com := r3.Scale(1/total, weighted)

	for _, capacity := range []int{1, 4, 16} {
		tree, err := Build(pos, mass, capacity)
		if err != nil {
			t.Fatalf("capacity %d: %v", capacity, err)
		}

		root := tree.Root()
		if math.Abs(root.Mass-total) > 1e-9*total {
			t.Errorf("capacity %d: root mass %g, want %g", capacity, root.Mass, total)
		}
		if r3.Norm(r3.Sub(root.CenterOfMass, com)) > 1e-9 {
			t.Errorf("capacity %d: root com %v, want %v", capacity, root.CenterOfMass, com)
		}

		var seen []int
		for _, nd := range tree.Nodes() {
			for _, p := range tree.Members(nd) {
				d := r3.Sub(pos[p], nd.Center)
				lim := nd.HalfSize * (1 + 1e-12)
				if math.Abs(d.X) > lim || math.Abs(d.Y) > lim || math.Abs(d.Z) > lim {
					t.Fatalf("capacity %d: particle %d outside its node", capacity, p)
				}
			}
			if nd.IsLeaf() {
				if nd.Count() > capacity {
					t.Errorf("capacity %d: leaf holds %d particles", capacity, nd.Count())
				}
				seen = append(seen, tree.Members(nd)...)
				continue
			}
			var m float64
			count := 0
			for _, c := range tree.Children(nd) {
				m += c.Mass
				count += c.Count()
			}
			if math.Abs(m-nd.Mass) > 1e-9*nd.Mass {
				t.Errorf("capacity %d: node mass %g, children sum %g", capacity, nd.Mass, m)
			}
			if count != nd.Count() {
				t.Errorf("capacity %d: node count %d, children sum %d", capacity, nd.Count(), count)
			}
		}

		sort.Ints(seen)
		if len(seen) != len(pos) {
			t.Fatalf("capacity %d: leaves hold %d particles, want %d", capacity, len(seen), len(pos))
		}
		for i, p := range seen {
			if p != i {
				t.Fatalf("capacity %d: particle %d missing from leaves", capacity, i)
			}
		}
	}
}

func TestDegenerateGeometry(t *testing.T) {
	pos := []r3.Vec{{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}}
	mass := []float64{1, 1, 1}

	_, err := Build(pos, mass, 1)
	if !errors.Is(err, physerr.ErrDegenerateGeometry) {
		t.Fatalf("expected ErrDegenerateGeometry, got %v", err)
	}

	tree, err := Build(pos, mass, 3)
	if err != nil {
		t.Fatalf("coincident particles fitting one leaf: %v", err)
	}
	if tree.Len() != 1 {
		t.Errorf("expected one node, got %d", tree.Len())
	}
}

func TestPartiallyCoincidentTerminates(t *testing.T) {
	pos := []r3.Vec{{}, {}, {X: 1, Y: 1, Z: 1}}
	mass := []float64{1, 2, 3}

	tree, err := Build(pos, mass, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Depth() > maxDepth {
		t.Errorf("depth %d exceeds cap", tree.Depth())
	}

	f := tree.ForceOn(2, pos, mass, 0.5, newtonian)
	want := newtonian(pos[2], r3.Vec{}, 3, 3)
	if r3.Norm(r3.Sub(f, want)) > 1e-12 {
		t.Errorf("force %v, want %v", f, want)
	}
}

func TestNonFinitePosition(t *testing.T) {
	pos := []r3.Vec{{}, {X: math.NaN()}}
	_, err := Build(pos, []float64{1, 1}, 1)
	if !errors.Is(err, physerr.ErrNumericInstability) {
		t.Fatalf("expected ErrNumericInstability, got %v", err)
	}
}

// exactForces uses gonum's volume with theta 0, which sums every pair.
func exactForces(t *testing.T, pos []r3.Vec, mass []float64) []r3.Vec {
	t.Helper()
	particles := make([]barneshut.Particle3, len(pos))
	for i := range pos {
		particles[i] = &body{pos: pos[i], m: mass[i]}
	}
	vol := barneshut.Volume{Particles: particles}
	if err := vol.Reset(); err != nil {
		t.Fatalf("reference volume: %v", err)
	}
	out := make([]r3.Vec, len(pos))
	for i, p := range particles {
		out[i] = vol.ForceOn(p, 0, barneshut.Gravity3)
	}
	return out
}

func TestForceOnMatchesExactSum(t *testing.T) {
	pos, mass := randomCloud(250, 11)
	exact := exactForces(t, pos, mass)

	tests := []struct {
		name     string
		theta    float64
		capacity int
		tol      float64
	}{
		{"theta near zero", 1e-9, 1, 1e-9},
		{"theta 0.3", 0.3, 1, 1e-2},
		{"theta 0.5 wide leaves", 0.5, 8, 2e-2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Build(pos, mass, tt.capacity)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			var errSq, refSq float64
			for i := range pos {
				f := tree.ForceOn(i, pos, mass, tt.theta, newtonian)
				errSq += r3.Norm2(r3.Sub(f, exact[i]))
				refSq += r3.Norm2(exact[i])
			}
			if rel := math.Sqrt(errSq / refSq); rel > tt.tol {
				t.Errorf("relative RMS error %g exceeds %g", rel, tt.tol)
			}
		})
	}
}

func TestLargeThetaExcludesOwnMass(t *testing.T) {
	pos := []r3.Vec{{X: -1}, {X: 1}}
	mass := []float64{1, 1}
	tree, err := Build(pos, mass, 1)
	if err != nil {
		t.Fatal(err)
	}

	// the root's centre of mass is a unit away from each body, so a loose
	// criterion would accept it and pull each body toward mass 2 at distance 1
	for i := range pos {
		f := tree.ForceOn(i, pos, mass, 100, newtonian)
		want := newtonian(pos[i], pos[1-i], 1, 1)
		if r3.Norm(r3.Sub(f, want)) > 1e-12 {
			t.Errorf("body %d: expected %v, got %v", i, want, f)
		}
	}
}

func BenchmarkBuild(b *testing.B) {
	pos, mass := randomCloud(10000, 3)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(pos, mass, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkForceOn(b *testing.B) {
	pos, mass := randomCloud(10000, 3)
	tree, err := Build(pos, mass, 1)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.ForceOn(i%len(pos), pos, mass, 0.5, newtonian)
	}
}
