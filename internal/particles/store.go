// Package particles holds the columnar particle state of a simulation.
//
// A [Store] keeps one column per physical quantity (position, velocity, mass,
// and the optional charge, previous position, colour and name columns). Every
// present column has exactly [Store.Len] rows. Rows are only added or removed
// through [Store.Add] and [Store.Remove]; force models and integrators borrow
// the columns for the duration of one call.
package particles

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/physerr"
)

// Color is display-only metadata.
type Color [3]uint8

// Body is one row of the store in array-of-structs form, used at the
// boundaries (initialisation, add requests, scene files).
type Body struct {
	Name      string
	Position  r3.Vec
	Velocity  r3.Vec
	Mass      float64
	Charge    float64
	HasCharge bool
	Color     Color
	HasColor  bool
}

type Store struct {
	pos    []r3.Vec
	vel    []r3.Vec
	mass   []float64
	charge []float64
	prev   []r3.Vec
	color  []Color
	name   []string

	// timestep the previous-position column was built for
	prevDt float64
}

func New(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{
		pos:  make([]r3.Vec, 0, capacity),
		vel:  make([]r3.Vec, 0, capacity),
		mass: make([]float64, 0, capacity),
	}
}

// FromBodies builds a store holding bodies in order. It fails on the first
// invalid body and returns no partial store.
func FromBodies(bodies []Body) (*Store, error) {
	s := New(len(bodies))
	for i, b := range bodies {
		if _, err := s.Add(b); err != nil {
			return nil, physerr.Wrapf(err, "body %d", i)
		}
	}
	return s, nil
}

// BodyFromSlices converts loosely typed input into a Body, rejecting vectors
// that are not three-dimensional.
func BodyFromSlices(pos, vel []float64, mass float64) (Body, error) {
	if len(pos) != 3 {
		return Body{}, physerr.Wrapf(physerr.ErrInvalidParticleInput, "position has %d components, want 3", len(pos))
	}
	if len(vel) != 3 {
		return Body{}, physerr.Wrapf(physerr.ErrInvalidParticleInput, "velocity has %d components, want 3", len(vel))
	}
	return Body{
		Position: r3.Vec{X: pos[0], Y: pos[1], Z: pos[2]},
		Velocity: r3.Vec{X: vel[0], Y: vel[1], Z: vel[2]},
		Mass:     mass,
	}, nil
}

func (s *Store) Len() int { return len(s.mass) }

// Positions returns the position column. Callers may write elements but
// must not retain the slice past the current call.
func (s *Store) Positions() []r3.Vec { return s.pos }

// Velocities returns the velocity column under the same rules as Positions.
func (s *Store) Velocities() []r3.Vec { return s.vel }

func (s *Store) Masses() []float64 { return s.mass }

// Charges returns the charge column, or nil when no particle carries a charge.
func (s *Store) Charges() []float64 { return s.charge }

func (s *Store) HasCharge() bool { return s.charge != nil }

// Previous returns the previous-position column, or nil before the first
// leapfrog step.
func (s *Store) Previous() []r3.Vec { return s.prev }

func (s *Store) Colors() []Color { return s.color }

func (s *Store) Names() []string { return s.name }

func validate(b Body) error {
	if !(b.Mass > 0) || math.IsInf(b.Mass, 0) {
		return physerr.Wrapf(physerr.ErrInvalidParticleInput, "mass must be positive and finite, got %g", b.Mass)
	}
	if !finite(b.Position) {
		return physerr.Wrapf(physerr.ErrInvalidParticleInput, "non-finite position %v", b.Position)
	}
	if !finite(b.Velocity) {
		return physerr.Wrapf(physerr.ErrInvalidParticleInput, "non-finite velocity %v", b.Velocity)
	}
	if b.HasCharge && (math.IsNaN(b.Charge) || math.IsInf(b.Charge, 0)) {
		return physerr.Wrapf(physerr.ErrInvalidParticleInput, "non-finite charge %g", b.Charge)
	}
	return nil
}

// Add appends b as a new last row and returns its index. Optional columns
// are created on demand, back-filled with zero values for existing rows.
func (s *Store) Add(b Body) (int, error) {
	if err := validate(b); err != nil {
		return -1, err
	}
	n := s.Len()

	s.pos = append(s.pos, b.Position)
	s.vel = append(s.vel, b.Velocity)
	s.mass = append(s.mass, b.Mass)

	if b.HasCharge && s.charge == nil {
		s.charge = make([]float64, n, n+1)
	}
	if s.charge != nil {
		s.charge = append(s.charge, b.Charge)
	}

	if s.prev != nil {
		s.prev = append(s.prev, r3.Sub(b.Position, r3.Scale(s.prevDt, b.Velocity)))
	}

	if b.HasColor && s.color == nil {
		s.color = make([]Color, n, n+1)
	}
	if s.color != nil {
		s.color = append(s.color, b.Color)
	}

	if b.Name != "" && s.name == nil {
		s.name = make([]string, n, n+1)
	}
	if s.name != nil {
		s.name = append(s.name, b.Name)
	}

	return n, nil
}

// Remove deletes row i from every present column, keeping the order of the
// remaining rows. An out-of-range index leaves the store untouched.
func (s *Store) Remove(i int) error {
	n := s.Len()
	if i < 0 || i >= n {
		return physerr.Wrapf(physerr.ErrIndexOutOfRange, "index %d, have %d particles", i, n)
	}

	s.pos = append(s.pos[:i], s.pos[i+1:]...)
	s.vel = append(s.vel[:i], s.vel[i+1:]...)
	s.mass = append(s.mass[:i], s.mass[i+1:]...)
	if s.charge != nil {
		s.charge = append(s.charge[:i], s.charge[i+1:]...)
	}
	if s.prev != nil {
		s.prev = append(s.prev[:i], s.prev[i+1:]...)
	}
	if s.color != nil {
		s.color = append(s.color[:i], s.color[i+1:]...)
	}
	if s.name != nil {
		s.name = append(s.name[:i], s.name[i+1:]...)
	}
	return nil
}

// Body returns row i. It panics when i is out of range, like a slice index.
func (s *Store) Body(i int) Body {
	b := Body{
		Position: s.pos[i],
		Velocity: s.vel[i],
		Mass:     s.mass[i],
	}
	if s.charge != nil {
		b.Charge = s.charge[i]
		b.HasCharge = true
	}
	if s.color != nil {
		b.Color = s.color[i]
		b.HasColor = true
	}
	if s.name != nil {
		b.Name = s.name[i]
	}
	return b
}

func (s *Store) Bodies() []Body {
	out := make([]Body, s.Len())
	for i := range out {
		out[i] = s.Body(i)
	}
	return out
}

// Clone returns a deep copy.
func (s *Store) Clone() *Store {
	c := &Store{
		pos:    cloneVecs(s.pos),
		vel:    cloneVecs(s.vel),
		mass:   append([]float64(nil), s.mass...),
		prev:   cloneVecs(s.prev),
		prevDt: s.prevDt,
	}
	if s.charge != nil {
		c.charge = append([]float64{}, s.charge...)
	}
	if s.color != nil {
		c.color = append([]Color{}, s.color...)
	}
	if s.name != nil {
		c.name = append([]string{}, s.name...)
	}
	return c
}

// WithState returns a store that shares every column of s except position
// and velocity, which are replaced by pos and vel. It is used to evaluate
// forces at intermediate integrator stages.
func (s *Store) WithState(pos, vel []r3.Vec) *Store {
	return &Store{
		pos:    pos,
		vel:    vel,
		mass:   s.mass,
		charge: s.charge,
		color:  s.color,
		name:   s.name,
	}
}

// EnsurePrevious creates the previous-position column as position - velocity*dt
// on first use. If the column exists but was built for another timestep, the
// implied velocity is kept and the column is rescaled to dt.
func (s *Store) EnsurePrevious(dt float64) {
	if s.prev == nil {
		s.prev = make([]r3.Vec, len(s.pos))
		for i := range s.pos {
			s.prev[i] = r3.Sub(s.pos[i], r3.Scale(dt, s.vel[i]))
		}
		s.prevDt = dt
		return
	}
	if s.prevDt == dt || s.prevDt == 0 {
		s.prevDt = dt
		return
	}
	ratio := dt / s.prevDt
	for i := range s.prev {
		s.prev[i] = r3.Sub(s.pos[i], r3.Scale(ratio, r3.Sub(s.pos[i], s.prev[i])))
	}
	s.prevDt = dt
}

// DropPrevious discards the previous-position column so that it is rebuilt
// from the current velocity the next time a leapfrog step runs.
func (s *Store) DropPrevious() {
	s.prev = nil
	s.prevDt = 0
}

// Nearest returns the index of the particle closest to point, or -1 for an
// empty store.
func (s *Store) Nearest(point r3.Vec) int {
	best, bestD := -1, math.Inf(1)
	for i, p := range s.pos {
		if d := r3.Norm2(r3.Sub(p, point)); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// CheckFinite reports ErrNumericInstability for the first row holding NaN or
// Inf in position or velocity.
func (s *Store) CheckFinite() error {
	for i := range s.pos {
		if !finite(s.pos[i]) || !finite(s.vel[i]) {
			return physerr.Wrapf(physerr.ErrNumericInstability, "particle %d has non-finite state", i)
		}
	}
	return nil
}

func finite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}

func cloneVecs(v []r3.Vec) []r3.Vec {
	if v == nil {
		return nil
	}
	return append([]r3.Vec{}, v...)
}
