package metrics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/particles"
)

// Stability is the fraction of samples in which every particle stayed
// within threshold of the centre of mass.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(st *particles.Store, t float64) {
	s.samples++
	com := CenterOfMass(st)
	lim := s.threshold * s.threshold
	for _, x := range st.Positions() {
		if r3.Norm2(r3.Sub(x, com)) > lim {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
