package forces

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
)

// Report summarises one composition.
type Report struct {
	TreeNodes      int
	TreeDepth      int
	DirectFallback bool
}

// Composer sums the enabled additive models and applies the relativistic
// correction last. The interaction model only decides how gravity is summed.
type Composer struct {
	models     []Model
	tree       *BarnesHut
	relativity *Relativity
}

func NewComposer(cfg *config.Config, backend compute.Backend) (*Composer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = compute.NewCPUBackend(cfg.Workers)
	}

	c := &Composer{}
	if cfg.Forces.Gravity {
		switch cfg.Interaction {
		case config.Direct:
			c.models = append(c.models, NewDirectGravity(cfg.G, cfg.Softening, backend))
		case config.BarnesHut:
			c.tree = NewBarnesHut(cfg.G, cfg.Softening, cfg.Theta, cfg.LeafCapacity, backend)
			c.models = append(c.models, c.tree)
		default:
			return nil, physerr.Wrapf(physerr.ErrUnknownOption, "interaction model %d", int(cfg.Interaction))
		}
	}
	if cfg.Forces.Electromagnetism {
		c.models = append(c.models, NewCoulomb(cfg.CoulombK, cfg.Softening, backend))
	}
	if cfg.Forces.DarkMatter {
		c.models = append(c.models, NewDarkMatter(cfg.DarkMatter.V0, cfg.Softening))
	}
	if cfg.Forces.FluidDynamics {
		f := cfg.Fluid
		c.models = append(c.models, NewSPH(f.H, f.Rho0, f.Stiffness, f.Viscosity, backend))
	}
	if cfg.Forces.Relativity {
		c.relativity = NewRelativity(cfg.SpeedOfLight)
	}
	return c, nil
}

// Models returns the additive models in evaluation order.
func (c *Composer) Models() []Model { return c.models }

func (c *Composer) Relativity() *Relativity { return c.relativity }

// NetForce returns the per-particle net force for the current state.
func (c *Composer) NetForce(s *particles.Store) ([]r3.Vec, Report, error) {
	var rep Report
	net := make([]r3.Vec, s.Len())
	for _, m := range c.models {
		f, err := m.Compute(s)
		if err != nil {
			return nil, rep, physerr.Wrapf(err, "%s", m.Name())
		}
		for i := range net {
			net[i] = r3.Add(net[i], f[i])
		}
	}
	if c.tree != nil {
		st := c.tree.Stats()
		rep = Report{TreeNodes: st.Nodes, TreeDepth: st.Depth, DirectFallback: st.DirectFallback}
	}
	if c.relativity != nil {
		if err := c.relativity.Apply(s, net); err != nil {
			return nil, rep, err
		}
	}
	return net, rep, nil
}

// Evaluate is NetForce without the report, in the shape integrators expect
// for intermediate stages.
func (c *Composer) Evaluate(s *particles.Store) ([]r3.Vec, error) {
	net, _, err := c.NetForce(s)
	return net, err
}
