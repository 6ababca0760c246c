package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/metrics"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/physerr"
	"github.com/san-kum/nbodysim/internal/sim"
)

func binary() *particles.Store {
	s, err := particles.FromBodies([]particles.Body{
		{Position: r3.Vec{X: -0.5}, Velocity: r3.Vec{Y: -math.Sqrt(0.5)}, Mass: 1},
		{Position: r3.Vec{X: 0.5}, Velocity: r3.Vec{Y: math.Sqrt(0.5)}, Mass: 1},
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

func directConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Interaction = config.Direct
	cfg.Workers = 1
	return cfg
}

var _ = Describe("Simulator", func() {
	var (
		ctx context.Context
		cfg *config.Config
		s   *sim.Simulator
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = directConfig()
		var err error
		s, err = sim.New(cfg, binary(), sim.WithBackend(compute.Serial()))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("rejects a nil store", func() {
			_, err := sim.New(cfg, nil)
			Expect(err).To(MatchError(physerr.ErrInvalidParticleInput))
		})

		It("rejects a nil configuration", func() {
			_, err := sim.New(nil, binary())
			Expect(err).To(MatchError(physerr.ErrInvalidConfig))
		})

		It("rejects an invalid configuration", func() {
			cfg.Dt = -1
			_, err := sim.New(cfg, binary())
			Expect(err).To(MatchError(physerr.ErrInvalidConfig))
		})

		It("publishes the initial state", func() {
			snap := s.Snapshot()
			Expect(snap.Step).To(BeZero())
			Expect(snap.Time).To(BeZero())
			Expect(snap.Store.Len()).To(Equal(2))
		})

		It("copies the configuration", func() {
			cfg.Dt = 5
			Expect(s.Config().Dt).To(Equal(config.DefaultDt))
		})
	})

	Describe("Run", func() {
		It("advances step and time by one timestep per tick", func() {
			res, err := s.Run(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps).To(Equal(10))
			Expect(res.Stats).To(HaveLen(10))
			Expect(res.Final.Step).To(Equal(uint64(10)))
			Expect(res.Final.Time).To(BeNumerically("~", 10*config.DefaultDt, 1e-12))
			for i, st := range res.Stats {
				Expect(st.Step).To(Equal(uint64(i + 1)))
				Expect(st.Particles).To(Equal(2))
			}
		})

		It("rejects a non-positive step count", func() {
			_, err := s.Run(ctx, 0)
			Expect(err).To(MatchError(physerr.ErrInvalidConfig))
		})

		It("reports metric values", func() {
			s.AddMetric(metrics.NewEnergyDrift(cfg))
			s.AddMetric(metrics.NewStability(10))
			res, err := s.Run(ctx, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Metrics).To(HaveKey("stability"))
			Expect(res.Metrics["stability"]).To(Equal(1.0))
			Expect(res.Metrics).To(HaveLen(2))
			for name, v := range res.Metrics {
				if name != "stability" {
					Expect(v).To(BeNumerically("<", 1e-3))
				}
			}
		})

		It("stops at a cancelled context between ticks", func() {
			cctx, cancel := context.WithCancel(ctx)
			ticks := 0
			s.AddObserver(sim.ObserverFunc(func(sim.Snapshot, sim.Stats) {
				ticks++
				if ticks == 3 {
					cancel()
				}
			}))
			res, err := s.Run(cctx, 10)
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.Steps).To(Equal(3))
			Expect(s.Snapshot().Step).To(Equal(uint64(3)))
		})
	})

	Describe("RunWithCallback", func() {
		It("ticks until the callback declines", func() {
			var seen []uint64
			err := s.RunWithCallback(ctx, func(snap sim.Snapshot, st sim.Stats) bool {
				Expect(snap.Step).To(Equal(st.Step))
				seen = append(seen, st.Step)
				return len(seen) < 5
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal([]uint64{1, 2, 3, 4, 5}))
		})

		It("returns the context error", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := s.RunWithCallback(cctx, func(sim.Snapshot, sim.Stats) bool { return true })
			Expect(err).To(MatchError(context.Canceled))
			Expect(s.Snapshot().Step).To(BeZero())
		})
	})

	Describe("snapshots", func() {
		It("are not affected by later ticks", func() {
			snap := s.Snapshot()
			_, err := s.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Step).To(BeZero())
			Expect(snap.Store.Positions()[0]).To(Equal(r3.Vec{X: -0.5}))
			Expect(s.Snapshot().Store.Positions()[0]).NotTo(Equal(r3.Vec{X: -0.5}))
		})

		It("do not feed back into the simulation", func() {
			s.Snapshot().Store.Positions()[0] = r3.Vec{X: 100}
			_, err := s.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Snapshot().Store.Positions()[0].X).To(BeNumerically("~", -0.5, 1e-3))
		})

		It("are delivered to observers after each tick", func() {
			var steps []uint64
			s.AddObserver(sim.ObserverFunc(func(snap sim.Snapshot, st sim.Stats) {
				steps = append(steps, snap.Step)
			}))
			_, err := s.Run(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal([]uint64{1, 2, 3}))
		})

		It("let observers call back into the simulator", func() {
			s.AddObserver(sim.ObserverFunc(func(snap sim.Snapshot, st sim.Stats) {
				next := s.Config()
				next.Dt *= 2
				Expect(s.SetConfig(next)).To(Succeed())
				Expect(s.Frozen()).To(Succeed())
			}))

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := s.Run(ctx, 2)
				done <- err
			}()
			Eventually(done, "2s").Should(Receive(BeNil()))
			Expect(s.Config().Dt).To(Equal(4 * config.DefaultDt))
			Expect(s.Snapshot().Time).To(BeNumerically("~", 3*config.DefaultDt, 1e-12))
		})
	})

	Describe("particle requests", func() {
		It("adds a body after the tick", func() {
			s.RequestAdd(particles.Body{Position: r3.Vec{Z: 3}, Mass: 0.5})
			Expect(s.Snapshot().Store.Len()).To(Equal(2))

			st, err := s.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Particles).To(Equal(3))
			Expect(st.MutationErrors).To(BeEmpty())
			Expect(s.Snapshot().Store.Body(2).Position).To(Equal(r3.Vec{Z: 3}))
		})

		It("rejects an out of range removal without touching the store", func() {
			s.RequestRemove(7)
			st, err := s.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Particles).To(Equal(2))
			Expect(st.MutationErrors).To(HaveLen(1))
			Expect(st.MutationErrors[0]).To(MatchError(physerr.ErrIndexOutOfRange))
		})

		It("rejects an invalid body", func() {
			s.RequestAdd(particles.Body{Mass: -1})
			errs := s.ApplyPending()
			Expect(errs).To(HaveLen(1))
			Expect(errs[0]).To(MatchError(physerr.ErrInvalidParticleInput))
			Expect(s.Snapshot().Store.Len()).To(Equal(2))
		})

		It("applies requests in order while paused", func() {
			s.RequestRemove(0)
			s.RequestRemove(0)
			Expect(s.ApplyPending()).To(BeEmpty())
			snap := s.Snapshot()
			Expect(snap.Step).To(BeZero())
			Expect(snap.Store.Len()).To(BeZero())

			// an empty system still ticks
			st, err := s.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Particles).To(BeZero())
		})

		It("accepts requests from other goroutines", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 50; i++ {
					s.RequestAdd(particles.Body{Position: r3.Vec{X: float64(i) + 2}, Mass: 1})
				}
			}()
			for i := 0; i < 20; i++ {
				_, err := s.Step(ctx)
				Expect(err).NotTo(HaveOccurred())
			}
			<-done
			s.ApplyPending()
			Expect(s.Snapshot().Store.Len()).To(Equal(52))
		})
	})

	Describe("numeric instability", func() {
		BeforeEach(func() {
			cfg.Forces.Relativity = true
			cfg.SpeedOfLight = 0.5
			Expect(s.SetConfig(cfg)).To(Succeed())
		})

		It("freezes on the last valid state", func() {
			before := s.Snapshot()
			_, err := s.Step(ctx)
			Expect(err).To(MatchError(physerr.ErrNumericInstability))
			var se sim.SimError
			Expect(err).To(BeAssignableToTypeOf(se))
			Expect(s.Frozen()).To(MatchError(physerr.ErrNumericInstability))

			after := s.Snapshot()
			Expect(after.Step).To(Equal(before.Step))
			Expect(after.Store.Bodies()).To(Equal(before.Store.Bodies()))

			_, err = s.Step(ctx)
			Expect(err).To(MatchError(physerr.ErrFrozen))
		})

		It("continues after Resume once the cause is removed", func() {
			_, err := s.Step(ctx)
			Expect(err).To(HaveOccurred())

			cfg.Forces.Relativity = false
			Expect(s.SetConfig(cfg)).To(Succeed())
			Expect(s.Frozen()).To(HaveOccurred())
			s.Resume()
			Expect(s.Frozen()).NotTo(HaveOccurred())

			st, err := s.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Step).To(Equal(uint64(1)))
		})

		It("stops Run with a partial result", func() {
			res, err := s.Run(ctx, 5)
			Expect(err).To(MatchError(physerr.ErrNumericInstability))
			Expect(res.Steps).To(BeZero())
			Expect(res.Final.Store.Len()).To(Equal(2))
		})
	})

	Describe("SetConfig", func() {
		It("keeps the previous configuration when the new one is invalid", func() {
			bad := cfg.Clone()
			bad.Theta = -1
			Expect(s.SetConfig(bad)).To(MatchError(physerr.ErrInvalidConfig))
			Expect(s.Config().Theta).To(Equal(config.DefaultTheta))
		})

		It("switches integrator and timestep between ticks", func() {
			next := cfg.Clone()
			next.Integrator = config.RK4
			next.Dt = 0.02
			_, err := s.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.SetConfig(next)).To(Succeed())
			st, err := s.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Time).To(BeNumerically("~", 0.03, 1e-12))
			Expect(s.Config().Integrator).To(Equal(config.RK4))
		})
	})

	Describe("statistics", func() {
		It("tracks total energy when asked", func() {
			tracked, err := sim.New(cfg, binary(), sim.WithEnergy(true))
			Expect(err).NotTo(HaveOccurred())
			res, err := tracked.Run(ctx, 50)
			Expect(err).NotTo(HaveOccurred())
			for _, st := range res.Stats {
				Expect(st.HasEnergy).To(BeTrue())
				Expect(st.Energy).To(BeNumerically("~", -0.5, 1e-2))
			}

			res, err = s.Run(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stats[0].HasEnergy).To(BeFalse())
		})

		It("reports the tree and the direct fallback", func() {
			bh := config.DefaultConfig()
			bh.Workers = 1

			spread, err := sim.New(bh, binary())
			Expect(err).NotTo(HaveOccurred())
			st, err := spread.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.DirectFallback).To(BeFalse())
			Expect(st.TreeNodes).To(BeNumerically(">", 1))

			stacked, err := particles.FromBodies([]particles.Body{
				{Position: r3.Vec{X: 1}, Mass: 1},
				{Position: r3.Vec{X: 1}, Mass: 1},
				{Position: r3.Vec{X: 1}, Mass: 1},
			})
			Expect(err).NotTo(HaveOccurred())
			degenerate, err := sim.New(bh, stacked)
			Expect(err).NotTo(HaveOccurred())
			st, err = degenerate.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.DirectFallback).To(BeTrue())
		})
	})
})

var _ = Describe("Ensemble", func() {
	It("runs each variant on its own copy", func() {
		initial := binary()
		euler := directConfig()
		euler.Integrator = config.Euler
		rk4 := directConfig()
		rk4.Integrator = config.RK4

		e := sim.NewEnsemble(initial, []sim.Variant{
			{Name: "euler", Config: euler},
			{Name: "rk4", Config: rk4},
		}, func(cfg *config.Config) []sim.Metric {
			return []sim.Metric{metrics.NewEnergyDrift(cfg)}
		})

		results, err := e.Run(context.Background(), 200)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		for _, r := range results {
			Expect(r.Steps).To(Equal(200))
			Expect(r.Metrics).To(HaveLen(1))
		}
		Expect(results[0].Final.Store.Bodies()).NotTo(Equal(results[1].Final.Store.Bodies()))
		Expect(initial.Positions()[0]).To(Equal(r3.Vec{X: -0.5}))

		var eulerDrift, rk4Drift float64
		for _, v := range results[0].Metrics {
			eulerDrift = v
		}
		for _, v := range results[1].Metrics {
			rk4Drift = v
		}
		Expect(eulerDrift).To(BeNumerically(">", rk4Drift))
	})

	It("names the failing variant", func() {
		bad := directConfig()
		bad.Forces.Relativity = true
		bad.SpeedOfLight = 0.1

		e := sim.NewEnsemble(binary(), []sim.Variant{
			{Name: "ok", Config: directConfig()},
			{Name: "fast", Config: bad},
		}, nil)
		_, err := e.Run(context.Background(), 10)
		Expect(err).To(MatchError(physerr.ErrNumericInstability))
		Expect(err.Error()).To(ContainSubstring("fast"))
	})
})
