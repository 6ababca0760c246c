package main

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/metrics"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/sim"
	"github.com/san-kum/nbodysim/internal/storage"
	"github.com/san-kum/nbodysim/internal/viz"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation headless and save it",
		RunE:  runSimulation,
	}
	addSimFlags(cmd)
	cmd.Flags().Int("steps", 1000, "ticks to run")
	cmd.Flags().Bool("energy", true, "record total energy every tick")
	cmd.Flags().Bool("watch", false, "redraw the particles in the terminal while running")
	cmd.Flags().Int("fps", 10, "redraw rate for --watch")
	cmd.Flags().Bool("no-save", false, "do not store the run")
	return cmd
}

// defaultMetrics returns fresh metric instances for one run.
func defaultMetrics(cfg *config.Config, initial *particles.Store) []sim.Metric {
	return []sim.Metric{
		metrics.NewEnergyDrift(cfg),
		metrics.NewMomentumDrift(),
		metrics.NewStability(stabilityRadius(initial)),
	}
}

// stabilityRadius is ten times the initial extent around the centre of mass.
func stabilityRadius(s *particles.Store) float64 {
	com := metrics.CenterOfMass(s)
	var r float64
	for _, p := range s.Positions() {
		r = math.Max(r, r3.Norm(r3.Sub(p, com)))
	}
	if r == 0 {
		return 1
	}
	return 10 * r
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, name, err := buildConfig(v)
	if err != nil {
		return err
	}
	steps := v.GetInt("steps")

	s, err := newSimulator(cfg, v.GetBool("energy"))
	if err != nil {
		return err
	}
	for _, m := range defaultMetrics(cfg, s.Snapshot().Store) {
		s.AddMetric(m)
	}
	if v.GetBool("watch") {
		p := viz.NewPrinter(os.Stdout, name, v.GetInt("fps"))
		p.Start()
		defer p.Stop()
		s.AddObserver(p)
	}

	log.Info().Str("name", name).Int("particles", s.Snapshot().Store.Len()).Int("steps", steps).Msg("running")
	res, runErr := s.Run(cmd.Context(), steps)
	if res == nil {
		return runErr
	}
	if runErr != nil {
		log.Error().Err(runErr).Int("completed", res.Steps).Msg("run stopped early")
	}

	var runID string
	if !v.GetBool("no-save") {
		st := storage.New(v.GetString("data"))
		meta := storage.NewMetadata(name, cfg, res, runErr)
		runID, err = st.Save(meta, storage.RowsFromStats(res.Stats), res.Final.Store)
		if err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		log.Debug().Str("run", runID).Msg("saved")
	}

	printSummary(name, runID, cfg, res, runErr)
	return runErr
}

func printSummary(name, runID string, cfg *config.Config, res *sim.Result, runErr error) {
	field := func(label, format string, args ...any) {
		fmt.Println(labelStyle.Render(label) + fmt.Sprintf(format, args...))
	}

	fmt.Println(titleStyle.Render(name))
	if runID != "" {
		field("run id", "%s", runID)
	}
	field("steps", "%d", res.Steps)
	field("simulated time", "%.6g", res.Final.Time)
	field("particles", "%d", res.Final.Store.Len())
	field("wall time", "%v", res.Elapsed)
	if res.Steps > 0 {
		field("steps/sec", "%.1f", float64(res.Steps)/res.Elapsed.Seconds())
	}
	field("integrator", "%s", cfg.Integrator)
	field("gravity", "%s", cfg.Interaction)

	names := make([]string, 0, len(res.Metrics))
	for n := range res.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		field(n, "%.6g", res.Metrics[n])
	}

	var energy []float64
	for _, st := range res.Stats {
		if st.HasEnergy {
			energy = append(energy, st.Energy)
		}
	}
	if graph := viz.Plot(viz.Downsample(energy, 70), 70, 8, "total energy"); graph != "" {
		fmt.Println()
		fmt.Println(graph)
	}
	if runErr != nil {
		fmt.Println()
		fmt.Println(errStyle.Render(runErr.Error()))
	}
}
