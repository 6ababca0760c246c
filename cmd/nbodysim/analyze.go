package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/nbodysim/internal/analysis"
	"github.com/san-kum/nbodysim/internal/automation"
	"github.com/san-kum/nbodysim/internal/compute"
	"github.com/san-kum/nbodysim/internal/scene"
	"github.com/san-kum/nbodysim/internal/sim"
	"github.com/san-kum/nbodysim/internal/storage"
	"github.com/san-kum/nbodysim/internal/viz"
)

func newLyapunovCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lyapunov",
		Short: "estimate the largest Lyapunov exponent of a configuration",
		RunE:  lyapunov,
	}
	addSimFlags(cmd)
	cmd.Flags().Int("steps", 2000, "ticks to follow the two trajectories")
	cmd.Flags().Float64("perturbation", 1e-8, "initial phase-space separation")
	return cmd
}

func lyapunov(cmd *cobra.Command, args []string) error {
	cfg, name, err := buildConfig(v)
	if err != nil {
		return err
	}
	initial, err := scene.Initialize(cfg)
	if err != nil {
		return err
	}

	log.Info().Str("name", name).Int("particles", initial.Len()).Msg("estimating lyapunov exponent")
	res, err := analysis.Lyapunov(cmd.Context(), cfg, initial, v.GetInt("steps"), v.GetFloat64("perturbation"),
		compute.NewCPUBackend(cfg.Workers))
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(name))
	fmt.Println(labelStyle.Render("steps") + fmt.Sprintf("%d (t=%.4g)", res.Steps, float64(res.Steps)*cfg.Dt))
	fmt.Println(labelStyle.Render("exponent") + fmt.Sprintf("%.6g", res.Exponent))
	if res.Exponent > 0 {
		fmt.Println(labelStyle.Render("e-folding time") + fmt.Sprintf("%.4g", 1/res.Exponent))
	}
	if graph := viz.Plot(viz.Downsample(res.Running, 70), 70, 8, "running estimate"); graph != "" {
		fmt.Println()
		fmt.Println(graph)
	}
	return nil
}

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>",
		Short: "play a scripted sequence of stages on one simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	cmd.Flags().Bool("no-save", false, "do not store the combined run")
	return cmd
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	name := sc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	log.Info().Str("scenario", name).Int("stages", len(sc.Stages)).Msg("running scenario")
	results, s, runErr := automation.Run(cmd.Context(), sc, sim.WithLogger(log), sim.WithEnergy(true))
	if s == nil {
		return runErr
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTEPS\tPARTICLES\tWALL\tREJECTED")
	combined := &sim.Result{}
	for _, r := range results {
		steps, n, wall := 0, 0, time.Duration(0)
		if r.Result != nil {
			steps, n, wall = r.Result.Steps, r.Result.Final.Store.Len(), r.Result.Elapsed
			combined.Steps += r.Result.Steps
			combined.Stats = append(combined.Stats, r.Result.Stats...)
			combined.Elapsed += r.Result.Elapsed
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%d\n", r.Name, steps, n, wall.Round(time.Millisecond), len(r.MutationErrors))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	final := s.Snapshot()
	combined.Final = final
	if !v.GetBool("no-save") && combined.Steps > 0 {
		cfg := s.Config()
		meta := storage.NewMetadata(name, cfg, combined, runErr)
		runID, err := storage.New(v.GetString("data")).Save(meta, storage.RowsFromStats(combined.Stats), final.Store)
		if err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		fmt.Printf("\nsaved as %s (step %d, t=%.4g, %d particles)\n", runID, final.Step, final.Time, final.Store.Len())
	}
	return runErr
}

func newMonteCarloCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run perturbed copies of a configuration and count the stable ones",
		RunE:  monteCarlo,
	}
	addSimFlags(cmd)
	cmd.Flags().Int("trials", 20, "perturbed copies")
	cmd.Flags().Int("steps", 1000, "ticks per trial")
	cmd.Flags().Float64("perturbation", 1e-3, "maximum displacement per axis")
	cmd.Flags().Float64("threshold", 0, "escape radius around the centre of mass (0 = ten times the initial extent)")
	cmd.Flags().Int("parallel", runtime.NumCPU(), "trials run at once")
	return cmd
}

func monteCarlo(cmd *cobra.Command, args []string) error {
	cfg, name, err := buildConfig(v)
	if err != nil {
		return err
	}
	initial, err := scene.Initialize(cfg)
	if err != nil {
		return err
	}

	mc := automation.MonteCarlo{
		Trials:       v.GetInt("trials"),
		Steps:        v.GetInt("steps"),
		Perturbation: v.GetFloat64("perturbation"),
		Threshold:    v.GetFloat64("threshold"),
		Seed:         uint64(cfg.Init.Seed),
		Workers:      v.GetInt("parallel"),
	}
	if mc.Threshold == 0 {
		mc.Threshold = stabilityRadius(initial)
	}

	log.Info().Str("name", name).Int("trials", mc.Trials).Float64("threshold", mc.Threshold).Msg("monte carlo")
	results, err := mc.Run(cmd.Context(), cfg, initial, sim.WithLogger(log))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tSTEPS\tSTABILITY\tENERGY DRIFT\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%d\t%.3f\t%.3e\t%s\n", r.TrialID, r.Steps, r.Stability, r.EnergyDrift, errText)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	stable, unstable, failed := automation.Summarize(results)
	fmt.Printf("\n%s: %d stable, %d unstable, %d failed of %d\n", name, stable, unstable, failed, len(results))
	return nil
}
