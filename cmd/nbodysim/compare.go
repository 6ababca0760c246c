package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/optim"
	"github.com/san-kum/nbodysim/internal/physerr"
	"github.com/san-kum/nbodysim/internal/scene"
	"github.com/san-kum/nbodysim/internal/sim"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list the built-in presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tINTEG\tGRAVITY\tFORCES\tDESCRIPTION")
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					name, p.Config.Integrator, p.Config.Interaction,
					strings.Join(p.Config.Forces.Enabled(), ","), p.Description)
			}
			return w.Flush()
		},
	}
}

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <integrator>...",
		Short: "run the same initial state under several integrators in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	addSimFlags(cmd)
	cmd.Flags().Int("steps", 1000, "ticks per integrator")
	return cmd
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	base, name, err := buildConfig(v)
	if err != nil {
		return err
	}
	initial, err := scene.Initialize(base)
	if err != nil {
		return err
	}

	variants := make([]sim.Variant, 0, len(args))
	for _, arg := range args {
		m, err := config.ParseIntegrator(arg)
		if err != nil {
			return err
		}
		cfg := base.Clone()
		cfg.Integrator = m
		variants = append(variants, sim.Variant{Name: m.String(), Config: cfg})
	}

	steps := v.GetInt("steps")
	log.Info().Str("name", name).Int("particles", initial.Len()).Int("variants", len(variants)).Msg("comparing")

	metricsFor := func(cfg *config.Config) []sim.Metric { return defaultMetrics(cfg, initial) }
	results, runErr := sim.NewEnsemble(initial, variants, metricsFor, sim.WithLogger(log)).Run(cmd.Context(), steps)

	fmt.Printf("%s: %d bodies, %d steps of %g\n\n", name, initial.Len(), steps, base.Dt)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tWALL\tENERGY DRIFT\tMOMENTUM DRIFT\tSTABILITY")
	for i, r := range results {
		if r == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", variants[i].Name)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%v\t%.3e\t%.3e\t%.2f\n",
			variants[i].Name, r.Steps, r.Elapsed.Round(time.Millisecond),
			r.Metrics["energy_drift"], r.Metrics["momentum_drift"], r.Metrics["stability"])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "measure steps per second of direct and Barnes-Hut gravity",
		RunE:  benchmark,
	}
	cmd.Flags().IntSlice("counts", []int{100, 500, 1000, 2000}, "particle counts")
	cmd.Flags().Int("steps", 10, "ticks per measurement")
	cmd.Flags().Int("direct-limit", 5000, "skip direct summation above this count")
	return cmd
}

func benchmark(cmd *cobra.Command, args []string) error {
	counts := v.GetIntSlice("counts")
	steps := v.GetInt("steps")
	if steps <= 0 {
		return fmt.Errorf("steps must be positive")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tMODEL\tSTEPS\tTIME\tSTEPS/SEC\tTREE NODES")
	for _, n := range counts {
		for _, model := range []config.Interaction{config.Direct, config.BarnesHut} {
			if model == config.Direct && n > v.GetInt("direct-limit") {
				continue
			}
			cfg := config.GetPreset(defaultPreset)
			cfg.Init.Count = n
			cfg.Interaction = model
			cfg.Workers = v.GetInt("workers")

			s, err := newSimulator(cfg, false)
			if err != nil {
				return err
			}
			start := time.Now()
			res, err := s.Run(cmd.Context(), steps)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			nodes := res.Stats[len(res.Stats)-1].TreeNodes

			fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%.1f\t%d\n",
				n, model, res.Steps, elapsed.Round(time.Microsecond),
				float64(res.Steps)/elapsed.Seconds(), nodes)
		}
	}
	return w.Flush()
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid-search configuration parameters, ranked by a metric (lower is better)",
		Example: "  nbodysim sweep --preset binary --param dt=0.1,0.01,0.001 --param softening=0,0.01\n" +
			"parameters: " + strings.Join(optim.ParamNames(), ", "),
		RunE: sweep,
	}
	addSimFlags(cmd)
	cmd.Flags().StringArray("param", nil, "name=v1,v2,... (repeatable)")
	cmd.Flags().String("metric", "energy_drift", "energy_drift, momentum_drift or stability")
	cmd.Flags().Int("steps", 500, "ticks per grid point")
	cmd.Flags().Int("parallel", runtime.NumCPU(), "grid points run at once")
	cmd.Flags().Int("top", 10, "rows to print")
	return cmd
}

// parseParam reads "name=v1,v2,...".
func parseParam(s string) (optim.Param, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return optim.Param{}, physerr.Wrapf(physerr.ErrInvalidConfig, "parameter %q: want name=v1,v2", s)
	}
	p := optim.Param{Name: strings.TrimSpace(name)}
	for _, f := range strings.Split(list, ",") {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return optim.Param{}, physerr.Wrapf(physerr.ErrInvalidConfig, "parameter %s value %q", p.Name, f)
		}
		p.Values = append(p.Values, x)
	}
	return p, nil
}

func sweep(cmd *cobra.Command, args []string) error {
	raw, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("at least one --param is required (%s)", strings.Join(optim.ParamNames(), ", "))
	}
	params := make([]optim.Param, 0, len(raw))
	for _, r := range raw {
		p, err := parseParam(r)
		if err != nil {
			return err
		}
		params = append(params, p)
	}

	base, name, err := buildConfig(v)
	if err != nil {
		return err
	}
	initial, err := scene.Initialize(base)
	if err != nil {
		return err
	}

	g := optim.NewGridSearch(params, v.GetString("metric"))
	g.SetWorkers(v.GetInt("parallel"))
	steps := v.GetInt("steps")
	log.Info().Str("name", name).Int("points", len(g.Points())).Int("steps", steps).Msg("sweeping")

	metricsFor := func(cfg *config.Config) []sim.Metric { return defaultMetrics(cfg, initial) }
	trials, err := g.Search(cmd.Context(), base, initial, steps, metricsFor, sim.WithLogger(log))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tPARAMS\tSTEPS\t%s\tERROR\n", strings.ToUpper(v.GetString("metric")))
	for i, t := range trials {
		if i >= v.GetInt("top") {
			break
		}
		errText := ""
		if t.Err != nil {
			errText = t.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.4e\t%s\n", i+1, t.Label(), t.Steps, t.Score, errText)
	}
	return w.Flush()
}
