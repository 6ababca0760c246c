package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/nbodysim/internal/analysis"
	"github.com/san-kum/nbodysim/internal/export"
	"github.com/san-kum/nbodysim/internal/scene"
	"github.com/san-kum/nbodysim/internal/storage"
	"github.com/san-kum/nbodysim/internal/viz"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}
}

func newPlotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot <run-id>",
		Short: "plot energy, particle count and tick time of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "print a saved run as JSON, or write its final state as a scene file or SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	cmd.Flags().String("final", "", "write the final state to this scene file (.json or .yaml)")
	cmd.Flags().String("svg", "", "render the final state to this SVG file")
	cmd.Flags().String("energy-svg", "", "render the energy series to this SVG file")
	return cmd
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(v.GetString("data")).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tN\tSTEPS\tDT\tINTEG\tGRAVITY\tFORCES\tSTATUS")
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Steps,
			run.Dt,
			run.Integrator,
			run.Interaction,
			strings.Join(run.Forces, ","),
			status,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(v.GetString("data"))
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rows, err := st.LoadStats(runID)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("run %s has too few steps to plot", runID)
	}

	var energy, count, tick []float64
	for _, r := range rows {
		if r.HasEnergy {
			energy = append(energy, r.Energy)
		}
		count = append(count, float64(r.Particles))
		tick = append(tick, float64(r.ElapsedMicros))
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("steps: %d  dt: %g  integrator: %s  gravity: %s\n\n", meta.Steps, meta.Dt, meta.Integrator, meta.Interaction)

	if len(energy) > 1 {
		e0 := energy[0]
		fmt.Println(viz.Plot(viz.Downsample(energy, 80), 80, 10, "total energy"))
		fmt.Printf("  min %.6g  max %.6g  spread %.3e (relative %.3e)\n",
			floats.Min(energy), floats.Max(energy),
			floats.Max(energy)-floats.Min(energy),
			(floats.Max(energy)-floats.Min(energy))/math.Abs(e0))
		if period := analysis.DominantPeriod(energy, meta.Dt); period > 0 {
			fmt.Printf("  strongest oscillation period %.4g\n", period)
		}
		fmt.Println()
	}
	if floats.Min(count) != floats.Max(count) {
		fmt.Println(viz.Plot(viz.Downsample(count, 80), 80, 6, "particle count"))
		fmt.Println()
	}
	fmt.Println(viz.Plot(viz.Downsample(tick, 80), 80, 6, "tick time (µs)"))
	fmt.Printf("  mean %.1f µs\n", floats.Sum(tick)/float64(len(tick)))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(v.GetString("data"))

	if v.GetString("svg") != "" || v.GetString("energy-svg") != "" {
		return exportSVG(st, runID)
	}
	if path := v.GetString("final"); path != "" {
		final, err := st.LoadFinal(runID)
		if err != nil {
			return err
		}
		if err := scene.Save(path, scene.FromStore(runID, "final state of "+runID, final)); err != nil {
			return err
		}
		fmt.Printf("wrote %d bodies to %s\n", final.Len(), path)
		return nil
	}
	return st.Export(os.Stdout, runID)
}

func exportSVG(st *storage.Store, runID string) error {
	if path := v.GetString("svg"); path != "" {
		final, err := st.LoadFinal(runID)
		if err != nil {
			return err
		}
		cam := viz.NewCamera()
		cam.Fit(final)
		if err := writeFile(path, func(w io.Writer) error {
			return export.Particles(w, final, cam, 800, 800, viz.CurrentTheme)
		}); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
	}

	if path := v.GetString("energy-svg"); path != "" {
		rows, err := st.LoadStats(runID)
		if err != nil {
			return err
		}
		var energy []float64
		for _, r := range rows {
			if r.HasEnergy {
				energy = append(energy, r.Energy)
			}
		}
		if len(energy) < 2 {
			return fmt.Errorf("run %s has no energy series", runID)
		}
		if err := writeFile(path, func(w io.Writer) error {
			return export.Series(w, energy, 800, 300, string(viz.CurrentTheme.Accent))
		}); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
