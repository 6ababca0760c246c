package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/nbodysim/internal/config"
	"github.com/san-kum/nbodysim/internal/sim"
	"github.com/san-kum/nbodysim/internal/viz"
)

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "interactive terminal view (preset picker without --preset/--config)",
		RunE:  runLive,
	}
	addSimFlags(cmd)
	return cmd
}

func runLive(cmd *cobra.Command, args []string) error {
	// the live view owns the terminal
	log = zerolog.Nop()

	if v.GetString("preset") == "" && v.GetString("config") == "" && v.GetString("scene-file") == "" {
		items := make([]viz.MenuItem, 0, len(config.Presets))
		for _, name := range config.ListPresets() {
			items = append(items, viz.MenuItem{Name: name, Description: config.Presets[name].Description})
		}
		start := func(name string) (*sim.Simulator, error) {
			v.Set("preset", name)
			cfg, _, err := buildConfig(v)
			if err != nil {
				return nil, err
			}
			return newSimulator(cfg, false)
		}
		return viz.RunInteractive(cmd.Context(), items, start)
	}

	cfg, name, err := buildConfig(v)
	if err != nil {
		return err
	}
	s, err := newSimulator(cfg, false)
	if err != nil {
		return err
	}
	return viz.Run(cmd.Context(), s, name)
}
