package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// v layers flags over NBODYSIM_* environment variables.
var v = viper.New()

var log = zerolog.Nop()

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nbodysim",
		Short:         "n-body particle simulation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			log = newLogger(v.GetBool("verbose"))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("data", ".nbodysim", "data directory for saved runs")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().Int("workers", 0, "force worker goroutines (0 = one per CPU)")

	rootCmd.AddCommand(
		newRunCmd(),
		newLiveCmd(),
		newListCmd(),
		newPlotCmd(),
		newExportCmd(),
		newPresetsCmd(),
		newCompareCmd(),
		newBenchCmd(),
		newSweepCmd(),
		newLyapunovCmd(),
		newScenarioCmd(),
		newMonteCarloCmd(),
	)
	return rootCmd
}

func main() {
	v.SetEnvPrefix("NBODYSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
