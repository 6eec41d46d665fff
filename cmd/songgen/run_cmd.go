// SPDX-License-Identifier: MIT

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/twincitiesguy/pravega-music-demo/internal/app"
	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/version"
)

type runFlags struct {
	common  commonFlags
	players int
	horizon time.Duration
	maxRate float64
}

func (f *runFlags) overrides(cmd *cobra.Command) []config.Override {
	var out []config.Override
	fs := cmd.Flags()
	if fs.Changed("players") {
		out = append(out, func(c *config.Config) { c.Generator.Players = f.players })
	}
	if fs.Changed("horizon") {
		out = append(out, func(c *config.Config) { c.Generator.Horizon = f.horizon })
	}
	if fs.Changed("max-rate") {
		out = append(out, func(c *config.Config) { c.Generator.MaxEventsPerSecond = f.maxRate })
	}
	return out
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate listeners and stream their session events",
		Long: `Simulates the configured number of listeners and writes their session
events to the sink in timestamp order. 100 listeners produce roughly 8
events per second.

The first SIGINT/SIGTERM stops generation and lets queued events drain at
their due time; a second signal sends the remaining events immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			holder, err := f.common.load(cmd, f.overrides(cmd)...)
			if err != nil {
				return err
			}
			a := app.New(app.Options{
				Holder:  holder,
				Version: version.Version,
				Stdout:  cmd.OutOrStdout(),
			})
			ctx, cancel := withSignals(cmd.Context(), a.Stop)
			defer cancel()
			return a.Run(ctx)
		},
	}

	fs := cmd.Flags()
	f.common.register(fs)
	fs.IntVarP(&f.players, "players", "p", 0, "number of simulated listeners (default 100)")
	fs.DurationVar(&f.horizon, "horizon", 0, "look-ahead window for batch assembly (default 5s)")
	fs.Float64Var(&f.maxRate, "max-rate", 0, "cap on events per second (0 = unlimited)")
	return cmd
}
