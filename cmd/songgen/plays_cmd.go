// SPDX-License-Identifier: MIT

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/twincitiesguy/pravega-music-demo/internal/app"
	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/version"
)

type playsFlags struct {
	common       commonFlags
	minXput      int
	maxXput      int
	xputInterval time.Duration
}

func (f *playsFlags) overrides(cmd *cobra.Command) []config.Override {
	var out []config.Override
	fs := cmd.Flags()
	if fs.Changed("min-xput") {
		out = append(out, func(c *config.Config) { c.Plays.MinXput = f.minXput })
	}
	if fs.Changed("max-xput") {
		out = append(out, func(c *config.Config) { c.Plays.MaxXput = f.maxXput })
	}
	if fs.Changed("xput-interval") {
		out = append(out, func(c *config.Config) { c.Plays.XputInterval = f.xputInterval })
	}
	return out
}

func newPlaysCmd() *cobra.Command {
	f := &playsFlags{}
	cmd := &cobra.Command{
		Use:   "plays",
		Short: "Stream random song plays at a wandering throughput",
		Long: `Writes {"playerId","song","artist"} records keyed by a random player id.
Every xput interval the rate is re-drawn between min and max plays per second.`,
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
			return a.RunPlays(ctx)
		},
	}

	fs := cmd.Flags()
	f.common.register(fs)
	fs.IntVar(&f.minXput, "min-xput", 0, "minimum plays per second (default 1)")
	fs.IntVar(&f.maxXput, "max-xput", 0, "maximum plays per second (default 20)")
	fs.DurationVar(&f.xputInterval, "xput-interval", 0, "how often the throughput changes (default 20s)")
	return cmd
}
