// SPDX-License-Identifier: MIT

package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "songgen",
		Short: "Synthetic music-session event generator",
		Long: `songgen simulates listeners moving through albums, playlists and stations
and writes their session events, in time order, to a streaming sink.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newPlaysCmd(),
		newCatalogCmd(),
		newVersionCmd(),
	)
	return root
}
