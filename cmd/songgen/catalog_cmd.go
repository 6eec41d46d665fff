// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/twincitiesguy/pravega-music-demo/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect song lists",
	}
	cmd.AddCommand(newCatalogValidateCmd(), newCatalogSampleCmd())
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Parse a song list and report its size",
		Long:  "Parses the given song list, or the embedded one when no path is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cat, err := catalog.Open(path)
			if err != nil {
				return err
			}
			name := path
			if name == "" {
				name = "embedded"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d songs\n", name, cat.Len())
			return err
		},
	}
}

func newCatalogSampleCmd() *cobra.Command {
	var (
		path  string
		count int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print random songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.Open(path)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			rng := rand.New(rand.NewPCG(seed, 0))
			out := cmd.OutOrStdout()
			for range count {
				s := cat.RandomSong(rng)
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", s.Title, s.Artist, time.Duration(s.DurationSeconds)*time.Second); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "", "song list file (default: embedded list)")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of songs to print")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 derives one from the clock)")
	return cmd
}
