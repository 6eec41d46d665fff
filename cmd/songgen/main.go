// SPDX-License-Identifier: MIT

// Command songgen generates synthetic music-session events and delivers
// them to a streaming sink.
package main

import (
	"os"

	xglog "github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/version"
)

func main() {
	xglog.Configure(xglog.Config{
		Level:   "info",
		Version: version.Version,
	})

	if err := newRootCmd().Execute(); err != nil {
		logger := xglog.WithComponent("cli")
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "cli.failed").
			Strs("args", os.Args[1:]).
			Msg("songgen failed")
	}
}
