// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	xglog "github.com/twincitiesguy/pravega-music-demo/internal/log"
)

// withSignals calls stop on the first SIGINT/SIGTERM and cancels the
// returned context on the second.
func withSignals(parent context.Context, stop func()) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		relaySignals(ctx, sigCh, stop, cancel)
	}()
	return ctx, cancel
}

func relaySignals(ctx context.Context, sigCh <-chan os.Signal, stop func(), cancel context.CancelFunc) {
	logger := xglog.WithComponent("cli")

	select {
	case <-ctx.Done():
		return
	case sig := <-sigCh:
		logger.Info().
			Str(xglog.FieldEvent, "cli.signal").
			Str("signal", sig.String()).
			Msg("stopping; signal again to skip remaining waits")
		stop()
	}

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		logger.Warn().
			Str(xglog.FieldEvent, "cli.signal_forced").
			Str("signal", sig.String()).
			Msg("interrupting pending dispatch waits")
		cancel()
	}
}
