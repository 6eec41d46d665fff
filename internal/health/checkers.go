// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"sync/atomic"

	"github.com/twincitiesguy/pravega-music-demo/internal/resilience"
)

// FlagChecker reports healthy once Set(true) has been called.
type FlagChecker struct {
	name string
	down string
	up   string
	ok   atomic.Bool
}

// NewFlagChecker creates a checker with the given messages for both states.
func NewFlagChecker(name, up, down string) *FlagChecker {
	return &FlagChecker{name: name, up: up, down: down}
}

// Set records the component state.
func (c *FlagChecker) Set(ok bool) { c.ok.Store(ok) }

func (c *FlagChecker) Name() string { return c.name }

func (c *FlagChecker) Check(context.Context) CheckResult {
	if c.ok.Load() {
		return CheckResult{Status: StatusHealthy, Message: c.up}
	}
	return CheckResult{Status: StatusUnhealthy, Message: c.down}
}

// RunningChecker probes a component that reports whether its loop is active.
type RunningChecker struct {
	name    string
	running func() bool
}

// NewRunningChecker wraps a Running() style accessor.
func NewRunningChecker(name string, running func() bool) *RunningChecker {
	return &RunningChecker{name: name, running: running}
}

func (c *RunningChecker) Name() string { return c.name }

func (c *RunningChecker) Check(context.Context) CheckResult {
	if c.running() {
		return CheckResult{Status: StatusHealthy, Message: "running"}
	}
	return CheckResult{Status: StatusUnhealthy, Message: "not running"}
}

// LagChecker degrades when the dispatch queue grows past a threshold.
type LagChecker struct {
	depth     func() int
	threshold int
}

// NewLagChecker creates a checker on a queue depth accessor.
func NewLagChecker(depth func() int, threshold int) *LagChecker {
	return &LagChecker{depth: depth, threshold: threshold}
}

func (c *LagChecker) Name() string { return "dispatch_queue" }

func (c *LagChecker) Check(context.Context) CheckResult {
	if c.threshold > 0 && c.depth() > c.threshold {
		return CheckResult{Status: StatusDegraded, Message: "dispatch queue backlog"}
	}
	return CheckResult{Status: StatusHealthy}
}

// BreakerChecker degrades readiness while a circuit breaker is not closed.
type BreakerChecker struct {
	name  string
	state func() resilience.State
}

// NewBreakerChecker wraps a breaker state accessor.
func NewBreakerChecker(name string, state func() resilience.State) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	s := c.state()
	if s == resilience.StateClosed {
		return CheckResult{Status: StatusHealthy, Message: string(s)}
	}
	return CheckResult{Status: StatusDegraded, Message: "circuit " + string(s)}
}
