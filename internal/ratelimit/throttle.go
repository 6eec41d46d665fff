// SPDX-License-Identifier: MIT

// Package ratelimit caps how fast payloads are handed to a sink.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/twincitiesguy/pravega-music-demo/internal/metrics"
)

var errNoToken = errors.New("ratelimit: no token available")

// Throttle is a live-adjustable events-per-second cap. A non-positive rate
// means unlimited.
type Throttle struct {
	limiter *rate.Limiter
	spaced  bool
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithoutBurst spaces every event 1/rate apart instead of allowing a
// one-second burst.
func WithoutBurst() Option {
	return func(t *Throttle) { t.spaced = true }
}

// New returns a throttle allowing perSecond events per second.
func New(perSecond float64, opts ...Option) *Throttle {
	t := &Throttle{}
	for _, opt := range opts {
		opt(t)
	}
	limit, burst := t.toLimit(perSecond)
	t.limiter = rate.NewLimiter(limit, burst)
	metrics.SetThrottleRate(math.Max(perSecond, 0))
	return t
}

// SetRate changes the cap; waiting callers observe the new rate.
func (t *Throttle) SetRate(perSecond float64) {
	limit, burst := t.toLimit(perSecond)
	t.limiter.SetLimit(limit)
	t.limiter.SetBurst(burst)
	metrics.SetThrottleRate(math.Max(perSecond, 0))
}

// Rate returns the current cap, 0 when unlimited.
func (t *Throttle) Rate() float64 {
	l := t.limiter.Limit()
	if l == rate.Inf {
		return 0
	}
	return float64(l)
}

// Wait blocks until the next event may be sent or ctx is done. Unlike
// rate.Limiter.Wait it keeps waiting when the token is due after the ctx
// deadline, and only returns ctx.Err() once ctx is actually done.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := t.limiter.Reserve()
	if !r.OK() {
		return errNoToken
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// toLimit allows a burst of one second's worth so a drained backlog does
// not stall behind strict spacing, unless the throttle is spaced.
func (t *Throttle) toLimit(perSecond float64) (rate.Limit, int) {
	if perSecond <= 0 {
		return rate.Inf, 1
	}
	if t.spaced {
		return rate.Limit(perSecond), 1
	}
	burst := int(math.Ceil(perSecond))
	if burst < 1 {
		burst = 1
	}
	return rate.Limit(perSecond), burst
}
