// SPDX-License-Identifier: MIT

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func fail() error { return errBackend }
func ok() error   { return nil }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := NewCircuitBreaker("test", 3, 10*time.Second, WithClock(clock.Now))

	for range 2 {
		assert.ErrorIs(t, cb.Execute(fail), errBackend)
	}
	assert.Equal(t, StateClosed, cb.State())

	require.NoError(t, cb.Execute(ok), "success resets the count")
	for range 2 {
		_ = cb.Execute(fail)
	}
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestHalfOpenProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock.Now))

	_ = cb.Execute(fail)
	require.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(9 * time.Second)
	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen)

	// A failed probe reopens the breaker and restarts the timeout.
	clock.now = clock.now.Add(time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen)

	clock.now = clock.now.Add(10 * time.Second)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenAllowsOneProbeAtATime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clock.Now))
	_ = cb.Execute(fail)
	clock.now = clock.now.Add(2 * time.Second)

	err := cb.Execute(func() error {
		assert.Equal(t, StateHalfOpen, cb.State())
		assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen, "second probe rejected")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestDefaults(t *testing.T) {
	cb := NewCircuitBreaker("test", 0, 0)
	assert.Equal(t, 5, cb.threshold)
	assert.Equal(t, 10*time.Second, cb.resetTimeout)
}
