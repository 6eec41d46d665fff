// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/twincitiesguy/pravega-music-demo/internal/catalog"
	"github.com/twincitiesguy/pravega-music-demo/internal/player"
	"github.com/twincitiesguy/pravega-music-demo/internal/ratelimit"
	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

const never = math.MaxInt64 / 2

// scriptedSource replays fixed events, then reports nothing due.
type scriptedSource struct {
	events []songevent.Event
	next   int
}

func (s *scriptedSource) Peek() songevent.Event {
	if s.next < len(s.events) {
		return s.events[s.next]
	}
	return songevent.Event{Timestamp: never}
}

func (s *scriptedSource) Consume() songevent.Event {
	e := s.Peek()
	if s.next < len(s.events) {
		s.next++
	}
	return e
}

func event(listener, ts int64) songevent.Event {
	return songevent.Event{
		Timestamp:  ts,
		ListenerID: listener,
		Tier:       songevent.Member,
		Kind:       songevent.Next,
		Next: songevent.Context{
			ListType: songevent.Album,
			Artist:   "Toto",
			Album:    "Best of Toto",
			Song:     "Africa",
		},
	}
}

type received struct {
	key     string
	payload []byte
	at      time.Time
}

// recordingSink stores everything it is sent.
type recordingSink struct {
	mu   sync.Mutex
	got  []received
	fail func(key string) error
}

func (r *recordingSink) Send(_ context.Context, key string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		if err := r.fail(key); err != nil {
			return err
		}
	}
	r.got = append(r.got, received{key: key, payload: append([]byte(nil), payload...), at: time.Now()})
	return nil
}

func (r *recordingSink) snapshot() []received {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]received(nil), r.got...)
}

func (r *recordingSink) keys() []string {
	var keys []string
	for _, g := range r.snapshot() {
		keys = append(keys, g.key)
	}
	return keys
}

func sources(ss ...*scriptedSource) []Source {
	out := make([]Source, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func TestCollectPicksEventsWithinHorizon(t *testing.T) {
	const now = 1_000_000
	far := &scriptedSource{events: []songevent.Event{event(3, now+9000)}}
	late := &scriptedSource{events: []songevent.Event{event(2, now+3000)}}
	soon := &scriptedSource{events: []songevent.Event{event(1, now+1000)}}

	s := New(sources(far, late, soon), &recordingSink{}, WithHorizon(5*time.Second), WithLogger(zerolog.Nop()))

	batch := s.collect(now)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(now+1000), batch[0].Timestamp)
	assert.Equal(t, int64(now+3000), batch[1].Timestamp)
	assert.Equal(t, int64(3), far.Peek().ListenerID, "third event stays with its source")

	assert.Empty(t, s.collect(now+1000))

	batch = s.collect(now + 5000)
	require.Len(t, batch, 1)
	assert.Equal(t, int64(3), batch[0].ListenerID)
}

func TestCollectDrainsAllDueEventsPerSource(t *testing.T) {
	const now = 0
	a := &scriptedSource{events: []songevent.Event{event(1, 100), event(1, 200), event(1, 4_999), event(1, 5_000)}}
	b := &scriptedSource{events: []songevent.Event{event(2, 150)}}
	s := New(sources(a, b), &recordingSink{}, WithLogger(zerolog.Nop()))

	batch := s.collect(now)
	var ts []int64
	for _, e := range batch {
		ts = append(ts, e.Timestamp)
	}
	assert.Equal(t, []int64{100, 150, 200, 4_999}, ts)
	assert.EqualValues(t, 4, s.Stats().TotalGenerated())
}

func TestCollectKeepsSourceOrderForEqualTimestamps(t *testing.T) {
	a := &scriptedSource{events: []songevent.Event{event(1, 500)}}
	b := &scriptedSource{events: []songevent.Event{event(2, 500)}}
	c := &scriptedSource{events: []songevent.Event{event(3, 400)}}
	s := New(sources(a, b, c), &recordingSink{}, WithLogger(zerolog.Nop()))

	batch := s.collect(0)
	require.Len(t, batch, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{batch[0].ListenerID, batch[1].ListenerID, batch[2].ListenerID})
}

func TestNewDerivesCycleInterval(t *testing.T) {
	s := New(nil, &recordingSink{}, WithHorizon(2*time.Second))
	assert.Equal(t, 2*time.Second, s.Horizon())
	assert.Equal(t, 400*time.Millisecond, s.interval)

	s = New(nil, &recordingSink{}, WithHorizon(0))
	assert.Equal(t, DefaultHorizon, s.Horizon())
}

func TestDispatchWaitsUntilDue(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	start := time.Now().UnixMilli()
	sink := &recordingSink{}
	src := &scriptedSource{events: []songevent.Event{event(1, start+150), event(2, start+300)}}
	s := New(sources(src), sink, WithHorizon(time.Second), WithLogger(zerolog.Nop()))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, 3*time.Second, 10*time.Millisecond)
	s.Stop()
	require.NoError(t, <-done)

	got := sink.snapshot()
	assert.Equal(t, []string{"1", "2"}, sink.keys())
	for i, due := range []int64{start + 150, start + 300} {
		assert.GreaterOrEqual(t, got[i].at.UnixMilli(), due-int64(minWait/time.Millisecond), "event %d sent early", i)
	}
	assert.False(t, s.Running())
}

func TestDispatchDropsUnencodableEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	now := time.Now().UnixMilli()
	sink := &recordingSink{}
	src := &scriptedSource{events: []songevent.Event{event(1, now), event(2, now), event(3, now)}}
	enc := func(e songevent.Event) ([]byte, error) {
		if e.ListenerID == 2 {
			return nil, errors.New("cannot encode")
		}
		return songevent.Marshal(e)
	}
	s := New(sources(src), sink, WithEncoder(enc), WithLogger(zerolog.Nop()))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"1", "3"}, sink.keys())
	stats := s.Stats()
	assert.EqualValues(t, 1, stats.Dropped)
	assert.EqualValues(t, 2, stats.Sent)
}

func TestSendFailuresAreCountedAndSkipped(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	now := time.Now().UnixMilli()
	sink := &recordingSink{fail: func(key string) error {
		if key == "1" {
			return errors.New("broker unavailable")
		}
		return nil
	}}
	src := &scriptedSource{events: []songevent.Event{event(1, now), event(2, now)}}
	s := New(sources(src), sink, WithLogger(zerolog.Nop()))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"2"}, sink.keys())
	assert.EqualValues(t, 1, s.Stats().SendFailures)
}

func TestStopDrainsQueuedEventsAtDueTime(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	start := time.Now().UnixMilli()
	sink := &recordingSink{}
	src := &scriptedSource{events: []songevent.Event{event(1, start+400)}}
	s := New(sources(src), sink, WithHorizon(time.Second), WithLogger(zerolog.Nop()))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return s.Stats().TotalGenerated() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	require.NoError(t, <-done)

	got := sink.snapshot()
	require.Len(t, got, 1, "queued event still delivered after Stop")
	assert.GreaterOrEqual(t, got[0].at.UnixMilli(), start+400-int64(minWait/time.Millisecond))
}

func TestCancelInterruptsPendingWaits(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	start := time.Now().UnixMilli()
	sink := &recordingSink{}
	src := &scriptedSource{events: []songevent.Event{event(1, start+50), event(2, start+4_000)}}
	s := New(sources(src), sink, WithHorizon(5*time.Second), WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	got := sink.snapshot()
	require.Len(t, got, 2, "interrupted event is sent immediately, not dropped")
	assert.Less(t, got[1].at.UnixMilli(), start+4_000)
}

func TestRunTwiceFails(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := New(nil, &recordingSink{}, WithHorizon(50*time.Millisecond), WithLogger(zerolog.Nop()))
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	require.Eventually(t, s.Running, time.Second, time.Millisecond)

	require.ErrorIs(t, s.Run(context.Background()), ErrAlreadyRunning)
	s.Stop()
	require.NoError(t, <-done)
}

func TestStopBeforeRunReturnsPromptly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := New(nil, &recordingSink{}, WithLogger(zerolog.Nop()))
	s.Stop()
	s.Stop()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run ignored an earlier Stop")
	}
}

type countingLimiter struct {
	mu sync.Mutex
	n  int
}

func (l *countingLimiter) Wait(context.Context) error {
	l.mu.Lock()
	l.n++
	l.mu.Unlock()
	return nil
}

func TestLimiterIsConsultedPerSend(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	now := time.Now().UnixMilli()
	lim := &countingLimiter{}
	sink := &recordingSink{}
	src := &scriptedSource{events: []songevent.Event{event(1, now), event(1, now), event(1, now)}}
	s := New(sources(src), sink, WithLimiter(lim), WithLogger(zerolog.Nop()))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	require.NoError(t, <-done)

	lim.mu.Lock()
	defer lim.mu.Unlock()
	assert.Equal(t, 3, lim.n)
}

func TestThrottleStillPacesUnderDeadline(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	now := time.Now().UnixMilli()
	sink := &recordingSink{}
	src := &scriptedSource{events: []songevent.Event{event(1, now), event(2, now)}}
	s := New(sources(src), sink, WithLimiter(ratelimit.New(1)), WithLogger(zerolog.Nop()))

	// The second token is due after the deadline, so the send waits for the
	// deadline instead of going out unpaced.
	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	got := sink.snapshot()
	require.Len(t, got, 2)
	assert.GreaterOrEqual(t, got[1].at.Sub(got[0].at), 500*time.Millisecond)
}

func TestEndToEndWithSimulators(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for about two seconds")
	}
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cat, err := catalog.Parse(strings.NewReader("Africa::Toto::1\nHurt::Johnny Cash::2\nJolene::Dolly Parton::1\n"))
	require.NoError(t, err)

	const listeners = 25
	var srcs []Source
	for id := int64(1); id <= listeners; id++ {
		srcs = append(srcs, player.New(id, cat, player.WithRand(player.NewRand(77, id))))
	}

	const (
		horizon = 500 * time.Millisecond
		runFor  = 1500 * time.Millisecond
		epsilon = 50
	)
	sink := &recordingSink{}
	s := New(srcs, sink, WithHorizon(horizon), WithLogger(zerolog.Nop()))

	start := time.Now().UnixMilli()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	time.Sleep(runFor)
	stoppedAt := time.Now().UnixMilli()
	s.Stop()
	require.NoError(t, <-done)

	got := sink.snapshot()
	require.NotEmpty(t, got)
	assert.EqualValues(t, len(got), s.Stats().Sent)

	last := map[int64]int64{}
	for _, r := range got {
		e, err := songevent.Unmarshal(r.payload)
		require.NoError(t, err)
		assert.Equal(t, e.RoutingKey(), r.key)
		assert.GreaterOrEqual(t, e.Timestamp, start-epsilon)
		assert.LessOrEqual(t, e.Timestamp, stoppedAt+horizon.Milliseconds()+epsilon)
		assert.GreaterOrEqual(t, e.Timestamp, last[e.ListenerID], "listener %d went back in time", e.ListenerID)
		last[e.ListenerID] = e.Timestamp
	}
	assert.GreaterOrEqual(t, len(last), listeners/2, "most listeners produced events within the window")
}
