// SPDX-License-Identifier: MIT

// Package player simulates individual listeners as stochastic state machines
// that emit time-ordered session events.
package player

import (
	"math/rand/v2"
	"time"

	"github.com/twincitiesguy/pravega-music-demo/internal/catalog"
	"github.com/twincitiesguy/pravega-music-demo/internal/metrics"
	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

// PartnerService is the partner attached to PartnerMember listeners.
const PartnerService = "Prime"

// Timing constants in milliseconds.
const (
	firstEventWindow = 30_000
	resumeMin        = 30_000
	resumeMax        = 1_200_000
	switchMin        = 2_000
	switchMax        = 5_000
	lateOffset       = 5
)

// Simulator produces the event sequence of one listener. It is not safe for
// concurrent use; the scheduler owns each simulator exclusively.
type Simulator struct {
	id             int64
	tier           songevent.Tier
	partnerService string

	catalog *catalog.Catalog
	rng     *rand.Rand
	now     func() time.Time

	last   *songevent.Event
	cached *songevent.Event
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithRand injects the random source.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// WithClock overrides the wall clock used for first-event placement and
// late clamping.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// NewRand returns the per-listener source derived from a run seed.
func NewRand(seed uint64, listenerID int64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(listenerID))) // #nosec G404 -- synthetic load, not security sensitive
}

// New creates a listener simulator and draws its subscription tier.
func New(id int64, cat *catalog.Catalog, opts ...Option) *Simulator {
	s := &Simulator{
		id:      id,
		catalog: cat,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = NewRand(uint64(time.Now().UnixNano()), id)
	}
	s.tier = drawTier(s.rng.IntN(100))
	if s.tier == songevent.PartnerMember {
		s.partnerService = PartnerService
	}
	return s
}

// ID returns the listener id.
func (s *Simulator) ID() int64 { return s.id }

// Tier returns the subscription tier drawn at creation.
func (s *Simulator) Tier() songevent.Tier { return s.tier }

// Peek returns the next event without consuming it. Repeated calls return
// the same event until Consume is called.
func (s *Simulator) Peek() songevent.Event {
	if s.cached == nil {
		e := s.generate()
		s.cached = &e
	}
	return *s.cached
}

// Consume returns the next event and advances the sequence.
func (s *Simulator) Consume() songevent.Event {
	e := s.Peek()
	s.cached = nil
	return e
}

func drawTier(roll int) songevent.Tier {
	switch {
	case roll < 37:
		return songevent.FreeTier
	case roll < 56:
		return songevent.Member
	case roll < 81:
		return songevent.PartnerMember
	case roll < 93:
		return songevent.Promo30
	default:
		return songevent.Promo90
	}
}

func (s *Simulator) generate() songevent.Event {
	nowMs := s.now().UnixMilli()
	if s.last == nil {
		s.last = s.fabricateFirst(nowMs)
	}
	last := s.last

	e := songevent.Event{
		ListenerID:     s.id,
		Tier:           s.tier,
		PartnerService: s.partnerService,
		Prior:          last.Next,
	}
	priorType := e.Prior.ListType
	priorMs := int64(s.catalog.DurationSecondsOf(e.Prior.Song)) * 1000

	switch {
	case last.Kind == songevent.Pause:
		if s.chance(17) || priorType == songevent.SingleSong {
			e.Kind = songevent.Select
			e.Next = s.newSong(s.newList())
		} else {
			e.Kind = songevent.Resume
			e.Next = e.Prior
		}
		e.Timestamp = last.Timestamp + s.between(resumeMin, resumeMax)

	case s.chance(1):
		e.Kind = songevent.Pause
		e.Next = e.Prior
		e.Timestamp = last.Timestamp + s.below(priorMs)

	case s.likesSong(priorType):
		if priorType == songevent.SingleSong {
			e.Kind = songevent.Pause
			e.Next = e.Prior
		} else {
			e.Kind = songevent.Next
			e.Next = s.newSong(e.Prior)
		}
		e.Timestamp = last.Timestamp + priorMs

	case s.likesList(priorType):
		e.Kind = songevent.Skip
		e.Next = s.newSong(e.Prior)
		e.Timestamp = last.Timestamp + s.between(switchMin, switchMax)

	default:
		e.Kind = songevent.Select
		e.Next = s.newSong(s.newList())
		e.Timestamp = last.Timestamp + s.between(switchMin, switchMax)
	}

	if e.Timestamp <= nowMs {
		e.Timestamp = nowMs + lateOffset
		metrics.IncLateEventsClamped()
	}
	metrics.RecordEventGenerated(string(e.Kind))

	s.last = &e
	return e
}

// fabricateFirst builds the synthetic predecessor of a listener's first real
// event: a Next into a fresh list, placed up to 30s in the past.
func (s *Simulator) fabricateFirst(nowMs int64) *songevent.Event {
	return &songevent.Event{
		ListenerID: s.id,
		Tier:       s.tier,
		Kind:       songevent.Next,
		Next:       s.newSong(s.newList()),
		Timestamp:  nowMs - int64(s.rng.IntN(firstEventWindow)),
	}
}

func (s *Simulator) chance(percent int) bool {
	return s.rng.IntN(100) < percent
}

func (s *Simulator) between(lo, hi int) int64 {
	return int64(lo + s.rng.IntN(hi-lo))
}

func (s *Simulator) below(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return s.rng.Int64N(n)
}
