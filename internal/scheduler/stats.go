// SPDX-License-Identifier: MIT

package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

// Stats are the run counters kept alongside the Prometheus metrics so a
// run report can be written without scraping.
type Stats struct {
	mu        sync.Mutex
	generated map[songevent.Kind]int64

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Generated    map[songevent.Kind]int64 `json:"generated"`
	Sent         int64                    `json:"sent"`
	SendFailures int64                    `json:"send_failures"`
	Dropped      int64                    `json:"dropped"`
}

func (s *Stats) recordGenerated(k songevent.Kind) {
	s.mu.Lock()
	if s.generated == nil {
		s.generated = make(map[songevent.Kind]int64)
	}
	s.generated[k]++
	s.mu.Unlock()
}

func (s *Stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	gen := make(map[songevent.Kind]int64, len(s.generated))
	for k, v := range s.generated {
		gen[k] = v
	}
	s.mu.Unlock()
	return StatsSnapshot{
		Generated:    gen,
		Sent:         s.sent.Load(),
		SendFailures: s.failed.Load(),
		Dropped:      s.dropped.Load(),
	}
}

// TotalGenerated sums events over all kinds.
func (s StatsSnapshot) TotalGenerated() int64 {
	var n int64
	for _, v := range s.Generated {
		n += v
	}
	return n
}
