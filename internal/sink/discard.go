// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"sync/atomic"
)

// Discard drops payloads and counts them.
type Discard struct {
	sent   atomic.Int64
	bytes  atomic.Int64
	closed atomic.Bool
}

func NewDiscard() *Discard {
	return &Discard{}
}

func (d *Discard) Send(_ context.Context, _ string, payload []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.sent.Add(1)
	d.bytes.Add(int64(len(payload)))
	return nil
}

func (d *Discard) Close() error {
	d.closed.Store(true)
	return nil
}

// Count returns the number of payloads accepted.
func (d *Discard) Count() int64 { return d.sent.Load() }

// Bytes returns the total payload size accepted.
func (d *Discard) Bytes() int64 { return d.bytes.Load() }
