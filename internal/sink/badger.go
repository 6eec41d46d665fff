// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
)

// Badger stores payloads in an embedded key-value store under
// "<stream>/<routingKey>/<sequence>", so a prefix scan per listener returns
// its events in send order.
type Badger struct {
	db     *badger.DB
	stream string
	seq    atomic.Uint64
}

// NewBadger opens (or creates) the store.
func NewBadger(stream string, cfg config.BadgerConfig, logger zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", cfg.Dir, err)
	}

	b := &Badger{db: db, stream: stream}
	b.seq.Store(lastSequence(db))

	logger.Info().
		Str(log.FieldPath, cfg.Dir).
		Bool("in_memory", cfg.InMemory).
		Str(log.FieldEvent, "badger.opened").
		Msg("badger store ready")
	return b, nil
}

// lastSequence resumes numbering after a restart using the store's version
// watermark; sequence numbers only need to be unique and increasing.
func lastSequence(db *badger.DB) uint64 {
	return db.MaxVersion()
}

// BadgerKey renders the storage key for one payload.
func BadgerKey(stream, routingKey string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s/%s/%020d", stream, routingKey, seq))
}

func (b *Badger) Send(_ context.Context, routingKey string, payload []byte) error {
	key := BadgerKey(b.stream, routingKey, b.seq.Add(1))
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
	if err != nil {
		return fmt.Errorf("badger: set: %w", err)
	}
	return nil
}

// Scan calls fn for every payload stored under prefix, in key order.
func (b *Badger) Scan(prefix string, fn func(key string, payload []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.KeyCopy(nil)), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}
