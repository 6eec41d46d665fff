// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/twincitiesguy/pravega-music-demo/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// Listener is called after a successful reload with the previous and new config.
type Listener func(old, updated Config)

// Holder holds the running configuration and reloads it from the loader
// when the file changes. Only fields whose consumers registered a Listener
// take effect without a restart.
type Holder struct {
	mu      sync.RWMutex
	current Config
	loader  *Loader
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewHolder creates a holder seeded with an already loaded config.
func NewHolder(initial Config, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers a listener for successful reloads.
func (h *Holder) OnReload(fn Listener) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads and validates the configuration again. On failure the
// running config is kept.
func (h *Holder) Reload() error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	updated, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration, keeping current")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = updated
	h.mu.Unlock()

	h.logChanges(old, updated)

	h.listenersMu.RLock()
	listeners := append([]Listener(nil), h.listeners...)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(old, updated)
	}

	h.logger.Info().Str(log.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch follows the config file until ctx is done. Without a config file it
// returns immediately. Editors that replace the file are handled by watching
// the parent directory.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Debug().
			Str(log.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (no config file)")
		return nil
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.logger.Info().
		Str(log.FieldEvent, "config.watcher_started").
		Str(log.FieldPath, path).
		Msg("watching config file for changes")

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().
				Str(log.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				_ = h.Reload()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().
				Err(err).
				Str(log.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// logChanges reports which changed settings apply live and which need a restart.
func (h *Holder) logChanges(old, updated Config) {
	if old.Generator.MaxEventsPerSecond != updated.Generator.MaxEventsPerSecond {
		h.logger.Info().
			Float64("old", old.Generator.MaxEventsPerSecond).
			Float64("new", updated.Generator.MaxEventsPerSecond).
			Msg("config changed: generator.max_events_per_second")
	}
	restart := map[string]bool{
		"generator.players": old.Generator.Players != updated.Generator.Players,
		"generator.horizon": old.Generator.Horizon != updated.Generator.Horizon,
		"sink":              !sinkEqual(old.Sink, updated.Sink),
		"admin.listen":      old.Admin.Listen != updated.Admin.Listen,
		"telemetry":         old.Telemetry != updated.Telemetry,
		"catalog.path":      old.Catalog.Path != updated.Catalog.Path,
	}
	for field, changed := range restart {
		if changed {
			h.logger.Warn().
				Str(log.FieldKey, field).
				Str(log.FieldEvent, "config.restart_required").
				Msg("config changed but only takes effect after restart")
		}
	}
}

func sinkEqual(a, b SinkConfig) bool {
	return a.Type == b.Type &&
		a.Stream == b.Stream &&
		slices.Equal(a.Kafka.Brokers, b.Kafka.Brokers) &&
		a.Kafka.Partitions == b.Kafka.Partitions &&
		a.Kafka.ReplicationFactor == b.Kafka.ReplicationFactor &&
		a.Kafka.CreateTopic == b.Kafka.CreateTopic &&
		a.Redis == b.Redis &&
		a.Postgres == b.Postgres &&
		a.SQLite == b.SQLite &&
		a.Badger == b.Badger &&
		a.Breaker == b.Breaker
}
