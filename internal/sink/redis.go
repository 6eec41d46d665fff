// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
)

// Redis stream entry field names.
const (
	FieldKey     = "key"
	FieldPayload = "payload"
)

// Redis appends each payload to a Redis Stream with XADD. Streams keep
// insertion order, which preserves per-listener order.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
	logger zerolog.Logger
}

// NewRedis connects, checks the server, and provisions the stream. The
// stream itself appears on first XADD unless a consumer group is configured,
// in which case it is created up front with MKSTREAM.
func NewRedis(ctx context.Context, stream string, cfg config.RedisConfig, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if cfg.Group != "" {
		err := client.XGroupCreateMkStream(ctx, stream, cfg.Group, "$").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			_ = client.Close()
			return nil, fmt.Errorf("redis: create group %s on %s: %w", cfg.Group, stream, err)
		}
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int64("max_len", cfg.MaxLen).
		Str(log.FieldEvent, "redis.connected").
		Msg("connected to redis")

	return newRedisWithClient(client, stream, cfg.MaxLen, logger), nil
}

func newRedisWithClient(client *redis.Client, stream string, maxLen int64, logger zerolog.Logger) *Redis {
	return &Redis{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

func (r *Redis) Send(ctx context.Context, routingKey string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			FieldKey:     routingKey,
			FieldPayload: payload,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: xadd %s: %w", r.stream, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
