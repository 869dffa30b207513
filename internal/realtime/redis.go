// ABOUTME: Redis pub/sub relay so several server instances share one change feed
// ABOUTME: Publishes wire events to Redis and replays Redis messages into the local broadcaster

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/2389/tasksync/internal/model"
)

// redisPrefix namespaces feed channels in Redis.
const redisPrefix = "tasksync:"

// RedisRelay publishes through Redis. Every instance, including the
// publisher, receives events back through Run and hands them to its local
// broadcaster, so delivery order is the order Redis assigns.
type RedisRelay struct {
	client *redis.Client
	local  *EventBroadcaster
	logger *slog.Logger
}

var _ Publisher = (*RedisRelay)(nil)

// NewRedisRelay connects to the Redis server at url (redis://host:port/db).
func NewRedisRelay(ctx context.Context, url string, local *EventBroadcaster, logger *slog.Logger) (*RedisRelay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisRelay{
		client: client,
		local:  local,
		logger: logger.With("component", "redis_relay"),
	}, nil
}

// Publish sends ev to the Redis channel for ev.Channel.
func (r *RedisRelay) Publish(ctx context.Context, ev model.WireEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := r.client.Publish(ctx, redisPrefix+ev.Channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to redis: %w", err)
	}
	return nil
}

// Run relays Redis messages into the local broadcaster until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, redisPrefix+"*")
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to redis: %w", err)
	}
	r.logger.Info("relaying redis feed", "pattern", redisPrefix+"*")

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev model.WireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("dropping undecodable redis message", "channel", msg.Channel, "error", err)
				continue
			}
			if ev.Channel == "" {
				ev.Channel = strings.TrimPrefix(msg.Channel, redisPrefix)
			}
			_ = r.local.Publish(ctx, ev)
		}
	}
}

// Close closes the Redis client.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
