package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-scheduler/pkg/circuitbreaker"
)

type RedisBroker struct {
	client  *redis.Client
	cb      *circuitbreaker.CircuitBreaker
	channel string
	logger  zerolog.Logger
}

type Config struct {
	URL          string
	Channel      string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// NewRedisBroker connects and pings Redis. Events are published on
// "<channel>.<topic>" so consumers can pattern-subscribe to "<channel>.*".
func NewRedisBroker(ctx context.Context, config Config, logger zerolog.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newBroker(client, config.Channel, logger), nil
}

func newBroker(client *redis.Client, channel string, logger zerolog.Logger) *RedisBroker {
	if channel == "" {
		channel = "clinic"
	}
	return &RedisBroker{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-broker",
			MaxFailures: 5,
			Timeout:     10 * time.Second,
		}),
		channel: channel,
		logger:  logger,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	channel := b.channel + "." + topic
	return b.cb.Execute(func() error {
		n, err := b.client.Publish(ctx, channel, payload).Result()
		if err != nil {
			return fmt.Errorf("publish %s: %w", channel, err)
		}
		b.logger.Debug().Str("channel", channel).Int64("receivers", n).Msg("event published")
		return nil
	})
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
