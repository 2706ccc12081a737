package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamPublisher appends messages to one Redis stream per routing key,
// named "<exchange>:<routingKey>". Streams preserve append order, which gives
// consumers ordered delivery per routing key.
type RedisStreamPublisher struct {
	client   *redis.Client
	exchange string
	maxLen   int64
}

// NewRedisStreamPublisher builds a stream publisher. maxLen caps each stream
// approximately; zero leaves streams unbounded.
func NewRedisStreamPublisher(client *redis.Client, exchange string, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, exchange: exchange, maxLen: maxLen}
}

// StreamName returns the stream a routing key is written to.
func (p *RedisStreamPublisher) StreamName(routingKey string) string {
	return p.exchange + ":" + routingKey
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, msg Message) error {
	args := &redis.XAddArgs{
		Stream: p.StreamName(msg.RoutingKey),
		Values: map[string]any{
			"routing_key":  msg.RoutingKey,
			"key":          msg.Key,
			"body":         msg.Body,
			"published_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return nil
}
