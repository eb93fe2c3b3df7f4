package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel change notices go through.
const DefaultChannel = "remarket:catalog:changed"

// RedisNotifier sends change notices over Redis pub/sub. Each instance tags
// its notices with a random origin and ignores its own.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	origin  string
}

// NewRedisNotifier creates a notifier on channel (DefaultChannel if empty).
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel, origin: uuid.NewString()}
}

// Notify publishes a change notice.
func (n *RedisNotifier) Notify(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, n.origin).Err(); err != nil {
		return fmt.Errorf("publishing change notice: %w", err)
	}
	return nil
}

// Listen calls fn for every notice published by another instance.
func (n *RedisNotifier) Listen(ctx context.Context, fn func()) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so no notice is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", n.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload == n.origin {
				continue
			}
			fn()
		}
	}
}
