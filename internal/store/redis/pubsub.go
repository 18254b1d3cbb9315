package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// subscriberBuffer is how many frames a subscriber may lag before the relay
// blocks on it.
const subscriberBuffer = 64

// PubSub fans workspace broadcasts out across server instances.
type PubSub struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

// NewFromClient wraps an existing client. The PubSub takes ownership.
func NewFromClient(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

// Close releases the client.
func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (ps *PubSub) Ping(ctx context.Context) error {
	if err := ps.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Ping: %w", err)
	}
	return nil
}

// Publish sends payload to every subscriber of channel, on any instance.
func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	receivers, err := ps.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	log.Debug().Str("channel", channel).Int64("receivers", receivers).Msg("published")
	return nil
}

// Subscribe delivers channel messages until ctx is cancelled or cleanup is
// called. The returned channel is closed when delivery stops, and the Redis
// subscription is released either way.
func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	// The first reply confirms the subscription, so nothing published after
	// Subscribe returns can be missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			_ = sub.Close()
			log.Debug().Str("channel", channel).Msg("unsubscribed")
		})
	}

	out := make(chan []byte, subscriberBuffer)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		defer cleanup()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	log.Debug().Str("channel", channel).Msg("subscribed")
	return out, cleanup, nil
}

// WorkspaceChannel returns the Redis channel name for a workspace's events.
func WorkspaceChannel(workspaceID uuid.UUID) string {
	return "workspace:" + workspaceID.String()
}
