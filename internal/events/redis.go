package events

import (
	"context"
	"dailymatch/backend/internal/config"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MemberChannel is the Redis channel that carries one member's events.
func MemberChannel(memberID string) string {
	return config.MemberChannelPrefix + memberID
}

// RedisPublisher publishes events to per-member Redis channels so that any
// instance holding the member's WebSocket can forward them.
type RedisPublisher struct {
	Redis *redis.Client
}

// NewRedisPublisher Constructor
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{Redis: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.Redis.Publish(ctx, MemberChannel(env.Data.MemberID), body).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Subscription is a live feed of one member's events.
type Subscription struct {
	C      <-chan Envelope
	pubsub *redis.PubSub
}

// Close stops the feed; C is closed shortly after.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe listens on memberID's channel until ctx is done or the
// subscription is closed. Malformed payloads are logged and skipped.
func (p *RedisPublisher) Subscribe(ctx context.Context, memberID string) (*Subscription, error) {
	pubsub := p.Redis.Subscribe(ctx, MemberChannel(memberID))

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Error().Err(err).Str("module", "events").Msg("error unmarshalling redis message")
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					_ = pubsub.Close()
					return
				}
			}
		}
	}()

	return &Subscription{C: out, pubsub: pubsub}, nil
}
