package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel and NOTIFY channel name.
const DefaultChannel = "expenses_changed"

// RedisRelay publishes changes to a Redis channel and feeds received
// messages into the local hub, so every node's watchers see every write.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	log     *zap.Logger
}

// NewRedisRelay constructs a relay over client.
func NewRedisRelay(client redis.UniversalClient, channel string, hub *Hub, log *zap.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel, hub: hub, log: log}
}

// Publish sends docID to all nodes, including this one.
func (r *RedisRelay) Publish(ctx context.Context, docID string) error {
	return r.client.Publish(ctx, r.channel, docID).Err()
}

// Run consumes the channel until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("realtime relay subscribed", zap.String("backend", "redis"), zap.String("channel", r.channel))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.hub.Notify(msg.Payload)
		}
	}
}
