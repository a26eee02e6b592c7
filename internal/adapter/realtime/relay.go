package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const relayChannel = "signage:realtime"

type relayFrame struct {
	Origin string `json:"origin"`
	envelope
}

// RedisRelay shares emits between API instances over Redis pub/sub so a
// dashboard connected to any instance sees every event.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	origin string
	logger *slog.Logger
}

// NewRedisRelay returns a relay for hub. Install it with WithRelay and
// start Run.
func NewRedisRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
		logger: logger.With(slog.String("component", "realtime_relay")),
	}
}

// Forward publishes msg for peers.
func (r *RedisRelay) Forward(ctx context.Context, room string, msg Message) error {
	data, err := json.Marshal(relayFrame{Origin: r.origin, envelope: envelope{Room: room, Message: msg}})
	if err != nil {
		return fmt.Errorf("encode relay frame: %w", err)
	}
	if err := r.client.Publish(ctx, relayChannel, data).Err(); err != nil {
		return fmt.Errorf("publish relay frame: %w", err)
	}
	return nil
}

// Run delivers frames published by peers to the local hub until ctx is
// done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var frame relayFrame
			if err := json.Unmarshal([]byte(m.Payload), &frame); err != nil {
				r.logger.Warn("bad relay frame", slog.Any("error", err))
				continue
			}
			if frame.Origin == r.origin {
				continue
			}
			_ = r.hub.enqueue(frame.Room, frame.Message)
		}
	}
}
