package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/notification-service/internal/adapter/hub"
)

// LocalEmitter delivers a frame to the connections held by this process.
type LocalEmitter interface {
	EmitFrame(recipientID string, frame hub.Frame) int
}

type envelope struct {
	RecipientID string          `json:"recipient_id"`
	Event       string          `json:"event"`
	Data        json.RawMessage `json:"data"`
}

// Relay publishes emits on a Redis Pub/Sub channel so that every instance of
// the service, this one included, delivers them to its own connections.
type Relay struct {
	client  redis.UniversalClient
	channel string
	local   LocalEmitter
	logger  *slog.Logger
}

// NewRelay creates a Relay. Run must be started for frames to reach local connections.
func NewRelay(client redis.UniversalClient, channel string, local LocalEmitter, logger *slog.Logger) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger.With("component", "redis_relay"),
	}
}

// Emit publishes the payload for recipientID. When Redis rejects the publish
// or no instance is subscribed, the frame is delivered to local connections.
func (r *Relay) Emit(ctx context.Context, recipientID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("relay: failed to encode %s payload: %w", event, err)
	}
	msg, err := json.Marshal(envelope{RecipientID: recipientID, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("relay: failed to encode envelope: %w", err)
	}

	receivers, err := r.client.Publish(ctx, r.channel, msg).Result()
	switch {
	case err != nil:
		r.logger.Warn("failed to publish to redis, delivering locally only", "recipient_id", recipientID, "error", err)
		r.local.EmitFrame(recipientID, hub.Frame{Event: event, Data: data})
	case receivers == 0:
		r.logger.Warn("no relay subscribers on channel, delivering locally only", "channel", r.channel, "recipient_id", recipientID)
		r.local.EmitFrame(recipientID, hub.Frame{Event: event, Data: data})
	}
	return nil
}

// Run subscribes to the channel and forwards every frame to the local hub
// until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("subscribed to fan-out channel", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn("dropping undecodable fan-out message", "error", err)
		return
	}
	if env.RecipientID == "" {
		r.logger.Warn("dropping fan-out message without recipient")
		return
	}
	r.local.EmitFrame(env.RecipientID, hub.Frame{Event: env.Event, Data: env.Data})
}
