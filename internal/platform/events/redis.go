package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisChannelPrefix = "frontdesk:events:"

// RedisRelay shares events between server instances over Redis pub/sub.
// Publish sends to Redis; Run relays messages from other instances into a
// local publisher (the websocket hub). Messages carrying this relay's own
// origin are skipped because the local fan-out already delivered them.
type RedisRelay struct {
	client *redis.Client
	origin string
	logger zerolog.Logger
}

func NewRedisRelay(client *redis.Client, origin string, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{client: client, origin: origin, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	ev.Origin = r.origin
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, redisChannelPrefix+ev.Channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Run blocks until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context, local Publisher) error {
	sub := r.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	r.logger.Info().Str("pattern", redisChannelPrefix+"*").Msg("event relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.relay(ctx, []byte(msg.Payload), local)
		}
	}
}

func (r *RedisRelay) relay(ctx context.Context, payload []byte, local Publisher) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.Warn().Err(err).Msg("dropping malformed relayed event")
		return
	}
	if ev.Origin == r.origin {
		return
	}
	if err := local.Publish(ctx, ev); err != nil {
		r.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("local delivery of relayed event failed")
	}
}
