package signalbus

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisSignaler publishes events as JSON payloads on a Redis pub/sub
// channel watched by the mutation subsystem.
type RedisSignaler struct {
	client  *redis.Client
	channel string
}

func NewRedisSignaler(addr, password string, db int, channel string) *RedisSignaler {
	return &RedisSignaler{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		channel: channel,
	}
}

type signalPayload struct {
	Event     string    `json:"event"`
	Params    []string  `json:"params"`
	EmittedAt time.Time `json:"emitted_at"`
}

func encodePayload(event string, params []string, at time.Time) ([]byte, error) {
	return json.Marshal(signalPayload{
		Event:     event,
		Params:    params,
		EmittedAt: at,
	})
}

func (s *RedisSignaler) Emit(ctx context.Context, event string, params []string) error {
	body, err := encodePayload(event, params, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, body).Err()
}

// Ping verifies the connection to the Redis endpoint.
func (s *RedisSignaler) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSignaler) Close() error {
	return s.client.Close()
}
