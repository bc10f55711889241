package notify

import (
	"context"
	"encoding/json"
	"fmt"

	redisclient "github.com/vietddude/vitality/internal/infra/redis"
)

// RedisSink publishes alerts as JSON on a Redis pub/sub channel.
type RedisSink struct {
	client *redisclient.Client
}

// NewRedisSink wraps an already connected client.
func NewRedisSink(client *redisclient.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	_, err = s.client.Publish(ctx, payload)
	return err
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
