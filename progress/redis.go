package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSink publishes events as JSON on a Redis pub/sub channel so that
// out-of-process observers (a UI shell, a dashboard) can follow a run.
// Publication failures are logged and otherwise ignored.
type RedisSink struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisSink creates a sink publishing on the given channel.
func NewRedisSink(client *redis.Client, channel string, logger *zap.Logger) *RedisSink {
	if channel == "" {
		channel = "roboforge:pipeline"
	}
	return &RedisSink{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		logger:  logger.With(zap.String("component", "redis_sink")),
	}
}

// Publish implements Sink.
func (s *RedisSink) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("event not serializable, dropped", zap.String("event", ev.Name), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn("event publish failed, dropped", zap.String("event", ev.Name), zap.Error(err))
	}
}
