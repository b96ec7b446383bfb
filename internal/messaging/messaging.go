package messaging

import (
	"context"
	"log/slog"
)

// Publisher defines an interface for publishing domain events to a message
// broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// LogPublisher is used when no broker is configured; events are visible in
// the logs and nothing else happens.
type LogPublisher struct {
	Log *slog.Logger
}

func (p *LogPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.Log.Info("event (no broker configured)", "topic", topic, "key", key)
	return nil
}
