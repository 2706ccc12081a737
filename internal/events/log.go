package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes messages to the structured logger instead of a bus.
// Used in local development when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	if p == nil || p.logger == nil {
		return nil
	}
	p.logger.Info("lifecycle event",
		slog.String("routing_key", msg.RoutingKey),
		slog.String("key", msg.Key),
		slog.String("body", string(msg.Body)),
	)
	return nil
}
