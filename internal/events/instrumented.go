package events

import (
	"context"
	"time"

	"github.com/payhasly/account_service/internal/telemetry"
)

type instrumented struct {
	next    Publisher
	metrics *telemetry.Metrics
}

// Instrumented records publish counts and latency for every message passed
// to next.
func Instrumented(next Publisher, metrics *telemetry.Metrics) Publisher {
	if metrics == nil {
		return next
	}
	return &instrumented{next: next, metrics: metrics}
}

func (p *instrumented) Publish(ctx context.Context, msg Message) error {
	start := time.Now()
	err := p.next.Publish(ctx, msg)
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.ObservePublish(msg.RoutingKey, status, time.Since(start))
	return err
}
