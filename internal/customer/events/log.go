package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. Used when no broker is
// configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, string(event.Type),
		"customer_id", event.CustomerID,
		"changed_fields", event.ChangedFields,
		"request_id", event.RequestID,
		"occurred_at", event.OccurredAt,
		"log_type", "customer_event",
	)
	return nil
}
