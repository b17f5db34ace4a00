package repository

import (
	"context"
	"ctchen222/item-registry/internal/events"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type redisEventPublisher struct {
	rdb *redis.Client
}

// NewEventPublisher publishes ownership events on the shared Redis channel so
// that every server instance can deliver them to its local clients.
func NewEventPublisher(rdb *redis.Client) events.Publisher {
	return &redisEventPublisher{rdb: rdb}
}

func (p *redisEventPublisher) Publish(ctx context.Context, event events.Event) error {
	ctx, span := tracer.Start(ctx, "EventPublisher.Publish", trace.WithAttributes(
		attribute.String("event.type", event.Type),
		attribute.Int64("user.id", event.UserID),
	))
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, events.EventsChannel, data).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to publish event")
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}
