package hub

import (
	"context"
	"ctchen222/item-registry/internal/events"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RunSubscriber forwards events published on the shared Redis channel to the
// local clients. It returns when ctx is canceled or the subscription closes.
func (h *Hub) RunSubscriber(ctx context.Context, rdb *redis.Client) {
	h.logger.InfoContext(ctx, "Event subscriber started", "channel", events.EventsChannel)
	pubsub := rdb.Subscribe(ctx, events.EventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				h.logger.WarnContext(ctx, "Event subscription closed")
				return
			}
			h.handleMessage(ctx, msg.Payload)
		}
	}
}

func (h *Hub) handleMessage(ctx context.Context, payload string) {
	ctx, span := tracer.Start(ctx, "hub.handleEvent", trace.WithAttributes(
		attribute.String("event.channel", events.EventsChannel),
	))
	defer span.End()

	var ev events.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		h.logger.ErrorContext(ctx, "Could not unmarshal event", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not unmarshal event")
		return
	}
	span.SetAttributes(attribute.String("event.type", ev.Type), attribute.Int64("user.id", ev.UserID))

	switch ev.Type {
	case events.TypeTransferOffered, events.TypeItemTransferred:
		if err := h.Publish(ctx, ev); err != nil {
			h.logger.WarnContext(ctx, "Could not deliver event", "event.type", ev.Type, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Could not deliver event")
		}
	default:
		h.logger.WarnContext(ctx, "Ignoring unknown event", "event.type", ev.Type)
	}
}
