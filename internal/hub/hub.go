package hub

import (
	"context"
	"ctchen222/item-registry/internal/events"
	"ctchen222/item-registry/internal/validator"
	"ctchen222/item-registry/pkg/proto"
	"encoding/json"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("hub")

// ErrClosed is returned once Run has stopped.
var ErrClosed = errors.New("hub closed")

// Hub keeps the live websocket clients of every user and delivers ownership
// events to the clients of their recipient. All client bookkeeping happens
// on the Run goroutine.
type Hub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	deliver    chan events.Event
	done       chan struct{}
	hello      []byte
	logger     *slog.Logger
}

// NewHub creates a new hub. Call Run to start it.
func NewHub(logger *slog.Logger) *Hub {
	hello, _ := json.Marshal(proto.ServerToClientMessage{Type: proto.TypeConnected})
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan events.Event, 64),
		done:       make(chan struct{}),
		hello:      hello,
		logger:     logger,
	}
}

// Run processes registrations and deliveries until ctx is canceled. On exit
// every client's send queue is closed, which ends its write pump.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for userID := range h.clients {
				for c := range h.clients[userID] {
					close(c.send)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			h.logger.InfoContext(ctx, "Hub stopped")
			return

		case c := <-h.register:
			set, ok := h.clients[c.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.UserID] = set
			}
			set[c] = struct{}{}
			// The queue is fresh, so the greeting always fits.
			c.send <- h.hello
			h.logger.DebugContext(ctx, "Client registered", "user.id", c.UserID, "clients.count", len(set))

		case c := <-h.unregister:
			h.remove(c)

		case ev := <-h.deliver:
			h.dispatch(ctx, ev)
		}
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
}

func (h *Hub) dispatch(ctx context.Context, ev events.Event) {
	ctx, span := tracer.Start(ctx, "hub.dispatch", trace.WithAttributes(
		attribute.String("event.type", ev.Type),
		attribute.Int64("user.id", ev.UserID),
	))
	defer span.End()

	msg := proto.ServerToClientMessage{Type: ev.Type, Payload: ev.Payload}
	if err := validator.GetValidator().StructCtx(ctx, msg); err != nil {
		h.logger.WarnContext(ctx, "Dropping invalid event", "user.id", ev.UserID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid event")
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshalling event", "event.type", ev.Type, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error marshalling event")
		return
	}

	delivered := 0
	for c := range h.clients[ev.UserID] {
		select {
		case c.send <- data:
			delivered++
		default:
			h.logger.WarnContext(ctx, "Dropping slow client", "user.id", c.UserID)
			h.remove(c)
		}
	}
	span.SetAttributes(attribute.Int("clients.delivered", delivered))
}

// Publish queues ev for delivery to the clients of ev.UserID. It satisfies
// events.Publisher for single-instance deployments.
func (h *Hub) Publish(ctx context.Context, ev events.Event) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}

	select {
	case h.deliver <- ev:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds c to the hub. It fails once the hub has stopped.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

// Unregister removes c and closes its send queue. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
