package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const sendQueueSize = 16

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Client is one websocket connection of an authenticated user.
type Client struct {
	UserID int64
	conn   Connection
	send   chan []byte
}

func NewClient(userID int64, conn Connection) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
	}
}

// Serve registers the client and pumps messages until the connection drops
// or the hub stops. The feed is push only; inbound frames are discarded.
func (c *Client) Serve(ctx context.Context, h *Hub) error {
	ctx, span := tracer.Start(ctx, "hub.Client.Serve", trace.WithAttributes(
		attribute.Int64("user.id", c.UserID),
	))
	defer span.End()

	if err := h.Register(c); err != nil {
		c.conn.Close()
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(ctx, h.logger)
	}()

	c.readPump(ctx, h.logger)
	h.Unregister(c)
	wg.Wait()
	return nil
}

func (c *Client) writePump(ctx context.Context, logger *slog.Logger) {
	defer c.conn.Close()

	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.WarnContext(ctx, "Error writing to client", "user.id", c.UserID, "error", err)
			// Closing unblocks readPump, which unregisters and ends the drain.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *Client) readPump(ctx context.Context, logger *slog.Logger) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WarnContext(ctx, "Client connection error", "user.id", c.UserID, "error", err)
			}
			return
		}
	}
}
