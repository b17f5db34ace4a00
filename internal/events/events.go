package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Pub/Sub channel constants
const (
	EventsChannel = "channel:ownership-events"
)

// Event type names.
const (
	TypeTransferOffered = "transfer_offered"
	TypeItemTransferred = "item_transferred"
)

// Event is an ownership notification addressed to one user.
type Event struct {
	Type    string          `json:"event"`
	UserID  int64           `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// TransferOfferedPayload is sent to the achiever when a transfer link is minted.
type TransferOfferedPayload struct {
	ItemID    int64  `json:"item_id"`
	ItemTitle string `json:"item_title"`
	From      string `json:"from"`
	Link      string `json:"link"`
}

// ItemTransferredPayload is sent to the previous owner once the link is redeemed.
type ItemTransferredPayload struct {
	ItemID    int64  `json:"item_id"`
	ItemTitle string `json:"item_title"`
	To        string `json:"to"`
}

// Publisher delivers events to connected clients. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// New builds an Event for userID with payload marshalled as JSON.
func New(eventType string, userID int64, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, UserID: userID, Payload: raw}, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
