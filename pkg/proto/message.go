package proto

import "encoding/json"

// TypeConnected is the first frame of every feed. It confirms the client is
// registered and will receive events from then on.
const TypeConnected = "connected"

// ServerToClientMessage is a frame pushed on the ownership events feed.
type ServerToClientMessage struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
