package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Broker relays outbox events to subscribers outside the process.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Message is the envelope written to the broker for every event.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Encode wraps an event payload in its envelope.
func Encode(id, eventType string, payload json.RawMessage, createdAt time.Time) ([]byte, error) {
	return json.Marshal(Message{
		ID:        id,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: createdAt.UTC(),
	})
}
