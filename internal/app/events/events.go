package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ChatCreatedName = "chat.created"
	MessageSentName = "chat.message.sent"
)

// Event is a domain fact published after a successful write. Key becomes the
// partition key so all events of one chat stay ordered.
type Event struct {
	Name       string
	Key        string
	OccurredAt time.Time
	Data       any
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type ChatCreated struct {
	ChatID       string   `json:"chat_id"`
	Participants []string `json:"participants"`
	CreatedAt    int64    `json:"created_at"`
}

type MessageSent struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Timestamp int64  `json:"timestamp"`
}

// Encode wraps the event payload in a CloudEvents-style envelope.
func Encode(evt Event, source string) ([]byte, map[string]string, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return nil, nil, err
	}
	envelope := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            evt.Name + ".v1",
		"source":          source,
		"time":            evt.OccurredAt.UTC(),
		"datacontenttype": "application/json",
		"data":            json.RawMessage(data),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	return payload, headers, nil
}
