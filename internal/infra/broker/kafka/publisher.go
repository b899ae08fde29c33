package kafka

import (
	"context"
	"strings"

	"pingme/internal/app/events"
)

// EventPublisher maps domain events onto Kafka topics: one topic per event
// name, prefixed, keyed by chat id so a chat's events stay in order.
type EventPublisher struct {
	Producer    *Producer
	TopicPrefix string
	Source      string
}

func (p EventPublisher) Publish(ctx context.Context, evt events.Event) error {
	payload, headers, err := events.Encode(evt, p.source())
	if err != nil {
		return err
	}
	return p.Producer.Publish(ctx, p.topicFor(evt.Name), evt.Key, payload, headers)
}

func (p EventPublisher) topicFor(name string) string {
	topic := strings.ReplaceAll(name, ".", "-")
	if p.TopicPrefix != "" {
		return p.TopicPrefix + topic
	}
	return topic
}

func (p EventPublisher) source() string {
	if p.Source != "" {
		return p.Source
	}
	return "pingme"
}
