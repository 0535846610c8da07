// Package pubsub delivers job events to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/brstats/statshub/internal/notify"
)

// Notifier publishes job events as JSON messages.
type Notifier struct {
	topic *pubsub.Topic
}

// New wraps an existing topic handle.
func New(topic *pubsub.Topic) (*Notifier, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	return &Notifier{topic: topic}, nil
}

// JobFinished publishes the event and waits for the server ack.
func (n *Notifier) JobFinished(ctx context.Context, event notify.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"status": event.Status,
			"league": event.League,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish job event: %w", err)
	}
	return nil
}
