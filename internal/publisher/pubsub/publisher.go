// Package pubsub delivers record events over Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub"

	"github.com/licitawatch/licitawatch/internal/publisher"
)

// Publisher wraps one Pub/Sub topic.
type Publisher struct {
	topic *gpubsub.Topic
}

// New wraps an existing topic handle.
func New(topic *gpubsub.Topic) (*Publisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	return &Publisher{topic: topic}, nil
}

// Publish marshals the event to JSON and publishes it. Event type and
// source ride along as attributes so subscribers can filter without
// unmarshalling.
func (p *Publisher) Publish(ctx context.Context, ev publisher.Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	result := p.topic.Publish(ctx, &gpubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   string(ev.Type),
			"source": ev.Source,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish event: %w", err)
	}
	return id, nil
}
