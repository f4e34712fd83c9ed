package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Notifier announces a completed run to downstream consumers.
type Notifier interface {
	// Publish sends the run summary to the configured topic.
	Publish(ctx context.Context, payload any) error

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOpNotifier is a notifier that performs no operations. It is the
// default when no topic is configured.
type NoOpNotifier struct{}

// Publish for NoOpNotifier does nothing and returns nil.
func (n *NoOpNotifier) Publish(_ context.Context, _ any) error { return nil }

// Close for NoOpNotifier does nothing and returns nil.
func (n *NoOpNotifier) Close() error { return nil }

// PubSubNotifier publishes run notifications to a Google Cloud Pub/Sub
// topic. Scheduled consumers use it to pick up fresh snapshots without
// polling the bucket.
type PubSubNotifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubNotifier creates a Pub/Sub client and verifies the topic
// exists. It authenticates via Application Default Credentials.
func NewPubSubNotifier(ctx context.Context, projectID, topicID string) (*PubSubNotifier, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &PubSubNotifier{client: client, topic: topic}, nil
}

// Publish serializes the payload as JSON and waits for the server ack, so
// a lost notification surfaces as an error in the run log.
func (p *PubSubNotifier) Publish(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close stops the topic's publisher and closes the client connection.
func (p *PubSubNotifier) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
