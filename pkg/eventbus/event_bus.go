// Package eventbus carries run progress events over a watermill topic.
package eventbus

import (
	"context"

	"github.com/dukex/flowengine/pkg/models"
)

const (
	Topic = "flowengine.progress"

	EventTypeMetadataKey   = "event_type"
	ExecutionIDMetadataKey = "execution_id"
)

// EventHandler handles one decoded progress event. A returned error nacks
// the message.
type EventHandler func(ctx context.Context, event *models.ProgressEvent) error

type EventPublisher interface {
	Publish(ctx context.Context, event models.ProgressEvent) error
}

type EventSubscriber interface {
	// Handle registers a handler for one event type. An empty type handles
	// every event without a dedicated handler.
	Handle(eventType models.ProgressEventType, handler EventHandler)
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
