package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/goccy/go-json"
)

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber

	mu       sync.RWMutex
	handlers map[models.ProgressEventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		handlers:   make(map[models.ProgressEventType]EventHandler),
	}
}

func (eb *WatermillEventBus) Publish(ctx context.Context, event models.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode progress event: %w", err)
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(EventTypeMetadataKey, string(event.Type))
	msg.Metadata.Set(ExecutionIDMetadataKey, event.ExecutionID)

	return eb.publisher.Publish(Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType models.ProgressEventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = handler
}

// Subscribe starts dispatching messages to the registered handlers until ctx
// is done or the subscriber is closed.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Topic, err)
	}

	go func() {
		for msg := range messages {
			eb.dispatch(ctx, msg)
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) {
	handler := eb.handler(models.ProgressEventType(msg.Metadata.Get(EventTypeMetadataKey)))
	if handler == nil {
		msg.Ack()

		return
	}

	var event models.ProgressEvent

	err := json.Unmarshal(msg.Payload, &event)
	if err != nil {
		// A payload that cannot be decoded never will be; redelivery would loop.
		msg.Ack()

		return
	}

	err = handler(ctx, &event)
	if err != nil {
		msg.Nack()

		return
	}

	msg.Ack()
}

func (eb *WatermillEventBus) handler(eventType models.ProgressEventType) EventHandler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if handler, ok := eb.handlers[eventType]; ok {
		return handler
	}

	return eb.handlers[""]
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
