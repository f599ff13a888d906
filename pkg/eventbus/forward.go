package eventbus

import (
	"context"
	"log/slog"

	"github.com/dukex/flowengine/pkg/models"
)

// Forward publishes every event read from events until the channel is closed
// or ctx is done. Publish failures are logged and the event is dropped, so a
// broken transport never stalls the run feeding the channel. It returns the
// number of events published.
func Forward(ctx context.Context, publisher EventPublisher, events <-chan models.ProgressEvent, logger *slog.Logger) int {
	published := 0

	for {
		select {
		case <-ctx.Done():
			return published
		case event, ok := <-events:
			if !ok {
				return published
			}

			err := publisher.Publish(ctx, event)
			if err != nil {
				logger.WarnContext(ctx, "Failed to publish progress event",
					"event_type", event.Type,
					"execution_id", event.ExecutionID,
					"error", err)

				continue
			}

			published++
		}
	}
}
