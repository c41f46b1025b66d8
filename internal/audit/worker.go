package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from the recorder's channel and fans them out
// to the store and, when configured, the Kafka publisher. Persistence failures
// are logged and do not stop the worker: losing one audit line is preferable
// to losing the trail entirely.
type Worker struct {
	store     Store
	publisher *KafkaPublisher // nil when Kafka is not configured
	inbox     <-chan Event
	logger    *slog.Logger
}

func NewWorker(store Store, publisher *KafkaPublisher, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, publisher: publisher, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.Error("append audit event",
					"error", err,
					"action", event.Action,
				)
			}
			if w.publisher != nil {
				w.publisher.Publish(ctx, event)
			}
		}
	}
}
