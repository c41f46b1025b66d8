package audit

import (
	"context"
	"log/slog"

	id "convoca/pkg/domain"
	"convoca/pkg/requestcontext"
)

// Store is the persistence boundary for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actorID id.AccountID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Recorder accepts audit events from domain logic. Implementations must not
// block the request path.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// ChannelRecorder queues events on a buffered channel drained by the Worker.
// A full buffer drops the event with a warning: audit is an observability
// requirement, not a correctness one.
type ChannelRecorder struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewChannelRecorder creates a recorder with the given buffer size.
func NewChannelRecorder(buffer int, logger *slog.Logger) *ChannelRecorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelRecorder{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Inbox exposes the receive side for the Worker.
func (r *ChannelRecorder) Inbox() <-chan Event { return r.inbox }

// Record enriches the event from the request context and enqueues it.
func (r *ChannelRecorder) Record(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = NormalizeUserAgent(requestcontext.UserAgent(ctx))
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	select {
	case r.inbox <- event:
	default:
		r.logger.Warn("audit buffer full, dropping event",
			"action", event.Action,
			"actor_id", event.ActorID.String(),
		)
	}
}

// NopRecorder discards events. Useful in unit tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}
