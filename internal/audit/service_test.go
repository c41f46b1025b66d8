package audit_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/audit"
	"convoca/internal/audit/store/memory"
	id "convoca/pkg/domain"
	"convoca/pkg/requestcontext"
)

func TestRecorderEnrichesFromContext(t *testing.T) {
	recorder := audit.NewChannelRecorder(4, slog.Default())

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	ctx = requestcontext.WithRequestID(ctx, "req-42")

	recorder.Record(ctx, audit.Event{
		ActorID: id.NewAccountID(),
		Action:  audit.ActionVoteAttempted,
	})

	event := <-recorder.Inbox()
	assert.Equal(t, now, event.Timestamp)
	assert.Equal(t, "203.0.113.9", event.IP)
	assert.Equal(t, "req-42", event.RequestID)
	assert.Contains(t, event.UserAgent, "Chrome")
	assert.NotContains(t, event.UserAgent, "AppleWebKit")
}

func TestRecorderDropsWhenBufferFull(t *testing.T) {
	recorder := audit.NewChannelRecorder(1, slog.Default())
	ctx := context.Background()

	recorder.Record(ctx, audit.Event{Action: audit.ActionVoteAttempted})
	// Nothing drains the channel, so this one is dropped instead of blocking.
	recorder.Record(ctx, audit.Event{Action: audit.ActionVoteCast})

	event := <-recorder.Inbox()
	assert.Equal(t, audit.ActionVoteAttempted, event.Action)
	select {
	case extra := <-recorder.Inbox():
		t.Fatalf("expected dropped event, got %v", extra.Action)
	default:
	}
}

func TestWorkerPersistsEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	recorder := audit.NewChannelRecorder(4, slog.Default())
	worker := audit.NewWorker(store, nil, recorder.Inbox(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	actorID := id.NewAccountID()
	recorder.Record(ctx, audit.Event{ActorID: actorID, Action: audit.ActionLoginSucceeded})

	require.Eventually(t, func() bool {
		events, err := store.ListByActor(context.Background(), actorID)
		return err == nil && len(events) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestNormalizeUserAgent(t *testing.T) {
	t.Run("unparseable strings are truncated", func(t *testing.T) {
		long := make([]byte, 200)
		for i := range long {
			long[i] = 'x'
		}
		normalized := audit.NormalizeUserAgent(string(long))
		assert.Len(t, normalized, 120)
	})

	t.Run("empty stays empty", func(t *testing.T) {
		assert.Empty(t, audit.NormalizeUserAgent(""))
	})
}
