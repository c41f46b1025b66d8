package audit_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/audit"
	"convoca/internal/audit/store/memory"
	id "convoca/pkg/domain"
	"convoca/pkg/testutil"
)

func newAuditRouter(store *memory.InMemoryStore) http.Handler {
	r := chi.NewRouter()
	audit.NewHandler(store, slog.Default()).Register(r)
	return r
}

func adminRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	req := testutil.NewRequest(t, http.MethodGet, path)
	return testutil.WithAccount(req, id.NewAccountID(), "admin@example.com", "admin")
}

func seedEvents(t *testing.T, store *memory.InMemoryStore, actorID id.AccountID, n int) {
	t.Helper()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(context.Background(), audit.Event{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			ActorID:   actorID,
			Action:    audit.ActionVoteAttempted,
		}))
	}
}

func TestHandleRecentEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	seedEvents(t, store, id.NewAccountID(), 5)
	router := newAuditRouter(store)

	rr := testutil.DoRequest(router, adminRequest(t, "/audit/events?limit=3"))

	testutil.AssertStatusOK(t, rr)
	events := testutil.UnmarshalResponse[[]audit.Event](t, rr)
	assert.Len(t, *events, 3)
}

func TestHandleRecentEventsEmptyTrail(t *testing.T) {
	router := newAuditRouter(memory.NewInMemoryStore())

	rr := testutil.DoRequest(router, adminRequest(t, "/audit/events"))

	testutil.AssertStatusOK(t, rr)
	assert.JSONEq(t, "[]", string(testutil.ReadBody(t, rr)))
}

func TestHandleRecentEventsBadLimit(t *testing.T) {
	router := newAuditRouter(memory.NewInMemoryStore())

	for _, limit := range []string{"0", "-1", "1001", "abc"} {
		rr := testutil.DoRequest(router, adminRequest(t, "/audit/events?limit="+limit))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	}
}

func TestHandleEventsByActor(t *testing.T) {
	store := memory.NewInMemoryStore()
	actorID := id.NewAccountID()
	seedEvents(t, store, actorID, 2)
	seedEvents(t, store, id.NewAccountID(), 3)
	router := newAuditRouter(store)

	rr := testutil.DoRequest(router, adminRequest(t, "/audit/actors/"+actorID.String()+"/events"))

	testutil.AssertStatusOK(t, rr)
	events := testutil.UnmarshalResponse[[]audit.Event](t, rr)
	require.Len(t, *events, 2)
	assert.Equal(t, actorID, (*events)[0].ActorID)
}

func TestHandleAuditRequiresAdmin(t *testing.T) {
	router := newAuditRouter(memory.NewInMemoryStore())

	req := testutil.NewRequest(t, http.MethodGet, "/audit/events")
	req = testutil.WithAccount(req, id.NewAccountID(), "member@example.com", "member")

	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)
}
