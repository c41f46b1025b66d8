package auth_test

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"convoca/internal/auth"
	"convoca/pkg/testutil"
)

func newAuthRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, _ := newAuthService(t)
	handler := auth.NewHandler(svc, slog.Default())
	r := chi.NewRouter()
	handler.RegisterPublic(r)
	handler.RegisterProtected(r)
	return r
}

func TestHandleRegisterAndLogin(t *testing.T) {
	router := newAuthRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]any{
		"email":    "ana@example.com",
		"name":     "Ana Silva",
		"document": "DOC-1",
		"password": "correct-horse",
		"shares":   2,
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	body := string(testutil.ReadBody(t, rr))
	assert.Contains(t, body, `"ana@example.com"`)
	// The hash never leaves the service.
	assert.NotContains(t, body, "password")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "ana@example.com",
		"password": "correct-horse",
	}))
	testutil.AssertStatusOK(t, rr)
	login := testutil.UnmarshalResponse[map[string]any](t, rr)
	assert.NotEmpty(t, (*login)["access_token"])
	assert.Equal(t, "Bearer", (*login)["token_type"])
}

func TestHandleLoginBadCredentials(t *testing.T) {
	router := newAuthRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "ghost@example.com",
		"password": "whatever-pass",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestHandleLoginLockedReturns429(t *testing.T) {
	router := newAuthRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]any{
		"email":    "ana@example.com",
		"name":     "Ana",
		"password": "correct-horse",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	bad := func() *http.Request {
		return testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
			"email":    "ana@example.com",
			"password": "wrong",
		})
	}
	for range 2 {
		rr = testutil.DoRequest(router, bad())
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	}
	rr = testutil.DoRequest(router, bad())
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
}

func TestHandleMe(t *testing.T) {
	svc, _ := newAuthService(t)
	handler := auth.NewHandler(svc, slog.Default())
	r := chi.NewRouter()
	handler.RegisterProtected(r)

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	account, err := svc.Register(timedCtx(now), "ana@example.com", "Ana", "DOC-1", "correct-horse", 1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	req := testutil.NewRequest(t, http.MethodGet, "/auth/me")
	req = testutil.WithAccount(req, account.ID, account.Email, account.Role)

	rr := testutil.DoRequest(r, req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "email", "ana@example.com")
}
