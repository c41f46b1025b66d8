package testutil

import (
	"net/http"
	"time"

	id "convoca/pkg/domain"
	"convoca/pkg/requestcontext"
)

// WithAccount injects an authenticated identity into the request context,
// simulating what the auth middleware does for a valid token.
func WithAccount(req *http.Request, accountID id.AccountID, email, role string) *http.Request {
	ctx := req.Context()
	ctx = requestcontext.WithAccountID(ctx, accountID)
	ctx = requestcontext.WithAccountEmail(ctx, email)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock so time-window gates evaluate
// deterministically.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithClientMetadata injects client IP and User-Agent, as the metadata
// middleware would.
func WithClientMetadata(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
