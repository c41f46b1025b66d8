package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"convoca/internal/audit"
	"convoca/internal/platform/metrics"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/sentinel"
	"convoca/pkg/requestcontext"
)

// Verifier issues account verification codes. Satisfied by the verification
// service; NopVerifier disables the flow.
type Verifier interface {
	Issue(ctx context.Context, email, name string) error
}

// NopVerifier discards verification requests.
type NopVerifier struct{}

func (NopVerifier) Issue(context.Context, string, string) error { return nil }

// Service owns registration and login.
type Service struct {
	accounts AccountStore
	lockout  *LockoutGuard
	tokens   *TokenService
	verifier Verifier
	recorder audit.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the audit recorder.
func WithRecorder(recorder audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithVerifier sets the verification-code issuer.
func WithVerifier(v Verifier) Option {
	return func(s *Service) { s.verifier = v }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(accounts AccountStore, lockout *LockoutGuard, tokens *TokenService, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if lockout == nil {
		return nil, errors.New("lockout guard is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	svc := &Service{
		accounts: accounts,
		lockout:  lockout,
		tokens:   tokens,
		verifier: NopVerifier{},
		recorder: audit.NopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates a member account and queues a verification code.
func (s *Service) Register(ctx context.Context, email, name, document, password string, shares int) (*Account, error) {
	account, err := NewAccount(email, name, document, password, shares, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	if err := s.verifier.Issue(ctx, account.Email, account.Name); err != nil {
		// Verification is best effort; registration already succeeded.
		s.logger.WarnContext(ctx, "failed to queue verification code",
			"error", err,
			"account_id", account.ID,
		)
	}
	return account, nil
}

// Login authenticates by email and password under the lockout policy and
// returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Account, error) {
	identifier := strings.ToLower(strings.TrimSpace(email))
	now := requestcontext.Now(ctx)

	if err := s.lockout.Check(ctx, identifier, now); err != nil {
		if dErrors.Is(err, dErrors.CodeLocked) {
			s.recorder.Record(ctx, audit.Event{Action: audit.ActionLoginLocked, Reason: identifier})
		}
		return "", nil, err
	}

	account, err := s.accounts.FindByEmail(ctx, identifier)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	// A missing account takes the same failure path as a wrong password so
	// responses do not reveal which emails are registered.
	if account == nil || !account.ComparePassword(password) {
		return "", nil, s.failLogin(ctx, identifier, now)
	}

	if err := s.lockout.Clear(ctx, identifier); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(account, now)
	if err != nil {
		return "", nil, err
	}

	s.recorder.Record(ctx, audit.Event{ActorID: account.ID, Action: audit.ActionLoginSucceeded})
	return token, account, nil
}

func (s *Service) failLogin(ctx context.Context, identifier string, now time.Time) error {
	locked, err := s.lockout.RecordFailure(ctx, identifier, now)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.LoginFailures.Inc()
	}
	s.recorder.Record(ctx, audit.Event{Action: audit.ActionLoginFailed, Reason: identifier})
	if locked {
		if s.metrics != nil {
			s.metrics.LoginLockouts.Inc()
		}
		s.recorder.Record(ctx, audit.Event{Action: audit.ActionLoginLocked, Reason: identifier})
		return dErrors.New(dErrors.CodeLocked, "too many failed login attempts, try again later")
	}
	return dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
}

// Me returns the authenticated account.
func (s *Service) Me(ctx context.Context, accountID id.AccountID) (*Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}
