package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"convoca/internal/platform/config"
	dErrors "convoca/pkg/domain-errors"
)

// Lockout is the per-identifier failed-login record. All counter state lives
// here, keyed by the login identifier; nothing is held in process globals.
type Lockout struct {
	Identifier    string
	FailureCount  int
	LockedUntil   *time.Time
	LastFailureAt time.Time
}

// IsLockedAt reports whether the record holds an active lock.
func (l *Lockout) IsLockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// WindowExpiredAt reports whether the failure window has elapsed since the
// last failure, meaning the count no longer applies.
func (l *Lockout) WindowExpiredAt(now time.Time, window time.Duration) bool {
	return now.Sub(l.LastFailureAt) >= window
}

// LockoutStore persists lockout records. RecordFailure must increment
// atomically; concurrent failures may not lose counts.
type LockoutStore interface {
	Get(ctx context.Context, identifier string) (*Lockout, error)
	RecordFailure(ctx context.Context, identifier string, now time.Time) (*Lockout, error)
	SetLock(ctx context.Context, identifier string, until time.Time) error
	Clear(ctx context.Context, identifier string) error
}

// LockoutGuard applies the failed-login policy: N failures inside the window
// lock the identifier for the configured duration. A successful login clears
// the record.
type LockoutGuard struct {
	store  LockoutStore
	config config.LockoutConfig
	logger *slog.Logger
}

func NewLockoutGuard(store LockoutStore, cfg config.LockoutConfig, logger *slog.Logger) (*LockoutGuard, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LockoutGuard{store: store, config: cfg, logger: logger}, nil
}

// Check fails with CodeLocked while the identifier is locked.
func (g *LockoutGuard) Check(ctx context.Context, identifier string, now time.Time) error {
	record, err := g.store.Get(ctx, identifier)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lockout record")
	}
	if record == nil {
		return nil
	}
	if record.IsLockedAt(now) {
		return dErrors.New(dErrors.CodeLocked, "too many failed login attempts, try again later")
	}
	return nil
}

// RecordFailure counts one failed attempt and reports whether it tripped the
// lock.
func (g *LockoutGuard) RecordFailure(ctx context.Context, identifier string, now time.Time) (locked bool, err error) {
	record, err := g.store.RecordFailure(ctx, identifier, now)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if record.FailureCount < g.config.MaxFailures {
		return false, nil
	}

	until := now.Add(g.config.LockDuration)
	if err := g.store.SetLock(ctx, identifier, until); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply lock")
	}
	g.logger.WarnContext(ctx, "login identifier locked",
		"identifier", identifier,
		"failure_count", record.FailureCount,
		"locked_until", until,
	)
	return true, nil
}

// Clear removes the record after a successful login.
func (g *LockoutGuard) Clear(ctx context.Context, identifier string) error {
	if err := g.store.Clear(ctx, identifier); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear lockout record")
	}
	return nil
}

// InMemoryLockoutStore backs tests and local runs.
type InMemoryLockoutStore struct {
	mu      sync.Mutex
	window  time.Duration
	records map[string]*Lockout
}

// NewInMemoryLockoutStore enforces the same window reset the Postgres store
// applies on increment.
func NewInMemoryLockoutStore(window time.Duration) *InMemoryLockoutStore {
	return &InMemoryLockoutStore{window: window, records: make(map[string]*Lockout)}
}

func (s *InMemoryLockoutStore) Get(_ context.Context, identifier string) (*Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *InMemoryLockoutStore) RecordFailure(_ context.Context, identifier string, now time.Time) (*Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[identifier]
	if !ok || record.WindowExpiredAt(now, s.window) {
		record = &Lockout{Identifier: identifier}
		s.records[identifier] = record
	}
	record.FailureCount++
	record.LastFailureAt = now
	copied := *record
	return &copied, nil
}

func (s *InMemoryLockoutStore) SetLock(_ context.Context, identifier string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[identifier]
	if !ok {
		record = &Lockout{Identifier: identifier}
		s.records[identifier] = record
	}
	record.LockedUntil = &until
	return nil
}

func (s *InMemoryLockoutStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}
