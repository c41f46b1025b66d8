package auth

import (
	"context"
	"strings"
	"sync"

	id "convoca/pkg/domain"
	"convoca/pkg/platform/sentinel"
)

// AccountStore is the persistence boundary for accounts. Email uniqueness is
// enforced here; Create returns sentinel.ErrConflict on a duplicate.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
}

// InMemoryAccountStore backs tests and local runs.
type InMemoryAccountStore struct {
	mu      sync.RWMutex
	byID    map[id.AccountID]*Account
	byEmail map[string]id.AccountID
}

func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{
		byID:    make(map[id.AccountID]*Account),
		byEmail: make(map[string]id.AccountID),
	}
}

func (s *InMemoryAccountStore) Create(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(a.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}
	copied := *a
	s.byID[a.ID] = &copied
	s.byEmail[key] = a.ID
	return nil
}

func (s *InMemoryAccountStore) FindByID(_ context.Context, accountID id.AccountID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *InMemoryAccountStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[accountID]
	return &copied, nil
}
