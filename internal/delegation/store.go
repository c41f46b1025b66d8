package delegation

import (
	"context"
	"strings"
	"sync"

	id "convoca/pkg/domain"
	"convoca/pkg/platform/sentinel"
)

// Store is the persistence boundary for delegations.
//
// FindApprovedByParticipant and FindApprovedByDelegateEmail are the two
// resolver lookups from the eligibility procedure; each returns at most one
// record given the data-model invariants, and sentinel.ErrNotFound when absent
// (absence is normal, not an error condition).
type Store interface {
	Create(ctx context.Context, d *Delegation) error
	FindByID(ctx context.Context, delegationID id.DelegationID) (*Delegation, error)
	ListByAssembly(ctx context.Context, assemblyID id.AssemblyID) ([]*Delegation, error)
	UpdateValidation(ctx context.Context, d *Delegation) error

	FindApprovedByParticipant(ctx context.Context, assemblyID id.AssemblyID, participantID id.AccountID) (*Delegation, error)
	FindApprovedByDelegateEmail(ctx context.Context, assemblyID id.AssemblyID, email string) (*Delegation, error)
}

// InMemoryStore backs tests and local runs. It enforces the same uniqueness
// invariants as the Postgres schema.
type InMemoryStore struct {
	mu          sync.RWMutex
	delegations map[id.DelegationID]*Delegation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{delegations: make(map[id.DelegationID]*Delegation)}
}

func (s *InMemoryStore) Create(_ context.Context, d *Delegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.delegations {
		if existing.AssemblyID != d.AssemblyID {
			continue
		}
		if existing.ParticipantID == d.ParticipantID {
			return sentinel.ErrConflict
		}
		if existing.DelegateDocument == d.DelegateDocument {
			return sentinel.ErrConflict
		}
	}
	copied := *d
	s.delegations[d.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, delegationID id.DelegationID) (*Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.delegations[delegationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *InMemoryStore) ListByAssembly(_ context.Context, assemblyID id.AssemblyID) ([]*Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Delegation
	for _, d := range s.delegations {
		if d.AssemblyID == assemblyID {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateValidation(_ context.Context, d *Delegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.delegations[d.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	existing.Status = d.Status
	existing.ValidatedAt = d.ValidatedAt
	existing.ValidatedBy = d.ValidatedBy
	return nil
}

func (s *InMemoryStore) FindApprovedByParticipant(_ context.Context, assemblyID id.AssemblyID, participantID id.AccountID) (*Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.delegations {
		if d.AssemblyID == assemblyID && d.ParticipantID == participantID && d.Status == StatusApproved {
			copied := *d
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindApprovedByDelegateEmail(_ context.Context, assemblyID id.AssemblyID, email string) (*Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.delegations {
		if d.AssemblyID == assemblyID && strings.EqualFold(d.DelegateEmail, email) && d.Status == StatusApproved {
			copied := *d
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
