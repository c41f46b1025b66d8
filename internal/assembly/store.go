package assembly

import (
	"context"
	"sync"

	id "convoca/pkg/domain"
	"convoca/pkg/platform/sentinel"
)

// Store is the persistence boundary for assemblies and rosters. Stores are
// pure I/O; lifecycle rules live in the service.
type Store interface {
	Create(ctx context.Context, a *Assembly) error
	FindByID(ctx context.Context, assemblyID id.AssemblyID) (*Assembly, error)
	List(ctx context.Context) ([]*Assembly, error)
	UpdateStatus(ctx context.Context, assemblyID id.AssemblyID, status Status) error

	Enroll(ctx context.Context, p *Participant) error
	FindParticipant(ctx context.Context, assemblyID id.AssemblyID, accountID id.AccountID) (*Participant, error)
	ListRoster(ctx context.Context, assemblyID id.AssemblyID) ([]*Participant, error)
}

type rosterKey struct {
	assembly id.AssemblyID
	account  id.AccountID
}

// InMemoryStore backs tests and local runs.
type InMemoryStore struct {
	mu         sync.RWMutex
	assemblies map[id.AssemblyID]*Assembly
	roster     map[rosterKey]*Participant
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		assemblies: make(map[id.AssemblyID]*Assembly),
		roster:     make(map[rosterKey]*Participant),
	}
}

func (s *InMemoryStore) Create(_ context.Context, a *Assembly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assemblies[a.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *a
	s.assemblies[a.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, assemblyID id.AssemblyID) (*Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assemblies[assemblyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Assembly, 0, len(s.assemblies))
	for _, a := range s.assemblies {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, assemblyID id.AssemblyID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assemblies[assemblyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	a.Status = status
	return nil
}

func (s *InMemoryStore) Enroll(_ context.Context, p *Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rosterKey{assembly: p.AssemblyID, account: p.AccountID}
	if _, exists := s.roster[key]; exists {
		return sentinel.ErrConflict
	}
	copied := *p
	s.roster[key] = &copied
	return nil
}

func (s *InMemoryStore) FindParticipant(_ context.Context, assemblyID id.AssemblyID, accountID id.AccountID) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.roster[rosterKey{assembly: assemblyID, account: accountID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *InMemoryStore) ListRoster(_ context.Context, assemblyID id.AssemblyID) ([]*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Participant
	for key, p := range s.roster {
		if key.assembly == assemblyID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}
