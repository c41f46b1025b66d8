package voting

import (
	"context"
	"sync"

	id "convoca/pkg/domain"
	"convoca/pkg/platform/sentinel"
)

// QuestionStore is the persistence boundary for questions.
type QuestionStore interface {
	Create(ctx context.Context, q *Question) error
	FindByID(ctx context.Context, questionID id.QuestionID) (*Question, error)
	ListByAssembly(ctx context.Context, assemblyID id.AssemblyID) ([]*Question, error)
	UpdateStatus(ctx context.Context, questionID id.QuestionID, status QuestionStatus) error
}

// BallotStore persists ballots. Insert must reject a second ballot for the
// same (question, effective voter) with sentinel.ErrConflict; that constraint
// is the true duplicate guard under concurrent requests.
type BallotStore interface {
	Insert(ctx context.Context, b *Ballot) error
	Exists(ctx context.Context, questionID id.QuestionID, effectiveVoterID id.AccountID) (bool, error)
	ListByQuestion(ctx context.Context, questionID id.QuestionID) ([]*Ballot, error)
}

// InMemoryQuestionStore backs tests and local runs.
type InMemoryQuestionStore struct {
	mu        sync.RWMutex
	questions map[id.QuestionID]*Question
}

func NewInMemoryQuestionStore() *InMemoryQuestionStore {
	return &InMemoryQuestionStore{questions: make(map[id.QuestionID]*Question)}
}

func (s *InMemoryQuestionStore) Create(_ context.Context, q *Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.questions[q.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *q
	copied.Options = append([]string{}, q.Options...)
	s.questions[q.ID] = &copied
	return nil
}

func (s *InMemoryQuestionStore) FindByID(_ context.Context, questionID id.QuestionID) (*Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *q
	copied.Options = append([]string{}, q.Options...)
	return &copied, nil
}

func (s *InMemoryQuestionStore) ListByAssembly(_ context.Context, assemblyID id.AssemblyID) ([]*Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Question
	for _, q := range s.questions {
		if q.AssemblyID == assemblyID {
			copied := *q
			copied.Options = append([]string{}, q.Options...)
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryQuestionStore) UpdateStatus(_ context.Context, questionID id.QuestionID, status QuestionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	q.Status = status
	return nil
}

type ballotKey struct {
	question id.QuestionID
	voter    id.AccountID
}

// InMemoryBallotStore enforces the at-most-once invariant under a single
// mutex, mirroring the Postgres unique index.
type InMemoryBallotStore struct {
	mu      sync.RWMutex
	ballots map[ballotKey]*Ballot
}

func NewInMemoryBallotStore() *InMemoryBallotStore {
	return &InMemoryBallotStore{ballots: make(map[ballotKey]*Ballot)}
}

func (s *InMemoryBallotStore) Insert(_ context.Context, b *Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ballotKey{question: b.QuestionID, voter: b.EffectiveVoterID}
	if _, exists := s.ballots[key]; exists {
		return sentinel.ErrConflict
	}
	copied := *b
	copied.SelectedOptions = append([]string{}, b.SelectedOptions...)
	s.ballots[key] = &copied
	return nil
}

func (s *InMemoryBallotStore) Exists(_ context.Context, questionID id.QuestionID, effectiveVoterID id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.ballots[ballotKey{question: questionID, voter: effectiveVoterID}]
	return exists, nil
}

func (s *InMemoryBallotStore) ListByQuestion(_ context.Context, questionID id.QuestionID) ([]*Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Ballot
	for key, b := range s.ballots {
		if key.question == questionID {
			copied := *b
			copied.SelectedOptions = append([]string{}, b.SelectedOptions...)
			out = append(out, &copied)
		}
	}
	return out, nil
}
