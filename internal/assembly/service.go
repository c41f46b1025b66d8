package assembly

import (
	"context"
	"errors"
	"log/slog"

	"convoca/internal/audit"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/sentinel"
	"convoca/pkg/requestcontext"
)

// Service owns assembly lifecycle rules and roster management.
type Service struct {
	store    Store
	recorder audit.Recorder
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the audit recorder.
func WithRecorder(recorder audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("assembly store is required")
	}
	svc := &Service{
		store:    store,
		recorder: audit.NopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create registers a new assembly in scheduled state.
func (s *Service) Create(ctx context.Context, a *Assembly) (*Assembly, error) {
	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "assembly already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create assembly")
	}
	return a, nil
}

// Get returns one assembly.
func (s *Service) Get(ctx context.Context, assemblyID id.AssemblyID) (*Assembly, error) {
	a, err := s.store.FindByID(ctx, assemblyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "assembly not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assembly")
	}
	return a, nil
}

// List returns all assemblies.
func (s *Service) List(ctx context.Context) ([]*Assembly, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assemblies")
	}
	return out, nil
}

// Transition moves an assembly to the requested status, enforcing the
// lifecycle rules.
func (s *Service) Transition(ctx context.Context, assemblyID id.AssemblyID, next Status) (*Assembly, error) {
	if !next.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid assembly status")
	}

	a, err := s.Get(ctx, assemblyID)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransition(next) {
		return nil, dErrors.New(dErrors.CodeConflict, "illegal assembly status transition")
	}

	if err := s.store.UpdateStatus(ctx, assemblyID, next); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update assembly status")
	}
	a.Status = next

	s.recorder.Record(ctx, audit.Event{
		ActorID: requestcontext.AccountID(ctx),
		Action:  audit.ActionAssemblyStateChanged,
		Reason:  string(next),
	})
	return a, nil
}

// Enroll adds an account to the assembly roster. Enrollment is only allowed
// before the assembly completes.
func (s *Service) Enroll(ctx context.Context, assemblyID id.AssemblyID, accountID id.AccountID, shares int) (*Participant, error) {
	a, err := s.Get(ctx, assemblyID)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCompleted || a.Status == StatusCancelled {
		return nil, dErrors.New(dErrors.CodeConflict, "assembly no longer accepts enrollment")
	}

	p := NewParticipant(assemblyID, accountID, shares, requestcontext.Now(ctx))
	if err := s.store.Enroll(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "participant already enrolled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enroll participant")
	}
	return p, nil
}

// Roster lists the enrolled participants.
func (s *Service) Roster(ctx context.Context, assemblyID id.AssemblyID) ([]*Participant, error) {
	out, err := s.store.ListRoster(ctx, assemblyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roster")
	}
	return out, nil
}

// Participant returns the roster entry for an account, or sentinel.ErrNotFound
// (unwrapped) when the account is not enrolled. The voting resolver treats
// absence as a normal outcome, not an error.
func (s *Service) Participant(ctx context.Context, assemblyID id.AssemblyID, accountID id.AccountID) (*Participant, error) {
	return s.store.FindParticipant(ctx, assemblyID, accountID)
}
