package delegation

import (
	"context"
	"errors"
	"log/slog"

	"convoca/internal/assembly"
	"convoca/internal/audit"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/sentinel"
	"convoca/pkg/requestcontext"
)

// Enrollment answers whether an account is enrolled in an assembly. Satisfied
// by the assembly service.
type Enrollment interface {
	Participant(ctx context.Context, assemblyID id.AssemblyID, accountID id.AccountID) (*assembly.Participant, error)
}

// Service owns delegation creation and validation rules.
type Service struct {
	store      Store
	enrollment Enrollment
	recorder   audit.Recorder
	logger     *slog.Logger
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

func NewService(store Store, enrollment Enrollment, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("delegation store is required")
	}
	if enrollment == nil {
		return nil, errors.New("enrollment reader is required")
	}
	svc := &Service{
		store:      store,
		enrollment: enrollment,
		recorder:   audit.NopRecorder{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create registers a pending delegation for the calling participant. The
// participant must be enrolled; the delegated shares default to the
// participant's enrolled shares when not given.
func (s *Service) Create(ctx context.Context, assemblyID id.AssemblyID, participantID id.AccountID, name, email, document string, shares int) (*Delegation, error) {
	participant, err := s.enrollment.Participant(ctx, assemblyID, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "participant is not enrolled in this assembly")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check enrollment")
	}

	if shares <= 0 {
		shares = participant.Shares
	}

	d, err := New(assemblyID, participantID, name, email, document, shares, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, d); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a delegation already exists for this participant or delegate")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create delegation")
	}

	s.recorder.Record(ctx, audit.Event{
		ActorID: participantID,
		Action:  audit.ActionDelegationCreated,
		Reason:  d.ID.String(),
	})
	return d, nil
}

// Validate applies an admin approve/reject decision to a pending delegation.
func (s *Service) Validate(ctx context.Context, delegationID id.DelegationID, next Status) (*Delegation, error) {
	d, err := s.store.FindByID(ctx, delegationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "delegation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load delegation")
	}

	if err := d.Validate(next, requestcontext.AccountID(ctx), requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	if err := s.store.UpdateValidation(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update delegation")
	}

	s.recorder.Record(ctx, audit.Event{
		ActorID: requestcontext.AccountID(ctx),
		Action:  audit.ActionDelegationValidated,
		Reason:  string(next),
	})
	return d, nil
}

// ListByAssembly returns all delegations for an assembly.
func (s *Service) ListByAssembly(ctx context.Context, assemblyID id.AssemblyID) ([]*Delegation, error) {
	out, err := s.store.ListByAssembly(ctx, assemblyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list delegations")
	}
	return out, nil
}

// Outgoing returns the approved delegation where the account is the
// principal, or sentinel.ErrNotFound. Evaluated fresh per call: approval
// status can change between vote attempts, so the resolver never caches.
func (s *Service) Outgoing(ctx context.Context, assemblyID id.AssemblyID, participantID id.AccountID) (*Delegation, error) {
	return s.store.FindApprovedByParticipant(ctx, assemblyID, participantID)
}

// Incoming returns the approved delegation where the account (matched by
// email) acts as the delegate, or sentinel.ErrNotFound. A delegate is
// identified by email and document, not by holding a registered account.
func (s *Service) Incoming(ctx context.Context, assemblyID id.AssemblyID, email string) (*Delegation, error) {
	return s.store.FindApprovedByDelegateEmail(ctx, assemblyID, email)
}
