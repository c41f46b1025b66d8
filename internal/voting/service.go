package voting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"convoca/internal/assembly"
	"convoca/internal/audit"
	"convoca/internal/platform/metrics"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/sentinel"
	"convoca/pkg/requestcontext"
)

// AssemblyDirectory provides the assembly a question belongs to. Satisfied by
// the assembly service.
type AssemblyDirectory interface {
	Get(ctx context.Context, assemblyID id.AssemblyID) (*assembly.Assembly, error)
}

// Service owns the question lifecycle and vote casting.
type Service struct {
	questions  QuestionStore
	ballots    BallotStore
	resolver   *Resolver
	assemblies AssemblyDirectory
	recorder   audit.Recorder
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
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

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(questions QuestionStore, ballots BallotStore, resolver *Resolver, assemblies AssemblyDirectory, opts ...Option) (*Service, error) {
	if questions == nil || ballots == nil {
		return nil, errors.New("question and ballot stores are required")
	}
	if resolver == nil {
		return nil, errors.New("eligibility resolver is required")
	}
	if assemblies == nil {
		return nil, errors.New("assembly directory is required")
	}
	svc := &Service{
		questions:  questions,
		ballots:    ballots,
		resolver:   resolver,
		assemblies: assemblies,
		recorder:   audit.NopRecorder{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("convoca/internal/voting"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateQuestion registers a new scheduled question under an assembly that
// still accepts activity.
func (s *Service) CreateQuestion(ctx context.Context, assemblyID id.AssemblyID, text string, kind QuestionKind, options []string, start, end time.Time) (*Question, error) {
	a, err := s.assemblies.Get(ctx, assemblyID)
	if err != nil {
		return nil, err
	}
	if a.Status == assembly.StatusCompleted || a.Status == assembly.StatusCancelled {
		return nil, dErrors.New(dErrors.CodeConflict, "assembly no longer accepts questions")
	}

	q, err := NewQuestion(assemblyID, text, kind, options, start, end, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create question")
	}
	return q, nil
}

// GetQuestion returns one question.
func (s *Service) GetQuestion(ctx context.Context, questionID id.QuestionID) (*Question, error) {
	q, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "question not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load question")
	}
	return q, nil
}

// ListQuestions returns an assembly's questions.
func (s *Service) ListQuestions(ctx context.Context, assemblyID id.AssemblyID) ([]*Question, error) {
	out, err := s.questions.ListByAssembly(ctx, assemblyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list questions")
	}
	return out, nil
}

// TransitionQuestion moves a question through its lifecycle. Activation and
// closure are explicit administrator actions; the window timestamps never
// change status on their own.
func (s *Service) TransitionQuestion(ctx context.Context, questionID id.QuestionID, next QuestionStatus) (*Question, error) {
	if !next.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid question status")
	}

	q, err := s.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransition(next) {
		return nil, dErrors.New(dErrors.CodeConflict, "illegal question status transition")
	}

	if err := s.questions.UpdateStatus(ctx, questionID, next); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update question status")
	}
	q.Status = next

	s.recorder.Record(ctx, audit.Event{
		ActorID:    requestcontext.AccountID(ctx),
		QuestionID: questionID,
		Action:     audit.ActionQuestionStateChanged,
		Reason:     string(next),
	})
	return q, nil
}

// CastVote runs the eligibility decision for the authenticated voter and, on
// success, persists the ballot. The ballot store's unique constraint settles
// duplicate races: a conflicting insert is reported as a DUPLICATE denial,
// never as a second ballot.
func (s *Service) CastVote(ctx context.Context, voter Voter, questionID id.QuestionID, selected []string) (*Ballot, error) {
	ctx, span := s.tracer.Start(ctx, "voting.CastVote",
		trace.WithAttributes(attribute.String("question.id", questionID.String())),
	)
	defer span.End()

	q, err := s.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Event{
		ActorID:    voter.ID,
		QuestionID: questionID,
		Action:     audit.ActionVoteAttempted,
	})

	resolution, err := s.resolver.Resolve(ctx, voter, q, selected, requestcontext.Now(ctx))
	if err != nil {
		var denial *DenialError
		if errors.As(err, &denial) {
			s.recordDenial(ctx, voter.ID, questionID, denial)
			span.SetAttributes(attribute.String("vote.denial_reason", string(denial.Reason)))
		}
		return nil, err
	}

	ballot := &Ballot{
		ID:               id.NewBallotID(),
		QuestionID:       questionID,
		EffectiveVoterID: resolution.EffectiveVoterID,
		SelectedOptions:  selected,
		Weight:           resolution.Weight,
		ViaDelegation:    resolution.IsDelegateVote,
		DelegationID:     resolution.DelegationID,
		CastAt:           requestcontext.Now(ctx),
	}
	if err := s.ballots.Insert(ctx, ballot); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			denial := Deny(DenialDuplicate)
			s.recordDenial(ctx, voter.ID, questionID, denial)
			return nil, denial
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist ballot")
	}

	if s.metrics != nil {
		s.metrics.BallotsCast.Inc()
	}
	s.recorder.Record(ctx, audit.Event{
		ActorID:    voter.ID,
		QuestionID: questionID,
		Action:     audit.ActionVoteCast,
		Reason:     ballot.ID.String(),
	})
	s.logger.InfoContext(ctx, "ballot cast",
		"ballot_id", ballot.ID,
		"question_id", questionID,
		"via_delegation", ballot.ViaDelegation,
		"weight", ballot.Weight,
	)
	return ballot, nil
}

func (s *Service) recordDenial(ctx context.Context, actorID id.AccountID, questionID id.QuestionID, denial *DenialError) {
	if s.metrics != nil {
		s.metrics.IncVoteDenied(string(denial.Reason))
	}
	s.recorder.Record(ctx, audit.Event{
		ActorID:    actorID,
		QuestionID: questionID,
		Action:     audit.ActionVoteDenied,
		Reason:     string(denial.Reason),
	})
}

// Results is the weighted tally of a question.
type Results struct {
	QuestionID   id.QuestionID  `json:"question_id"`
	Status       QuestionStatus `json:"status"`
	TotalBallots int            `json:"total_ballots"`
	TotalWeight  int            `json:"total_weight"`
	Tally        map[string]int `json:"tally"`
}

// TallyResults aggregates ballots by option, weighted by shares. Every option
// appears in the tally, zero-weight included, so clients render a stable set.
func (s *Service) TallyResults(ctx context.Context, questionID id.QuestionID) (*Results, error) {
	q, err := s.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	ballots, err := s.ballots.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ballots")
	}

	results := &Results{
		QuestionID: questionID,
		Status:     q.Status,
		Tally:      make(map[string]int, len(q.Options)),
	}
	for _, opt := range q.Options {
		results.Tally[opt] = 0
	}
	for _, b := range ballots {
		results.TotalBallots++
		results.TotalWeight += b.Weight
		for _, opt := range b.SelectedOptions {
			results.Tally[opt] += b.Weight
		}
	}
	return results, nil
}
