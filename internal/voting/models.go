// Package voting holds questions, ballots, and the eligibility resolution
// procedure that decides who may cast a vote, under which identity, and with
// what weight.
package voting

import (
	"net/http"
	"time"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	platformstrings "convoca/pkg/platform/strings"
)

// QuestionKind distinguishes single-choice from multiple-choice questions.
type QuestionKind string

const (
	KindSingleChoice   QuestionKind = "single"
	KindMultipleChoice QuestionKind = "multiple"
)

// IsValid checks if the kind is one of the supported enum values.
func (k QuestionKind) IsValid() bool {
	return k == KindSingleChoice || k == KindMultipleChoice
}

// QuestionStatus is the question lifecycle state, independent of the
// assembly's.
type QuestionStatus string

const (
	QuestionScheduled QuestionStatus = "scheduled"
	QuestionActive    QuestionStatus = "active"
	QuestionCompleted QuestionStatus = "completed"
	QuestionCancelled QuestionStatus = "cancelled"
)

// IsValid checks if the status is one of the supported enum values.
func (s QuestionStatus) IsValid() bool {
	switch s {
	case QuestionScheduled, QuestionActive, QuestionCompleted, QuestionCancelled:
		return true
	}
	return false
}

var questionTransitions = map[QuestionStatus][]QuestionStatus{
	QuestionScheduled: {QuestionActive, QuestionCancelled},
	QuestionActive:    {QuestionCompleted, QuestionCancelled},
}

// CanTransition reports whether moving from s to next is legal.
func (s QuestionStatus) CanTransition(next QuestionStatus) bool {
	for _, allowed := range questionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Question is one item put to a vote within an assembly. The status field is
// the authoritative gate (driven by administrator actions); the window
// timestamps refine the denial reason for user messaging.
type Question struct {
	ID         id.QuestionID  `json:"id"`
	AssemblyID id.AssemblyID  `json:"assembly_id"`
	Text       string         `json:"text"`
	Kind       QuestionKind   `json:"kind"`
	Options    []string       `json:"options"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Status     QuestionStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewQuestion creates a Question with domain invariant validation.
func NewQuestion(assemblyID id.AssemblyID, text string, kind QuestionKind, options []string, start, end, now time.Time) (*Question, error) {
	if text == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "question text cannot be empty")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "question kind must be single or multiple")
	}
	// Whitespace and duplicate entries collapse silently; a question that ends
	// up with fewer than two distinct options is rejected.
	options = platformstrings.DedupeAndTrim(options)
	if len(options) < 2 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "question needs at least two distinct options")
	}
	if !end.After(start) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "end time must be after start time")
	}
	return &Question{
		ID:         id.NewQuestionID(),
		AssemblyID: assemblyID,
		Text:       text,
		Kind:       kind,
		Options:    options,
		StartTime:  start,
		EndTime:    end,
		Status:     QuestionScheduled,
		CreatedAt:  now,
	}, nil
}

// HasOption reports whether value is a member of the question's option set.
func (q *Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Ballot is one cast vote. Immutable once persisted.
// Invariant (storage-enforced): at most one ballot per (question, effective
// voter).
type Ballot struct {
	ID               id.BallotID      `json:"id"`
	QuestionID       id.QuestionID    `json:"question_id"`
	EffectiveVoterID id.AccountID     `json:"effective_voter_id"`
	SelectedOptions  []string         `json:"selected_options"`
	Weight           int              `json:"weight"`
	ViaDelegation    bool             `json:"via_delegation"`
	DelegationID     *id.DelegationID `json:"delegation_id,omitempty"`
	CastAt           time.Time        `json:"cast_at"`
}

// VoterIdentity is the resolved identity a ballot is cast under: either the
// account votes for itself, or it acts as the approved delegate of a
// principal.
type VoterIdentity interface {
	// EffectiveVoter is the identity the ballot is attributed to.
	EffectiveVoter() id.AccountID
	isVoterIdentity()
}

// Direct means the account votes with its own enrollment.
type Direct struct {
	AccountID id.AccountID
}

func (d Direct) EffectiveVoter() id.AccountID { return d.AccountID }
func (Direct) isVoterIdentity()               {}

// ViaDelegation means the account casts the principal's vote under an
// approved delegation.
type ViaDelegation struct {
	PrincipalID  id.AccountID
	DelegationID id.DelegationID
}

func (v ViaDelegation) EffectiveVoter() id.AccountID { return v.PrincipalID }
func (ViaDelegation) isVoterIdentity()               {}

// Resolution is a successful eligibility decision.
type Resolution struct {
	Identity         VoterIdentity
	EffectiveVoterID id.AccountID
	Weight           int
	IsDelegateVote   bool
	// DelegationID and OriginalParticipant are set for delegate votes so the
	// ballot and audit trail can attribute the vote to the principal.
	DelegationID        *id.DelegationID
	OriginalParticipant *id.AccountID
}

// DenialReason enumerates why a vote attempt was refused. All denials are
// terminal for the request; none are retryable.
type DenialReason string

const (
	DenialNotActive     DenialReason = "NOT_ACTIVE"
	DenialNotStarted    DenialReason = "NOT_STARTED"
	DenialExpired       DenialReason = "EXPIRED"
	DenialInvalidOption DenialReason = "INVALID_OPTION"
	DenialNotEnrolled   DenialReason = "NOT_ENROLLED"
	DenialHasDelegate   DenialReason = "HAS_DELEGATE"
	DenialDuplicate     DenialReason = "DUPLICATE"
)

// denialMessages are the user-facing texts per denial reason.
var denialMessages = map[DenialReason]string{
	DenialNotActive:     "this question is not open for voting",
	DenialNotStarted:    "voting on this question has not started yet",
	DenialExpired:       "voting on this question has closed",
	DenialInvalidOption: "one or more selected options are not valid for this question",
	DenialNotEnrolled:   "the voter is not enrolled in this assembly",
	DenialHasDelegate:   "an approved delegate votes on this participant's behalf",
	DenialDuplicate:     "a ballot has already been cast for this question",
}

// DenialError is the typed refusal returned by the resolver.
type DenialError struct {
	Reason DenialReason
}

func (e *DenialError) Error() string {
	return string(e.Reason) + ": " + denialMessages[e.Reason]
}

// Message returns the user-facing text for the denial.
func (e *DenialError) Message() string { return denialMessages[e.Reason] }

// HTTPStatus maps the denial to the response status.
func (e *DenialError) HTTPStatus() int {
	switch e.Reason {
	case DenialInvalidOption:
		return http.StatusBadRequest
	case DenialDuplicate:
		return http.StatusConflict
	default:
		return http.StatusForbidden
	}
}

// Deny builds a DenialError for the given reason.
func Deny(reason DenialReason) *DenialError {
	return &DenialError{Reason: reason}
}
