package voting

import (
	"context"
	"errors"
	"time"

	"convoca/internal/assembly"
	"convoca/internal/delegation"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/sentinel"
)

// Voter is the authenticated account attempting to vote, as the resolver
// needs it: identity and the email delegates are matched by. Vote weight comes
// from the roster entry or the delegation, never from the account itself.
type Voter struct {
	ID    id.AccountID
	Email string
}

// DelegationDirectory answers the two resolver lookups. Both are evaluated
// fresh per attempt; approval status can change between requests, so results
// are never cached. Absence is reported as sentinel.ErrNotFound.
type DelegationDirectory interface {
	// Outgoing: does a delegation exist where the account is the principal?
	Outgoing(ctx context.Context, assemblyID id.AssemblyID, participantID id.AccountID) (*delegation.Delegation, error)
	// Incoming: is the account (by email) someone's approved delegate in this
	// assembly?
	Incoming(ctx context.Context, assemblyID id.AssemblyID, email string) (*delegation.Delegation, error)
}

// Enrollment answers whether an account is on an assembly roster.
type Enrollment interface {
	Participant(ctx context.Context, assemblyID id.AssemblyID, accountID id.AccountID) (*assembly.Participant, error)
}

// BallotReader is the duplicate pre-check. The storage-level uniqueness
// constraint remains the arbiter under concurrent requests.
type BallotReader interface {
	Exists(ctx context.Context, questionID id.QuestionID, effectiveVoterID id.AccountID) (bool, error)
}

// Resolver decides, per (voter, question) pair, the effective voter identity,
// the vote weight, and whether casting is permitted. Resolve performs only
// reads; it never mutates stored state.
type Resolver struct {
	delegations DelegationDirectory
	enrollment  Enrollment
	ballots     BallotReader
}

func NewResolver(delegations DelegationDirectory, enrollment Enrollment, ballots BallotReader) *Resolver {
	return &Resolver{delegations: delegations, enrollment: enrollment, ballots: ballots}
}

// Resolve runs the eligibility decision procedure. The step order matters:
// each gate short-circuits with its specific denial reason.
func (r *Resolver) Resolve(ctx context.Context, voter Voter, question *Question, selected []string, now time.Time) (*Resolution, error) {
	// 1. Question activity gate. Status is authoritative; the timestamps
	// refine the reason for user messaging.
	if question.Status != QuestionActive {
		return nil, Deny(DenialNotActive)
	}
	if now.Before(question.StartTime) {
		return nil, Deny(DenialNotStarted)
	}
	if !now.Before(question.EndTime) {
		return nil, Deny(DenialExpired)
	}

	// 2. Option validity.
	if len(selected) == 0 {
		return nil, Deny(DenialInvalidOption)
	}
	if question.Kind == KindSingleChoice && len(selected) != 1 {
		return nil, Deny(DenialInvalidOption)
	}
	seen := make(map[string]bool, len(selected))
	for _, value := range selected {
		if seen[value] || !question.HasOption(value) {
			return nil, Deny(DenialInvalidOption)
		}
		seen[value] = true
	}

	// 3. Identity resolution: two lookups by distinct keys. A delegate is
	// identified by email, not by holding the principal's account.
	delegOut, err := r.lookupDelegation(func() (*delegation.Delegation, error) {
		return r.delegations.Outgoing(ctx, question.AssemblyID, voter.ID)
	})
	if err != nil {
		return nil, err
	}
	delegIn, err := r.lookupDelegation(func() (*delegation.Delegation, error) {
		return r.delegations.Incoming(ctx, question.AssemblyID, voter.Email)
	})
	if err != nil {
		return nil, err
	}

	// 4. Enrollment of the effective principal. When acting as a delegate,
	// the original participant must be enrolled, not the delegate's account.
	principalID := voter.ID
	if delegIn != nil {
		principalID = delegIn.ParticipantID
	}
	participant, err := r.enrollment.Participant(ctx, question.AssemblyID, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, Deny(DenialNotEnrolled)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check enrollment")
	}

	// 5. Proxy exclusivity: a principal who delegated outward may not vote
	// directly; only the delegate votes on their behalf.
	if delegOut != nil && delegIn == nil {
		return nil, Deny(DenialHasDelegate)
	}

	// 6. Effective voter and weight selection.
	resolution := &Resolution{}
	if delegIn != nil {
		resolution.Identity = ViaDelegation{PrincipalID: delegIn.ParticipantID, DelegationID: delegIn.ID}
		resolution.EffectiveVoterID = delegIn.ParticipantID
		resolution.Weight = delegIn.SharesDelegated
		resolution.IsDelegateVote = true
		resolution.DelegationID = &delegIn.ID
		resolution.OriginalParticipant = &delegIn.ParticipantID
	} else {
		resolution.Identity = Direct{AccountID: voter.ID}
		resolution.EffectiveVoterID = voter.ID
		resolution.Weight = participant.Shares
		if resolution.Weight < 1 {
			resolution.Weight = 1
		}
	}

	// 7. Duplicate pre-check. Two concurrent attempts can both pass this;
	// the ballot store's unique constraint settles the race.
	exists, err := r.ballots.Exists(ctx, question.ID, resolution.EffectiveVoterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for existing ballot")
	}
	if exists {
		return nil, Deny(DenialDuplicate)
	}

	return resolution, nil
}

// lookupDelegation normalizes the not-found case to a nil record: absence of
// a delegation is a normal outcome, not an error.
func (r *Resolver) lookupDelegation(find func() (*delegation.Delegation, error)) (*delegation.Delegation, error) {
	d, err := find()
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up delegation")
	}
	return d, nil
}
