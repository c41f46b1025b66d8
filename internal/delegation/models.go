// Package delegation manages proxy-voting relations: a participant hands its
// vote for one assembly to a delegate identified by name, email, and document
// number. Delegations start pending and must be approved by an administrator
// before the delegate may vote.
package delegation

import (
	"time"

	"github.com/asaskevich/govalidator"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// Status is the delegation validation state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Delegation is a directed relation from a participant to a delegate's
// identity details, scoped to one assembly.
//
// Storage-enforced invariants: at most one delegation per (assembly,
// participant) and at most one per (assembly, delegate document number).
// Records are immutable except for the validation-status transition.
type Delegation struct {
	ID               id.DelegationID `json:"id"`
	AssemblyID       id.AssemblyID   `json:"assembly_id"`
	ParticipantID    id.AccountID    `json:"participant_id"`
	DelegateName     string          `json:"delegate_name"`
	DelegateEmail    string          `json:"delegate_email"`
	DelegateDocument string          `json:"delegate_document"`
	SharesDelegated  int             `json:"shares_delegated"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	ValidatedAt      *time.Time      `json:"validated_at,omitempty"`
	ValidatedBy      *id.AccountID   `json:"validated_by,omitempty"`
}

// New creates a pending Delegation with domain invariant validation.
func New(assemblyID id.AssemblyID, participantID id.AccountID, name, email, document string, shares int, now time.Time) (*Delegation, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "delegate name cannot be empty")
	}
	if !govalidator.IsEmail(email) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "delegate email is not valid")
	}
	if document == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "delegate document number cannot be empty")
	}
	if shares < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "delegated shares must be positive")
	}
	return &Delegation{
		ID:               id.NewDelegationID(),
		AssemblyID:       assemblyID,
		ParticipantID:    participantID,
		DelegateName:     name,
		DelegateEmail:    email,
		DelegateDocument: document,
		SharesDelegated:  shares,
		Status:           StatusPending,
		CreatedAt:        now,
	}, nil
}

// Validate applies the pending → approved|rejected transition.
func (d *Delegation) Validate(next Status, by id.AccountID, now time.Time) error {
	if next != StatusApproved && next != StatusRejected {
		return dErrors.New(dErrors.CodeInvalidInput, "validation must approve or reject")
	}
	if d.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "delegation already validated")
	}
	d.Status = next
	d.ValidatedAt = &now
	d.ValidatedBy = &by
	return nil
}
