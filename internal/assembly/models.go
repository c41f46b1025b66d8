// Package assembly manages assemblies and their participant rosters: who is
// enrolled, with what share weight, and in which lifecycle state the assembly
// currently is.
package assembly

import (
	"time"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// Status is the assembly lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// legalTransitions encodes scheduled → active → completed, with cancellation
// allowed from any non-terminal state.
var legalTransitions = map[Status][]Status{
	StatusScheduled: {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Assembly is one convened meeting with a voting window and a roster.
// Invariant: EndTime > StartTime.
type Assembly struct {
	ID          id.AssemblyID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Status      Status        `json:"status"`
	CreatedBy   id.AccountID  `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Participant is one roster entry: an enrolled account and its share weight.
type Participant struct {
	AssemblyID id.AssemblyID `json:"assembly_id"`
	AccountID  id.AccountID  `json:"account_id"`
	Shares     int           `json:"shares"`
	EnrolledAt time.Time     `json:"enrolled_at"`
}

// New creates an Assembly with domain invariant validation.
func New(title, description string, start, end time.Time, createdBy id.AccountID, now time.Time) (*Assembly, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "title cannot be empty")
	}
	if !end.After(start) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "end time must be after start time")
	}
	return &Assembly{
		ID:          id.NewAssemblyID(),
		Title:       title,
		Description: description,
		StartTime:   start,
		EndTime:     end,
		Status:      StatusScheduled,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}, nil
}

// NewParticipant creates a roster entry. Shares below one collapse to the
// default weight of one.
func NewParticipant(assemblyID id.AssemblyID, accountID id.AccountID, shares int, now time.Time) *Participant {
	if shares < 1 {
		shares = 1
	}
	return &Participant{
		AssemblyID: assemblyID,
		AccountID:  accountID,
		Shares:     shares,
		EnrolledAt: now,
	}
}
