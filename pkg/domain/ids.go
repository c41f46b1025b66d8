// Package domain holds shared domain primitives: typed identifiers that make
// it impossible to pass an assembly ID where a question ID is expected.
//
// Usage: construct via the New*/Parse* helpers at trust boundaries; direct
// casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "convoca/pkg/domain-errors"
)

// Typed IDs for the core entities. All are UUID-backed.
type (
	AccountID    uuid.UUID
	AssemblyID   uuid.UUID
	QuestionID   uuid.UUID
	DelegationID uuid.UUID
	BallotID     uuid.UUID
)

// NewAccountID returns a random account ID.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewAssemblyID returns a random assembly ID.
func NewAssemblyID() AssemblyID { return AssemblyID(uuid.New()) }

// NewQuestionID returns a random question ID.
func NewQuestionID() QuestionID { return QuestionID(uuid.New()) }

// NewDelegationID returns a random delegation ID.
func NewDelegationID() DelegationID { return DelegationID(uuid.New()) }

// NewBallotID returns a random ballot ID.
func NewBallotID() BallotID { return BallotID(uuid.New()) }

func (id AccountID) String() string    { return uuid.UUID(id).String() }
func (id AssemblyID) String() string   { return uuid.UUID(id).String() }
func (id QuestionID) String() string   { return uuid.UUID(id).String() }
func (id DelegationID) String() string { return uuid.UUID(id).String() }
func (id BallotID) String() string     { return uuid.UUID(id).String() }

// MarshalText renders IDs as canonical UUID strings in JSON and text
// encodings. Defined types do not inherit the uuid.UUID marshallers.
func (id AccountID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id AssemblyID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id QuestionID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id DelegationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BallotID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

// UnmarshalText accepts any valid UUID, the nil UUID included, so persisted
// events with absent optional IDs round-trip.
func (id *AccountID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = AccountID(u)
	return err
}

func (id *AssemblyID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = AssemblyID(u)
	return err
}

func (id *QuestionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = QuestionID(u)
	return err
}

func (id *DelegationID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = DelegationID(u)
	return err
}

func (id *BallotID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = BallotID(u)
	return err
}

// IsNil reports whether the ID is the zero UUID.
func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AssemblyID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id QuestionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DelegationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BallotID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation behind every Parse* helper: IDs must be
// valid, non-empty, non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil uuid")
	}
	return u, nil
}

// ParseAccountID parses an account ID from external input.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	return AccountID(u), err
}

// ParseAssemblyID parses an assembly ID from external input.
func ParseAssemblyID(s string) (AssemblyID, error) {
	u, err := parseUUID(s)
	return AssemblyID(u), err
}

// ParseQuestionID parses a question ID from external input.
func ParseQuestionID(s string) (QuestionID, error) {
	u, err := parseUUID(s)
	return QuestionID(u), err
}

// ParseDelegationID parses a delegation ID from external input.
func ParseDelegationID(s string) (DelegationID, error) {
	u, err := parseUUID(s)
	return DelegationID(u), err
}

// ParseBallotID parses a ballot ID from external input.
func ParseBallotID(s string) (BallotID, error) {
	u, err := parseUUID(s)
	return BallotID(u), err
}
