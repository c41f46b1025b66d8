// Package auth owns accounts, credentials, login lockout, and token issuance.
package auth

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"golang.org/x/crypto/bcrypt"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// Roles an account can hold.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Account is a registered person. Shares is the base vote weight used when an
// assembly roster entry does not override it.
type Account struct {
	ID           id.AccountID `json:"id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	Document     string       `json:"document"`
	Shares       int          `json:"shares"`
	Role         string       `json:"role"`
	PasswordHash string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewAccount creates an Account with a bcrypt-hashed password.
func NewAccount(email, name, document, password string, shares int, now time.Time) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !govalidator.IsEmail(email) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if len(password) < 8 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}
	if shares < 1 {
		shares = 1
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	return &Account{
		ID:           id.NewAccountID(),
		Email:        email,
		Name:         name,
		Document:     document,
		Shares:       shares,
		Role:         RoleMember,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}, nil
}

// ComparePassword reports whether the candidate matches the stored hash.
func (a *Account) ComparePassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(candidate)) == nil
}
