package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/auth"
	id "convoca/pkg/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key", time.Hour)
	account := &auth.Account{
		ID:    id.NewAccountID(),
		Email: "ana@example.com",
		Role:  auth.RoleAdmin,
	}

	signed, err := tokens.Issue(account, time.Now())
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestTokenExpired(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key", time.Minute)
	account := &auth.Account{ID: id.NewAccountID(), Email: "ana@example.com", Role: auth.RoleMember}

	signed, err := tokens.Issue(account, time.Now().Add(-2*time.Minute))
	require.NoError(t, err)

	_, err = tokens.ValidateToken(signed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestTokenWrongKeyRejected(t *testing.T) {
	issuer := auth.NewTokenService("key-one", time.Hour)
	verifier := auth.NewTokenService("key-two", time.Hour)
	account := &auth.Account{ID: id.NewAccountID(), Email: "ana@example.com", Role: auth.RoleMember}

	signed, err := issuer.Issue(account, time.Now())
	require.NoError(t, err)

	_, err = verifier.ValidateToken(signed)
	require.Error(t, err)
}

func TestTokenGarbageRejected(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key", time.Hour)
	_, err := tokens.ValidateToken("not.a.token")
	require.Error(t, err)
}
