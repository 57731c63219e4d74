package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taneng/budget-control/auth"
	"github.com/taneng/budget-control/budget"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := auth.HashPassword("admin123")
	require.NoError(t, err)

	assert.True(t, auth.CheckPassword(hash, "admin123"))
	assert.False(t, auth.CheckPassword(hash, "wrong"))
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", 8*time.Hour)
	user := &budget.User{ID: 42, Username: "leader", Role: budget.RoleLeader}

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, budget.RoleLeader, claims.Role)
}

func TestTokenRejectedWithWrongSecret(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret-a", time.Hour)
	token, err := issuer.Issue(&budget.User{ID: 1, Role: budget.RoleAdmin})
	require.NoError(t, err)

	other := auth.NewTokenIssuer("secret-b", time.Hour)
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestTokenGarbageRejected(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	_, err := issuer.Parse("not.a.token")
	assert.Error(t, err)
}
