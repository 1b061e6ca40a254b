package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestCandidateTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	tok, err := svc.GenerateCandidateToken(42)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeCandidate, claims.TokenType)
	assert.Equal(t, 42, claims.UserID)
	assert.False(t, claims.Has(model.PermissionResultsRead))
}

func TestAdminTokenCarriesPermissions(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	tok, err := svc.GenerateAdminToken(1, []model.Permission{model.PermissionResultsRead})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAdmin, claims.TokenType)
	assert.True(t, claims.Has(model.PermissionResultsRead))
	assert.False(t, claims.Has(model.PermissionExamsMonitor))
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)
	other := NewAuthService("other", time.Hour)

	tok, err := other.GenerateCandidateToken(42)
	require.NoError(t, err)
	_, err = svc.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewAuthService("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err = expired.GenerateCandidateToken(42)
	require.NoError(t, err)
	_, err = svc.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
