package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager(JWTConfig{SecretKey: "test-secret"})
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken("svc-gateway", RoleService, []string{"acme", "globex"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "svc-gateway", claims.PrincipalID)
	assert.Equal(t, RoleService, claims.Role)
	assert.Equal(t, []string{"acme", "globex"}, claims.ClientAccess)
	assert.Equal(t, "agentmesh", claims.Issuer)
	assert.Equal(t, "svc-gateway", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenErrors(t *testing.T) {
	m := newTestManager()

	t.Run("garbage token", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager(JWTConfig{SecretKey: "other-secret"})
		token, err := other.GenerateToken("svc", RoleService, nil)
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		short := NewJWTManager(JWTConfig{
			SecretKey:      "test-secret",
			AccessDuration: time.Millisecond,
		})
		token, err := short.GenerateToken("svc", RoleService, nil)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		_, err = short.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestClaimsClientAccess(t *testing.T) {
	t.Run("explicit list", func(t *testing.T) {
		c := &Claims{ClientAccess: []string{"acme"}}
		assert.True(t, c.CanAccessClient("acme"))
		assert.False(t, c.CanAccessClient("globex"))
	})

	t.Run("wildcard grants everything", func(t *testing.T) {
		c := &Claims{ClientAccess: []string{"*"}}
		assert.True(t, c.CanAccessClient("acme"))
		assert.True(t, c.CanAccessClient("anything"))
	})

	t.Run("empty list denies everything", func(t *testing.T) {
		c := &Claims{}
		assert.False(t, c.CanAccessClient("acme"))
	})
}

func TestClaimsIsAdmin(t *testing.T) {
	assert.True(t, (&Claims{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Claims{Role: RoleOperator}).IsAdmin())
	assert.False(t, (&Claims{Role: RoleService}).IsAdmin())
}
