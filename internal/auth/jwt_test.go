package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthlog/healthlog/internal/config"
)

func testJWTService() *JWTService {
	return NewJWTService(config.AuthConfig{
		JWTSecret:    "test-secret-do-not-use",
		AccessExpiry: time.Hour,
	})
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := testJWTService()

	token, expiresAt, err := svc.GenerateAccessToken(42, "user@example.com", "USER")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "USER", claims.Role)
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	token, _, err := testJWTService().GenerateAccessToken(42, "user@example.com", "USER")
	require.NoError(t, err)

	other := NewJWTService(config.AuthConfig{
		JWTSecret:    "a-different-secret",
		AccessExpiry: time.Hour,
	})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	svc := NewJWTService(config.AuthConfig{
		JWTSecret:    "test-secret-do-not-use",
		AccessExpiry: -time.Minute,
	})

	token, _, err := svc.GenerateAccessToken(42, "user@example.com", "USER")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	_, err := testJWTService().ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22-but-longer")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22-but-longer", hash)

	assert.True(t, CheckPassword("hunter22-but-longer", hash))
	assert.False(t, CheckPassword("wrong-password", hash))
}
