package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier("test-secret")
	signed := signToken(t, "test-secret", Claims{
		UserID: 42,
		Email:  "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	identity, err := v.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.UserID)
	assert.Equal(t, "a@example.com", identity.Email)
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewVerifier("test-secret")
	signed := signToken(t, "other-secret", Claims{UserID: 42})

	_, err := v.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")
	signed := signToken(t, "test-secret", Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := v.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyMissingUserID(t *testing.T) {
	v := NewVerifier("test-secret")
	signed := signToken(t, "test-secret", Claims{Email: "a@example.com"})

	_, err := v.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyGarbage(t *testing.T) {
	v := NewVerifier("test-secret")

	_, err := v.Verify("not-a-token")
	assert.Error(t, err)
}
