package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, method jwt.SigningMethod, secret []byte, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return tok
}

func TestVerify_ValidToken_ReturnsClaims(t *testing.T) {
	t.Parallel()

	secret := []byte("jwt-secret")
	tok := signToken(t, jwt.SigningMethodHS256, secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:        "a@example.com",
		UserMetadata: map[string]any{"name": "Alex"},
	})

	claims, err := NewTokenVerifier(string(secret)).Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "Alex", claims.Name())
}

func TestVerify_Expired_ReturnsErrTokenExpired(t *testing.T) {
	t.Parallel()

	secret := []byte("jwt-secret")
	tok := signToken(t, jwt.SigningMethodHS256, secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := NewTokenVerifier(string(secret)).Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecret_ReturnsError(t *testing.T) {
	t.Parallel()

	tok := signToken(t, jwt.SigningMethodHS256, []byte("right"), Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})

	_, err := NewTokenVerifier("wrong").Verify(tok)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("jwt-secret")
	tok := signToken(t, jwt.SigningMethodHS512, secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})

	_, err := NewTokenVerifier(string(secret)).Verify(tok)
	assert.Error(t, err)
}

func TestVerify_MissingSubject_ReturnsError(t *testing.T) {
	t.Parallel()

	secret := []byte("jwt-secret")
	tok := signToken(t, jwt.SigningMethodHS256, secret, Claims{})

	_, err := NewTokenVerifier(string(secret)).Verify(tok)
	assert.Error(t, err)
}

func TestVerify_NoSecret_ReturnsErrNotConfigured(t *testing.T) {
	t.Parallel()

	_, err := NewTokenVerifier("").Verify("anything")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
