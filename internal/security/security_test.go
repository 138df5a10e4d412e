package security_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours/api/internal/security"
)

const testSecret = "a-test-secret-that-is-long-enough-for-hs512"

func TestPassword(t *testing.T) {
	hash, err := security.HashPassword("pass1234")
	require.NoError(t, err)

	assert.NotEqual(t, "pass1234", string(hash))
	assert.True(t, security.VerifyPassword("pass1234", hash))
	assert.False(t, security.VerifyPassword("pass12345", hash))
	assert.False(t, security.VerifyPassword("pass1234", []byte("not-a-hash")))
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer := security.NewTokenIssuer(testSecret, 90*24*time.Hour, func() time.Time { return now })

	token, expires, err := issuer.Issue("u1", "guide")
	require.NoError(t, err)
	assert.Equal(t, now.Add(90*24*time.Hour), expires)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "guide", claims.Role)
	assert.Equal(t, now, claims.IssuedAt.Time.UTC())
}

func TestTokenIssuer_Rejects(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	issuer := security.NewTokenIssuer(testSecret, time.Hour, func() time.Time { return clock })
	token, _, err := issuer.Issue("u1", "user")
	require.NoError(t, err)

	other := security.NewTokenIssuer("another-secret-that-is-also-long-enough", time.Hour, func() time.Time { return now })
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, security.ErrInvalidToken)

	_, err = issuer.Parse(token + "x")
	assert.ErrorIs(t, err, security.ErrInvalidToken)

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = issuer.Parse(hs256)
	assert.ErrorIs(t, err, security.ErrInvalidToken)

	clock = now.Add(2 * time.Hour)
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, security.ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionValid(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, security.SessionValid(issued, nil))

	before := issued.Add(-time.Second)
	assert.True(t, security.SessionValid(issued, &before))

	sameSecond := issued.Add(300 * time.Millisecond)
	assert.False(t, security.SessionValid(issued, &sameSecond))

	after := issued.Add(time.Minute)
	assert.False(t, security.SessionValid(issued, &after))
}

func TestResetToken(t *testing.T) {
	plain, digest, err := security.GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, plain, 64)
	assert.Len(t, digest, 64)
	assert.NotEqual(t, plain, digest)
	assert.Equal(t, digest, security.DigestResetToken(plain))

	again, _, err := security.GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, plain, again)
}
