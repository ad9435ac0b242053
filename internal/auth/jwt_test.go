package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(now time.Time) *JWTAuthenticator {
	return NewJWTAuthenticator("test-secret", "roadtrip", "roadtrip", 7*24*time.Hour).
		WithClock(func() time.Time { return now })
}

func TestGenerateAndValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(now)

	token, err := a.GenerateToken("user-1")
	require.NoError(t, err)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, now.Add(7*24*time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateWithinValidityWindow(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := newTestAuthenticator(issued).GenerateToken("user-1")
	require.NoError(t, err)

	_, err = newTestAuthenticator(issued.Add(6 * 24 * time.Hour)).ValidateToken(token)
	assert.NoError(t, err)

	_, err = newTestAuthenticator(issued.Add(8 * 24 * time.Hour)).ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRejects(t *testing.T) {
	now := time.Now()
	a := newTestAuthenticator(now)

	other := NewJWTAuthenticator("other-secret", "roadtrip", "roadtrip", time.Hour)
	foreign, err := other.GenerateToken("user-1")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "exp": now.Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrTokenMissing},
		{"blank", "   ", ErrTokenMissing},
		{"garbage", "not-a-token", ErrTokenInvalid},
		{"wrong secret", foreign, ErrTokenInvalid},
		{"alg none", unsigned, ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerateRequiresUser(t *testing.T) {
	_, err := newTestAuthenticator(time.Now()).GenerateToken("")
	assert.Error(t, err)
}
