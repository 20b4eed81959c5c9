package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHS256RoundTrip(t *testing.T) {
	now := time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
	claims := Claims{
		Sub:     "7",
		Session: "sess-1",
		Role:    "professional",
		Iat:     now.Unix(),
		Exp:     now.Add(time.Hour).Unix(),
	}

	token, err := SignHS256(claims, "test-secret")
	require.NoError(t, err)

	parsed, err := ParseAndVerifyHS256(token, "test-secret", now)
	require.NoError(t, err)
	assert.Equal(t, claims, *parsed)

	_, err = ParseAndVerifyHS256(token, "wrong-secret", now)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAndVerifyHS256(token, "test-secret", now.Add(2*time.Hour))
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseAndVerify_RejectsTamperedPayload(t *testing.T) {
	now := time.Now()
	token, err := SignHS256(Claims{Sub: "7", Role: "professional"}, "s")
	require.NoError(t, err)

	forged, err := SignHS256(Claims{Sub: "7", Role: "super_admin"}, "s")
	require.NoError(t, err)
	parts := strings.Split(token, ".")
	forgedParts := strings.Split(forged, ".")

	_, err = ParseAndVerifyHS256(parts[0]+"."+forgedParts[1]+"."+parts[2], "s", now)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAndVerifyHS256("not-a-token", "s", now)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer(t *testing.T) {
	_, err := NewIssuer("short", time.Hour)
	require.Error(t, err)

	iss, err := NewIssuer("0123456789abcdef", time.Hour)
	require.NoError(t, err)

	now := time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
	tok, exp, err := iss.Issue("sess-1", "admin-1", "admin", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := iss.Verify(tok, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.Session)
	assert.Equal(t, "admin-1", claims.Sub)
	assert.Equal(t, "admin", claims.Role)
}
