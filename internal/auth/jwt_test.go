package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokens_RoundTrip(t *testing.T) {
	tokens := NewResetTokens("secret", 5*time.Hour)
	raw, err := tokens.Issue("acme", "admin@acme.io")
	require.NoError(t, err)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.SubDomain)
	assert.Equal(t, "admin@acme.io", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestResetTokens_Expiry(t *testing.T) {
	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewResetTokens("secret", 5*time.Hour).WithClock(func() time.Time { return issued })
	raw, err := issuer.Issue("acme", "admin@acme.io")
	require.NoError(t, err)

	within := NewResetTokens("secret", 5*time.Hour).WithClock(func() time.Time { return issued.Add(4 * time.Hour) })
	_, err = within.Verify(raw)
	assert.NoError(t, err)

	after := NewResetTokens("secret", 5*time.Hour).WithClock(func() time.Time { return issued.Add(5*time.Hour + time.Second) })
	_, err = after.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestResetTokens_Invalid(t *testing.T) {
	tokens := NewResetTokens("secret", time.Hour)
	raw, err := tokens.Issue("acme", "admin@acme.io")
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, ResetClaims{SubDomain: "acme", Email: "a@acme.io"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	noEmail, err := NewResetTokens("secret", time.Hour).Issue("acme", "")
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not-a-token",
		"other secret":   mustIssue(t, NewResetTokens("other", time.Hour)),
		"tampered":       raw[:strings.LastIndex(raw, ".")+1] + "AAAA",
		"no expiry":      noExp,
		"missing claims": noEmail,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func mustIssue(t *testing.T, tokens *ResetTokens) string {
	t.Helper()
	raw, err := tokens.Issue("acme", "admin@acme.io")
	require.NoError(t, err)
	return raw
}
