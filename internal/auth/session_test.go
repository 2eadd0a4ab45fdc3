package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderSessions(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	_, err := HeaderSessions{}.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoSession)

	req.Header.Set(HeaderTenantID, "t1")
	req.Header.Set(HeaderUserID, "u1")
	s, err := HeaderSessions{}.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, &Session{TenantID: "t1", UserID: "u1"}, s)
}

func TestHMACSessions(t *testing.T) {
	sessions := NewHMACSessions("session-secret")
	raw, err := sessions.Issue("t1", "u1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid", "Bearer " + raw, true},
		{"lowercase scheme", "bearer " + raw, true},
		{"missing", "", false},
		{"wrong scheme", "Basic " + raw, false},
		{"tampered", "Bearer " + raw + "x", false},
		{"other secret", "Bearer " + mustSession(t, NewHMACSessions("other"), time.Hour), false},
		{"expired", "Bearer " + mustSession(t, sessions, -time.Minute), false},
		{"no expiry", "Bearer " + noExpirySession(t, "session-secret"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			s, err := sessions.Verify(context.Background(), req)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrNoSession)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "t1", s.TenantID)
			assert.Equal(t, "u1", s.UserID)
		})
	}
}

func noExpirySession(t *testing.T, secret string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		TenantID: "t1",
		UserID:   "u1",
		TokenUse: "id",
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func mustSession(t *testing.T, s *HMACSessions, ttl time.Duration) string {
	t.Helper()
	raw, err := s.Issue("t1", "u1", ttl)
	require.NoError(t, err)
	return raw
}

func TestNewSessionVerifier(t *testing.T) {
	_, err := NewSessionVerifier(SessionModeCognito, "", "us-east-1", "")
	assert.Error(t, err)
	_, err = NewSessionVerifier(SessionModeHMAC, "", "", "")
	assert.Error(t, err)
	_, err = NewSessionVerifier("magic", "", "", "")
	assert.Error(t, err)

	v, err := NewSessionVerifier(SessionModeHeader, "", "", "")
	require.NoError(t, err)
	assert.IsType(t, HeaderSessions{}, v)
	v, err = NewSessionVerifier(SessionModeCognito, "", "us-east-1", "us-east-1_abc")
	require.NoError(t, err)
	assert.IsType(t, &CognitoSessions{}, v)
}
