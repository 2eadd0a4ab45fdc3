package invitations

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/pkg/utils"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		status  models.InvitationStatus
		expires time.Time
		want    Outcome
	}{
		{"sent and fresh", models.InvitationSent, now.Add(time.Hour), Valid},
		{"sent at expiry instant", models.InvitationSent, now, Valid},
		{"sent and past expiry", models.InvitationSent, now.Add(-time.Second), Expired},
		{"already expired", models.InvitationExpired, now.Add(time.Hour), Expired},
		{"accepted", models.InvitationAccepted, now.Add(time.Hour), Accepted},
		{"accepted wins over expiry", models.InvitationAccepted, now.Add(-time.Hour), Accepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &models.Invitation{Status: tt.status, ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, Evaluate(now, inv))
		})
	}
	assert.Equal(t, "expired", Expired.String())
}

func TestIssuer(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewIssuer("app.example.com", 24*time.Hour).WithClock(func() time.Time { return now })

	inv, err := issuer.New("t1", "dev@acme.io", true)
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, models.InvitationSent, inv.Status)
	assert.True(t, inv.IsUserAdmin)
	assert.Equal(t, now, inv.SentAt)
	assert.Equal(t, now.Add(24*time.Hour), inv.ExpiresAt)
	assert.NotEmpty(t, inv.HashSecret)

	other, err := issuer.New("t1", "dev@acme.io", false)
	require.NoError(t, err)
	assert.NotEqual(t, inv.HashSecret, other.HashSecret)

	msg, err := issuer.Message(inv, "Acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev@acme.io"}, msg.To)
	assert.Equal(t, "Invitation for Acme.", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Body, "You've been invited to participate on Acme. Please, click on the link https://app.example.com/signup?"))
	assert.NotContains(t, msg.Body, inv.HashSecret)

	var link string
	for _, f := range strings.Fields(msg.Body) {
		if strings.HasPrefix(f, "https://") {
			link = f
		}
	}
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "dev@acme.io", u.Query().Get("invitee"))
	assert.True(t, utils.CheckSecret(inv.HashSecret, u.Query().Get("hash")))
	assert.False(t, utils.CheckSecret(other.HashSecret, u.Query().Get("hash")))
}

func TestSignupLinkEscapes(t *testing.T) {
	link := SignupLink("app.example.com", "a+b@acme.io", "$2a$10$x/y.z")
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/signup", u.Path)
	assert.Equal(t, "a+b@acme.io", u.Query().Get("invitee"))
	assert.Equal(t, "$2a$10$x/y.z", u.Query().Get("hash"))
}
