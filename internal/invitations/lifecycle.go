// Package invitations issues invitations and completes signups from them.
package invitations

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/pkg/email"
	"github.com/saas-onboarding/backend/pkg/utils"
)

// Outcome is the result of evaluating an invitation at a point in time.
type Outcome int

const (
	Valid Outcome = iota
	Expired
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	case Accepted:
		return "accepted"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Evaluate decides whether inv can still be accepted at now. Acceptance wins over expiry.
func Evaluate(now time.Time, inv *models.Invitation) Outcome {
	switch {
	case inv.Status == models.InvitationAccepted:
		return Accepted
	case inv.Status == models.InvitationExpired, now.After(inv.ExpiresAt):
		return Expired
	}
	return Valid
}

// Issuer creates invitations and the emails that deliver them.
type Issuer struct {
	domain string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer linking to the onboarding frontend at domain.
func NewIssuer(domain string, ttl time.Duration) *Issuer {
	return &Issuer{domain: domain, ttl: ttl, now: models.Now}
}

// WithClock overrides the time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// New builds a sent invitation with a fresh secret.
func (i *Issuer) New(tenantID, invitee string, admin bool) (*models.Invitation, error) {
	secret, err := utils.NewSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	now := i.now().UTC().Truncate(time.Millisecond)
	return &models.Invitation{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Invitee:     invitee,
		HashSecret:  secret,
		Status:      models.InvitationSent,
		IsUserAdmin: admin,
		SentAt:      now,
		ExpiresAt:   now.Add(i.ttl),
	}, nil
}

// Message builds the invitation email. The link carries a bcrypt hash of the secret.
func (i *Issuer) Message(inv *models.Invitation, tenantName string) (email.Message, error) {
	hash, err := utils.HashSecret(inv.HashSecret)
	if err != nil {
		return email.Message{}, fmt.Errorf("hash secret: %w", err)
	}
	link := SignupLink(i.domain, inv.Invitee, hash)
	return email.Message{
		To:      []string{inv.Invitee},
		Subject: fmt.Sprintf("Invitation for %s.", tenantName),
		Body: fmt.Sprintf("You've been invited to participate on %s. Please, click on the link %s and complete your sign-up process",
			tenantName, link),
	}, nil
}

// SignupLink is the frontend URL completing a signup.
func SignupLink(domain, invitee, hash string) string {
	q := url.Values{}
	q.Set("invitee", invitee)
	q.Set("hash", hash)
	return (&url.URL{Scheme: "https", Host: domain, Path: "/signup", RawQuery: q.Encode()}).String()
}
