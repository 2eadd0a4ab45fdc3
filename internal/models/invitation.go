package models

import (
	"fmt"
	"time"

	"github.com/saas-onboarding/backend/pkg/dynamo"
)

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationSent     InvitationStatus = "sent"
	InvitationExpired  InvitationStatus = "expired"
	InvitationAccepted InvitationStatus = "accepted"
)

// Valid reports whether s is one of the known states.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationSent, InvitationExpired, InvitationAccepted:
		return true
	}
	return false
}

// ParseInvitationStatus converts s into an InvitationStatus.
func ParseInvitationStatus(s string) (InvitationStatus, error) {
	st := InvitationStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown invitation status %q", s)
	}
	return st, nil
}

// Invitation is a time-boxed offer for an email address to join a tenant.
// HashSecret holds the raw secret; only its bcrypt hash ever leaves the service.
type Invitation struct {
	ID          string           `json:"id" dynamodbav:"id"`
	TenantID    string           `json:"tenantId" dynamodbav:"tenantId"`
	Invitee     string           `json:"invitee" dynamodbav:"invitee"`
	HashSecret  string           `json:"-" dynamodbav:"hashSecret"`
	Status      InvitationStatus `json:"status" dynamodbav:"status"`
	IsUserAdmin bool             `json:"isUserAdmin" dynamodbav:"isUserAdmin"`
	SentAt      time.Time        `json:"sentAt" dynamodbav:"sentAt"`
	ExpiresAt   time.Time        `json:"expiresAt" dynamodbav:"expiresAt"`
}

// InvitationKey is the primary key of an invitation.
func InvitationKey(id string) dynamo.Key {
	k := "INVITATION#" + id
	return dynamo.Key{PK: k, SK: k}
}

// InvitationEmailKey is the GSI2 partition used to find invitations by invitee.
func InvitationEmailKey(invitee string) string {
	return "INVITATION#EMAIL#" + invitee
}

// InvitationTenantKey is the GSI2 sort key of an invitation. With an empty tenant id it is
// the prefix shared by every invitation.
func InvitationTenantKey(tenantID string) string {
	return "INVITATION#TENANT#" + tenantID
}

// InvitationStatusKey is the GSI3 partition grouping invitations by state.
func InvitationStatusKey(status InvitationStatus) string {
	return "INVITATION#STATUS#" + string(status)
}

// InvitationExpiryKey is the GSI3 sort key; invitations sort by expiry.
func InvitationExpiryKey(expiresAt time.Time, id string) string {
	return FormatTime(expiresAt) + "#" + id
}

// Keys derives the stored key attributes.
func (i Invitation) Keys() dynamo.Keys {
	k := InvitationKey(i.ID)
	return dynamo.Keys{
		PK:     k.PK,
		SK:     k.SK,
		GSI2PK: InvitationEmailKey(i.Invitee),
		GSI2SK: InvitationTenantKey(i.TenantID),
		GSI3PK: InvitationStatusKey(i.Status),
		GSI3SK: InvitationExpiryKey(i.ExpiresAt, i.ID),
	}
}

// StatusFields returns the attributes moved by a status transition.
func StatusFields(status InvitationStatus) map[string]any {
	return map[string]any{
		"status":          string(status),
		dynamo.AttrGSI3PK: InvitationStatusKey(status),
	}
}
