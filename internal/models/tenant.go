package models

import (
	"fmt"
	"time"

	"github.com/saas-onboarding/backend/pkg/dynamo"
)

// TimeLayout is how timestamps are rendered inside keys so they sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Now returns the current time truncated to what survives a round trip through the store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Tier is the subscription tier of a tenant.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStandard, TierPremium:
		return true
	}
	return false
}

// ParseTier converts s into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Tenant is an isolated customer organization.
type Tenant struct {
	ID         string    `json:"id" dynamodbav:"id"`
	AdminEmail string    `json:"adminEmail" dynamodbav:"adminEmail"`
	SubDomain  string    `json:"subDomain" dynamodbav:"subDomain"`
	Name       string    `json:"name" dynamodbav:"name"`
	Tier       Tier      `json:"tier" dynamodbav:"tier"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// TenantPartition groups every tenant under one partition.
const TenantPartition = "TENANT"

// TenantKey is the primary key of a tenant.
func TenantKey(id string) dynamo.Key {
	return dynamo.Key{PK: TenantPartition, SK: "TENANT#" + id}
}

// TenantSubDomainKey is the GSI2 partition used to look a tenant up by subdomain.
func TenantSubDomainKey(subDomain string) string {
	return "TENANT#SUBDOMAIN#" + subDomain
}

// TenantNameKey is the GSI2 sort key of a tenant.
func TenantNameKey(name string) string {
	return "TENANT#" + name
}

// Keys derives the stored key attributes.
func (t Tenant) Keys() dynamo.Keys {
	k := TenantKey(t.ID)
	return dynamo.Keys{
		PK:     k.PK,
		SK:     k.SK,
		GSI2PK: TenantSubDomainKey(t.SubDomain),
		GSI2SK: TenantNameKey(t.Name),
	}
}

// TenantUpdate carries the optional fields of a partial tenant update.
type TenantUpdate struct {
	Name       *string
	Tier       *Tier
	AdminEmail *string
}

// Fields returns the attributes to set. Renaming also moves the GSI2 sort key.
func (u TenantUpdate) Fields() map[string]any {
	fields := make(map[string]any)
	if u.Name != nil {
		fields["name"] = *u.Name
		fields[dynamo.AttrGSI2SK] = TenantNameKey(*u.Name)
	}
	if u.Tier != nil {
		fields["tier"] = string(*u.Tier)
	}
	if u.AdminEmail != nil {
		fields["adminEmail"] = *u.AdminEmail
	}
	return fields
}

// SubDomainReservation makes a subdomain unique across tenants. It is written in the same
// transaction as the tenant and only if no reservation exists yet.
type SubDomainReservation struct {
	SubDomain string `dynamodbav:"subDomain"`
	TenantID  string `dynamodbav:"tenantId"`
}

// SubDomainKey is the primary key of a reservation.
func SubDomainKey(subDomain string) dynamo.Key {
	k := "SUBDOMAIN#" + subDomain
	return dynamo.Key{PK: k, SK: k}
}

// Keys derives the stored key attributes.
func (r SubDomainReservation) Keys() dynamo.Keys {
	k := SubDomainKey(r.SubDomain)
	return dynamo.Keys{PK: k.PK, SK: k.SK}
}
