package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saas-onboarding/backend/pkg/dynamo"
)

func TestParseTier(t *testing.T) {
	for _, s := range []string{"free", "standard", "premium"} {
		tier, err := ParseTier(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(tier))
	}
	_, err := ParseTier("gold")
	assert.Error(t, err)
}

func TestParseStatusAndScope(t *testing.T) {
	st, err := ParseInvitationStatus("accepted")
	require.NoError(t, err)
	assert.Equal(t, InvitationAccepted, st)
	_, err = ParseInvitationStatus("pending")
	assert.Error(t, err)

	sc, err := ParseScope("admin")
	require.NoError(t, err)
	assert.Equal(t, ScopeAdmin, sc)
	_, err = ParseScope("owner")
	assert.Error(t, err)
}

func TestFormatTimeSortsLexically(t *testing.T) {
	early := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("x", 3600))
	later := early.Add(time.Millisecond)
	assert.Equal(t, "2024-01-02T02:04:05.006Z", FormatTime(early))
	assert.Less(t, FormatTime(early), FormatTime(later))
}

func TestKeys(t *testing.T) {
	tenant := Tenant{ID: "t1", SubDomain: "acme", Name: "Acme"}
	assert.Equal(t, dynamo.Keys{
		PK: "TENANT", SK: "TENANT#t1",
		GSI2PK: "TENANT#SUBDOMAIN#acme", GSI2SK: "TENANT#Acme",
	}, tenant.Keys())

	user := User{ID: "u1", TenantID: "t1", Email: "a@b.io"}
	assert.Equal(t, dynamo.Keys{
		PK: "TENANT#t1", SK: "USER#u1",
		GSI2PK: "USER#EMAIL#a@b.io", GSI2SK: "USER#u1#TENANT#t1",
	}, user.Keys())

	admin := Role{ID: "r1", TenantID: "t1", Scope: ScopeAdmin}
	member := Role{ID: "r2", TenantID: "t1", Scope: ScopeMember}
	assert.Equal(t, "ROLE#SCOPE#ADMIN", admin.Keys().GSI2SK)
	assert.Equal(t, "ROLE#SCOPE#MEMBER", member.Keys().GSI2SK)
	assert.Equal(t, "TENANT#t1", admin.Keys().GSI2PK)

	expires := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	inv := Invitation{ID: "i1", TenantID: "t1", Invitee: "a@b.io", Status: InvitationSent, ExpiresAt: expires}
	k := inv.Keys()
	assert.Equal(t, "INVITATION#i1", k.PK)
	assert.Equal(t, k.PK, k.SK)
	assert.Equal(t, "INVITATION#EMAIL#a@b.io", k.GSI2PK)
	assert.Equal(t, "INVITATION#TENANT#t1", k.GSI2SK)
	assert.Equal(t, "INVITATION#STATUS#sent", k.GSI3PK)
	assert.Equal(t, "2024-05-01T00:00:00.000Z#i1", k.GSI3SK)

	res := SubDomainReservation{SubDomain: "acme", TenantID: "t1"}
	assert.Equal(t, "SUBDOMAIN#acme", res.Keys().PK)
	assert.Equal(t, res.Keys().PK, res.Keys().SK)
}

func TestUpdateFields(t *testing.T) {
	name := "Acme Corp"
	tier := TierPremium
	fields := TenantUpdate{Name: &name, Tier: &tier}.Fields()
	assert.Equal(t, map[string]any{
		"name":            "Acme Corp",
		dynamo.AttrGSI2SK: "TENANT#Acme Corp",
		"tier":            "premium",
	}, fields)

	addr := "new@b.io"
	reset := true
	fields = UserUpdate{Email: &addr, ResetPassword: &reset}.Fields()
	assert.Equal(t, map[string]any{
		"email":           "new@b.io",
		dynamo.AttrGSI2PK: "USER#EMAIL#new@b.io",
		"resetPassword":   true,
	}, fields)

	assert.Empty(t, UserUpdate{}.Fields())
	assert.Equal(t, "INVITATION#STATUS#expired", StatusFields(InvitationExpired)[dynamo.AttrGSI3PK])
}
