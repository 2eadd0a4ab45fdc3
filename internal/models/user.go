package models

import (
	"fmt"
	"time"

	"github.com/saas-onboarding/backend/pkg/dynamo"
)

// Scope is the permission class of a role.
type Scope string

const (
	ScopeRoot   Scope = "root"
	ScopeAdmin  Scope = "admin"
	ScopeMember Scope = "member"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeRoot, ScopeAdmin, ScopeMember:
		return true
	}
	return false
}

// ParseScope converts s into a Scope.
func ParseScope(s string) (Scope, error) {
	sc := Scope(s)
	if !sc.Valid() {
		return "", fmt.Errorf("unknown scope %q", s)
	}
	return sc, nil
}

// Names of the two roles every tenant is registered with.
const (
	AdminRoleName  = "ADMIN_ROLE"
	MemberRoleName = "MEMBER_ROLE"
)

// Role represents a permission class inside a tenant.
type Role struct {
	ID       string `json:"id" dynamodbav:"id"`
	TenantID string `json:"tenantId" dynamodbav:"tenantId"`
	Name     string `json:"name" dynamodbav:"name"`
	Scope    Scope  `json:"scope" dynamodbav:"scope"`
}

// RoleKey is the primary key of a role.
func RoleKey(tenantID, id string) dynamo.Key {
	return dynamo.Key{PK: TenantPartitionOf(tenantID), SK: "ROLE#" + id}
}

// RoleScopeKey is the GSI2 sort key selecting the admin or the member role of a tenant.
// Anything that is not admin-scoped files under member.
func RoleScopeKey(admin bool) string {
	if admin {
		return "ROLE#SCOPE#ADMIN"
	}
	return "ROLE#SCOPE#MEMBER"
}

// Keys derives the stored key attributes.
func (r Role) Keys() dynamo.Keys {
	k := RoleKey(r.TenantID, r.ID)
	return dynamo.Keys{
		PK:     k.PK,
		SK:     k.SK,
		GSI2PK: TenantPartitionOf(r.TenantID),
		GSI2SK: RoleScopeKey(r.Scope == ScopeAdmin),
	}
}

// TenantPartitionOf is the partition holding a tenant's users and roles.
func TenantPartitionOf(tenantID string) string {
	return "TENANT#" + tenantID
}

// User represents a member of a tenant.
type User struct {
	ID            string    `json:"id" dynamodbav:"id"`
	TenantID      string    `json:"tenantId" dynamodbav:"tenantId"`
	RoleID        string    `json:"roleId" dynamodbav:"roleId"`
	GivenName     string    `json:"givenName" dynamodbav:"givenName"`
	FamilyName    string    `json:"familyName" dynamodbav:"familyName"`
	Email         string    `json:"email" dynamodbav:"email"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"createdAt"`
	ResetPassword bool      `json:"resetPassword" dynamodbav:"resetPassword"`
}

// UserKey is the primary key of a user.
func UserKey(tenantID, id string) dynamo.Key {
	return dynamo.Key{PK: TenantPartitionOf(tenantID), SK: "USER#" + id}
}

// UserEmailKey is the GSI2 partition used for cross-tenant lookup by email.
func UserEmailKey(email string) string {
	return "USER#EMAIL#" + email
}

// UserTenantKey is the GSI2 sort key of a user.
func UserTenantKey(id, tenantID string) string {
	return "USER#" + id + "#TENANT#" + tenantID
}

// Keys derives the stored key attributes.
func (u User) Keys() dynamo.Keys {
	k := UserKey(u.TenantID, u.ID)
	return dynamo.Keys{
		PK:     k.PK,
		SK:     k.SK,
		GSI2PK: UserEmailKey(u.Email),
		GSI2SK: UserTenantKey(u.ID, u.TenantID),
	}
}

// UserUpdate carries the optional fields of a partial user update.
type UserUpdate struct {
	GivenName     *string
	FamilyName    *string
	Email         *string
	RoleID        *string
	ResetPassword *bool
}

// Fields returns the attributes to set. A new email also moves the GSI2 partition.
func (u UserUpdate) Fields() map[string]any {
	fields := make(map[string]any)
	if u.GivenName != nil {
		fields["givenName"] = *u.GivenName
	}
	if u.FamilyName != nil {
		fields["familyName"] = *u.FamilyName
	}
	if u.Email != nil {
		fields["email"] = *u.Email
		fields[dynamo.AttrGSI2PK] = UserEmailKey(*u.Email)
	}
	if u.RoleID != nil {
		fields["roleId"] = *u.RoleID
	}
	if u.ResetPassword != nil {
		fields["resetPassword"] = *u.ResetPassword
	}
	return fields
}
