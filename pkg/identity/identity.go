// Package identity manages sign-in accounts in the identity provider.
package identity

import (
	"context"
	"errors"
)

// Attribute names stored on every account.
const (
	AttrEmail         = "email"
	AttrEmailVerified = "email_verified"
	AttrUserID        = "custom:userId"
	AttrTenantID      = "custom:tenantId"
)

// ErrAccountNotFound is returned when no account has the given username.
var ErrAccountNotFound = errors.New("identity: account not found")

// ErrAccountExists is returned when an account with the same username is already registered.
var ErrAccountExists = errors.New("identity: account already exists")

// Account is a sign-in account. The email doubles as the username.
type Account struct {
	Email    string
	UserID   string
	TenantID string
}

// Provider creates and maintains accounts.
type Provider interface {
	CreateUser(ctx context.Context, acc Account) error
	DeleteUser(ctx context.Context, email string) error
	UpdateEmail(ctx context.Context, oldEmail, newEmail string) error
	SetPassword(ctx context.Context, email, password string) error
	ListUsers(ctx context.Context) ([]Account, error)
}

// TenantAccounts filters accounts down to one tenant.
func TenantAccounts(accounts []Account, tenantID string) []Account {
	var out []Account
	for _, a := range accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out
}
