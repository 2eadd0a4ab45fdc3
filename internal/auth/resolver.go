package auth

import (
	"context"

	"github.com/saas-onboarding/backend/internal/apperrors"
	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/internal/repository"
)

var (
	ErrRequesterNotFound = apperrors.NotFound("User")
	ErrRoleNotFound      = apperrors.NotFound("Role")
)

// Requester is the authenticated user of a request together with its role.
type Requester struct {
	User *models.User
	Role *models.Role
}

// Resolver loads the requester once per request.
type Resolver struct {
	users *repository.UserRepository
	roles *repository.RoleRepository
}

// NewResolver creates a requester resolver.
func NewResolver(users *repository.UserRepository, roles *repository.RoleRepository) *Resolver {
	return &Resolver{users: users, roles: roles}
}

// Resolve fetches the session's user and then the user's role.
func (r *Resolver) Resolve(ctx context.Context, s *Session) (*Requester, error) {
	user, err := r.users.GetByID(ctx, s.TenantID, s.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrRequesterNotFound
	}
	role, err := r.roles.GetByID(ctx, user.TenantID, user.RoleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return &Requester{User: user, Role: role}, nil
}

// IsAdmin reports whether the requester's role is admin-scoped.
func IsAdmin(r *Requester) bool {
	return r != nil && r.Role != nil && r.Role.Scope == models.ScopeAdmin
}

// OwnsTenant reports whether the requester belongs to the tenant.
func OwnsTenant(r *Requester, tenantID string) bool {
	return r != nil && r.User != nil && r.User.TenantID == tenantID
}

// IsRegisteringAdmin reports whether email is the address the tenant was registered with.
func IsRegisteringAdmin(email string, tenant *models.Tenant) bool {
	return tenant != nil && email != "" && tenant.AdminEmail == email
}
