package repository

import "github.com/saas-onboarding/backend/pkg/dynamo"

// Repositories bundles the entity repositories sharing one table.
type Repositories struct {
	Tenants     *TenantRepository
	Users       *UserRepository
	Roles       *RoleRepository
	Invitations *InvitationRepository
}

// New creates every repository on table.
func New(table dynamo.Table) *Repositories {
	return &Repositories{
		Tenants:     NewTenantRepository(table),
		Users:       NewUserRepository(table),
		Roles:       NewRoleRepository(table),
		Invitations: NewInvitationRepository(table),
	}
}
