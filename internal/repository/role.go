package repository

import (
	"context"
	"fmt"

	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/pkg/dynamo"
)

// RoleRepository handles role persistence.
type RoleRepository struct {
	table dynamo.Table
}

// NewRoleRepository creates a role repository.
func NewRoleRepository(table dynamo.Table) *RoleRepository {
	return &RoleRepository{table: table}
}

// GetByID returns a role of the tenant.
func (r *RoleRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Role, error) {
	var item roleItem
	found, err := r.table.Get(ctx, models.RoleKey(tenantID, id), &item)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &item.Role, nil
}

// GetByScope returns the admin role of the tenant when admin is true, the member role otherwise.
func (r *RoleRepository) GetByScope(ctx context.Context, tenantID string, admin bool) (*models.Role, error) {
	var items []roleItem
	err := r.table.Query(ctx, dynamo.Query{
		Index:     dynamo.IndexGSI2,
		Partition: models.TenantPartitionOf(tenantID),
		Sort:      dynamo.Equal(models.RoleScopeKey(admin)),
		Limit:     1,
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("get role by scope: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0].Role, nil
}

// ListByTenant returns every role of the tenant.
func (r *RoleRepository) ListByTenant(ctx context.Context, tenantID string) ([]models.Role, error) {
	var items []roleItem
	err := r.table.Query(ctx, dynamo.Query{
		Partition: models.TenantPartitionOf(tenantID),
		Sort:      dynamo.BeginsWith("ROLE#"),
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := make([]models.Role, len(items))
	for i, it := range items {
		out[i] = it.Role
	}
	return out, nil
}

// Put writes the full role record.
func (r *RoleRepository) Put(ctx context.Context, role *models.Role) error {
	if err := r.table.Put(ctx, roleItem{Keys: role.Keys(), Role: *role}); err != nil {
		return fmt.Errorf("put role: %w", err)
	}
	return nil
}

// Delete removes the role record.
func (r *RoleRepository) Delete(ctx context.Context, role *models.Role) error {
	if err := r.table.Delete(ctx, models.RoleKey(role.TenantID, role.ID)); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}
