// Package repository persists tenants, users, roles and invitations in the single table.
// Lookups that miss return a nil entity and a nil error.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/pkg/dynamo"
)

// ErrSubDomainTaken is returned by Register when the subdomain reservation already exists.
var ErrSubDomainTaken = errors.New("subdomain already reserved")

type tenantItem struct {
	dynamo.Keys
	models.Tenant
}

type reservationItem struct {
	dynamo.Keys
	models.SubDomainReservation
}

type roleItem struct {
	dynamo.Keys
	models.Role
}

type invitationItem struct {
	dynamo.Keys
	models.Invitation
}

// TenantRepository handles tenant persistence.
type TenantRepository struct {
	table dynamo.Table
}

// NewTenantRepository creates a tenant repository.
func NewTenantRepository(table dynamo.Table) *TenantRepository {
	return &TenantRepository{table: table}
}

// GetByID returns a tenant by ID.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	var item tenantItem
	found, err := r.table.Get(ctx, models.TenantKey(id), &item)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &item.Tenant, nil
}

// GetBySubDomain returns the tenant registered with the subdomain.
func (r *TenantRepository) GetBySubDomain(ctx context.Context, subDomain string) (*models.Tenant, error) {
	var items []tenantItem
	err := r.table.Query(ctx, dynamo.Query{
		Index:     dynamo.IndexGSI2,
		Partition: models.TenantSubDomainKey(subDomain),
		Sort:      dynamo.BeginsWith("TENANT#"),
		Limit:     1,
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("get tenant by subdomain: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0].Tenant, nil
}

// List returns every tenant.
func (r *TenantRepository) List(ctx context.Context) ([]models.Tenant, error) {
	var items []tenantItem
	err := r.table.Query(ctx, dynamo.Query{
		Partition: models.TenantPartition,
		Sort:      dynamo.BeginsWith("TENANT#"),
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	out := make([]models.Tenant, len(items))
	for i, it := range items {
		out[i] = it.Tenant
	}
	return out, nil
}

// Register writes the tenant, its roles, the first invitation and the subdomain reservation
// in one transaction. ErrSubDomainTaken means another tenant holds the subdomain.
func (r *TenantRepository) Register(ctx context.Context, tenant *models.Tenant, roles []models.Role, inv *models.Invitation) error {
	reservation := models.SubDomainReservation{SubDomain: tenant.SubDomain, TenantID: tenant.ID}
	items := []dynamo.TransactItem{
		{Item: tenantItem{Keys: tenant.Keys(), Tenant: *tenant}},
		{Item: reservationItem{Keys: reservation.Keys(), SubDomainReservation: reservation}, MustNotExist: true},
		{Item: invitationItem{Keys: inv.Keys(), Invitation: *inv}},
	}
	for _, role := range roles {
		items = append(items, dynamo.TransactItem{Item: roleItem{Keys: role.Keys(), Role: role}})
	}
	if err := r.table.TransactPut(ctx, items...); err != nil {
		if errors.Is(err, dynamo.ErrConditionFailed) {
			return ErrSubDomainTaken
		}
		return fmt.Errorf("register tenant: %w", err)
	}
	return nil
}

// Update applies a partial update to an existing tenant.
func (r *TenantRepository) Update(ctx context.Context, id string, upd models.TenantUpdate) error {
	if err := r.table.Update(ctx, models.TenantKey(id), upd.Fields()); err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	return nil
}

// Delete removes the tenant record and releases its subdomain.
func (r *TenantRepository) Delete(ctx context.Context, tenant *models.Tenant) error {
	if err := r.table.Delete(ctx, models.TenantKey(tenant.ID)); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if err := r.table.Delete(ctx, models.SubDomainKey(tenant.SubDomain)); err != nil {
		return fmt.Errorf("release subdomain: %w", err)
	}
	return nil
}
