package repository

import (
	"context"
	"fmt"

	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/pkg/dynamo"
)

type userItem struct {
	dynamo.Keys
	models.User
}

// UserRepository handles user persistence.
type UserRepository struct {
	table dynamo.Table
}

// NewUserRepository creates a user repository.
func NewUserRepository(table dynamo.Table) *UserRepository {
	return &UserRepository{table: table}
}

// GetByID returns a user of the tenant.
func (r *UserRepository) GetByID(ctx context.Context, tenantID, id string) (*models.User, error) {
	var item userItem
	found, err := r.table.Get(ctx, models.UserKey(tenantID, id), &item)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &item.User, nil
}

// GetByEmail returns a user with the email in any tenant. A non-empty userID narrows the
// lookup to that user.
func (r *UserRepository) GetByEmail(ctx context.Context, email, userID string) (*models.User, error) {
	prefix := "USER#"
	if userID != "" {
		prefix = "USER#" + userID + "#TENANT#"
	}
	var items []userItem
	err := r.table.Query(ctx, dynamo.Query{
		Index:     dynamo.IndexGSI2,
		Partition: models.UserEmailKey(email),
		Sort:      dynamo.BeginsWith(prefix),
		Limit:     1,
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0].User, nil
}

// GetByEmailInTenant returns the user with the email inside one tenant.
func (r *UserRepository) GetByEmailInTenant(ctx context.Context, email, tenantID string) (*models.User, error) {
	var items []userItem
	err := r.table.Query(ctx, dynamo.Query{
		Index:     dynamo.IndexGSI2,
		Partition: models.UserEmailKey(email),
		Sort:      dynamo.BeginsWith("USER#"),
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	for _, it := range items {
		if it.TenantID == tenantID {
			u := it.User
			return &u, nil
		}
	}
	return nil, nil
}

// ListByTenant returns every user of the tenant.
func (r *UserRepository) ListByTenant(ctx context.Context, tenantID string) ([]models.User, error) {
	var items []userItem
	err := r.table.Query(ctx, dynamo.Query{
		Partition: models.TenantPartitionOf(tenantID),
		Sort:      dynamo.BeginsWith("USER#"),
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]models.User, len(items))
	for i, it := range items {
		out[i] = it.User
	}
	return out, nil
}

// Put writes the full user record.
func (r *UserRepository) Put(ctx context.Context, user *models.User) error {
	if err := r.table.Put(ctx, userItem{Keys: user.Keys(), User: *user}); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// Update applies a partial update to an existing user.
func (r *UserRepository) Update(ctx context.Context, user *models.User, upd models.UserUpdate) error {
	if err := r.table.Update(ctx, models.UserKey(user.TenantID, user.ID), upd.Fields()); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes the user record.
func (r *UserRepository) Delete(ctx context.Context, user *models.User) error {
	if err := r.table.Delete(ctx, models.UserKey(user.TenantID, user.ID)); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
