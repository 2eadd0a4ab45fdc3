package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/pkg/dynamo"
)

// ErrInvitationChanged is returned by UpdateStatus when another writer moved or removed the invitation.
var ErrInvitationChanged = errors.New("invitation status changed")

// InvitationRepository handles invitation persistence.
type InvitationRepository struct {
	table dynamo.Table
}

// NewInvitationRepository creates an invitation repository.
func NewInvitationRepository(table dynamo.Table) *InvitationRepository {
	return &InvitationRepository{table: table}
}

// GetByID returns an invitation by ID.
func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	var item invitationItem
	found, err := r.table.Get(ctx, models.InvitationKey(id), &item)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &item.Invitation, nil
}

// GetByEmail returns an invitation for the invitee. An empty tenantID matches any tenant.
func (r *InvitationRepository) GetByEmail(ctx context.Context, invitee, tenantID string) (*models.Invitation, error) {
	var items []invitationItem
	err := r.table.Query(ctx, dynamo.Query{
		Index:     dynamo.IndexGSI2,
		Partition: models.InvitationEmailKey(invitee),
		Sort:      dynamo.BeginsWith(models.InvitationTenantKey(tenantID)),
		Limit:     1,
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("get invitation by email: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0].Invitation, nil
}

// ListByEmail returns every invitation for the invitee across tenants.
func (r *InvitationRepository) ListByEmail(ctx context.Context, invitee string) ([]models.Invitation, error) {
	var items []invitationItem
	err := r.table.Query(ctx, dynamo.Query{
		Index:     dynamo.IndexGSI2,
		Partition: models.InvitationEmailKey(invitee),
		Sort:      dynamo.BeginsWith(models.InvitationTenantKey("")),
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("list invitations by email: %w", err)
	}
	out := make([]models.Invitation, len(items))
	for i, it := range items {
		out[i] = it.Invitation
	}
	return out, nil
}

// Put writes the full invitation record.
func (r *InvitationRepository) Put(ctx context.Context, inv *models.Invitation) error {
	if err := r.table.Put(ctx, invitationItem{Keys: inv.Keys(), Invitation: *inv}); err != nil {
		return fmt.Errorf("put invitation: %w", err)
	}
	return nil
}

// UpdateStatus moves the invitation from one status to another. ErrInvitationChanged means
// the invitation is gone or no longer in the from status.
func (r *InvitationRepository) UpdateStatus(ctx context.Context, id string, from, to models.InvitationStatus) error {
	err := r.table.UpdateIf(ctx, models.InvitationKey(id),
		map[string]any{"status": string(from)},
		models.StatusFields(to),
	)
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return ErrInvitationChanged
	}
	if err != nil {
		return fmt.Errorf("update invitation status: %w", err)
	}
	return nil
}

// Delete removes the invitation record.
func (r *InvitationRepository) Delete(ctx context.Context, inv *models.Invitation) error {
	if err := r.table.Delete(ctx, models.InvitationKey(inv.ID)); err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return nil
}

// ListExpiredSent returns up to limit invitations still marked sent whose expiry is before now,
// oldest first.
func (r *InvitationRepository) ListExpiredSent(ctx context.Context, now time.Time, limit int32) ([]models.Invitation, error) {
	var items []invitationItem
	err := r.table.Query(ctx, dynamo.Query{
		Index:     dynamo.IndexGSI3,
		Partition: models.InvitationStatusKey(models.InvitationSent),
		Sort:      dynamo.LessThan(models.FormatTime(now)),
		Limit:     limit,
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("list expired invitations: %w", err)
	}
	out := make([]models.Invitation, len(items))
	for i, it := range items {
		out[i] = it.Invitation
	}
	return out, nil
}
