package tenants

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saas-onboarding/backend/internal/apperrors"
	"github.com/saas-onboarding/backend/internal/auth"
	"github.com/saas-onboarding/backend/internal/invitations"
	"github.com/saas-onboarding/backend/internal/middleware"
	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/internal/repository"
	"github.com/saas-onboarding/backend/internal/validation"
	"github.com/saas-onboarding/backend/pkg/email"
	"github.com/saas-onboarding/backend/pkg/identity"
	"github.com/saas-onboarding/backend/pkg/response"
	"github.com/saas-onboarding/backend/pkg/storage"
)

// deleteConcurrency bounds the cascade of deletes issued for one tenant.
const deleteConcurrency = 8

// Snapshot is what gets archived before a tenant is deleted.
type Snapshot struct {
	Tenant     models.Tenant `json:"tenant"`
	Users      []models.User `json:"users"`
	Roles      []models.Role `json:"roles"`
	ArchivedAt time.Time     `json:"archivedAt"`
}

// Handler handles tenant HTTP endpoints.
type Handler struct {
	repos    *repository.Repositories
	identity identity.Provider
	mailer   email.Sender
	issuer   *invitations.Issuer
	archive  storage.Archive
	logger   *zap.Logger
}

// NewHandler creates a tenants handler. archive may be nil, in which case deleted
// tenants are not archived.
func NewHandler(repos *repository.Repositories, idp identity.Provider, mailer email.Sender, issuer *invitations.Issuer, archive storage.Archive, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repos:    repos,
		identity: idp,
		mailer:   mailer,
		issuer:   issuer,
		archive:  archive,
		logger:   logger,
	}
}

func (h *Handler) internal(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	response.Internal(c)
}

// Register handles PUT /tenant. It creates the tenant with its two roles and invites
// the admin email as the tenant's first admin.
func (h *Handler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.RegisterTenantRequest
	if err := validation.BindJSON(c, &req, h.logger); err != nil {
		response.Error(c, err)
		return
	}
	subDomain := strings.ToLower(req.SubDomain)

	existing, err := h.repos.Tenants.GetBySubDomain(ctx, subDomain)
	if err != nil {
		h.internal(c, "lookup subdomain", err)
		return
	}
	if existing != nil {
		response.Error(c, &apperrors.AlreadyInUseError{Param: "Subdomain"})
		return
	}
	user, err := h.repos.Users.GetByEmail(ctx, req.AdminEmail, "")
	if err != nil {
		h.internal(c, "lookup admin email", err)
		return
	}
	if user != nil {
		response.Error(c, &apperrors.AlreadyInUseError{Param: "E-mail"})
		return
	}

	tenant := &models.Tenant{
		ID:         uuid.NewString(),
		AdminEmail: req.AdminEmail,
		SubDomain:  subDomain,
		Name:       req.Name,
		Tier:       models.Tier(req.Tier),
		CreatedAt:  models.Now(),
	}
	roles := []models.Role{
		{ID: uuid.NewString(), TenantID: tenant.ID, Name: models.AdminRoleName, Scope: models.ScopeAdmin},
		{ID: uuid.NewString(), TenantID: tenant.ID, Name: models.MemberRoleName, Scope: models.ScopeMember},
	}
	inv, err := h.issuer.New(tenant.ID, tenant.AdminEmail, true)
	if err != nil {
		h.internal(c, "create invitation", err)
		return
	}
	msg, err := h.issuer.Message(inv, tenant.Name)
	if err != nil {
		h.internal(c, "build invitation email", err)
		return
	}

	if err := h.repos.Tenants.Register(ctx, tenant, roles, inv); err != nil {
		if errors.Is(err, repository.ErrSubDomainTaken) {
			response.Error(c, &apperrors.AlreadyInUseError{Param: "Subdomain"})
			return
		}
		h.internal(c, "register tenant", err)
		return
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		h.internal(c, "send admin invitation", err)
		return
	}

	h.logger.Info("tenant registered",
		zap.String("tenant_id", tenant.ID),
		zap.String("sub_domain", tenant.SubDomain),
		zap.String("tier", string(tenant.Tier)),
	)
	response.Created(c)
}

// bindTarget binds the {id} path parameter and checks it names the requester's tenant.
func (h *Handler) bindTarget(c *gin.Context) (*auth.Requester, *models.Tenant, bool) {
	var path validation.PathID
	if err := validation.BindURI(c, &path, h.logger); err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	requester := middleware.RequesterFrom(c)
	if !auth.OwnsTenant(requester, path.ID) {
		response.Forbidden(c)
		return nil, nil, false
	}
	tenant, err := h.repos.Tenants.GetByID(c.Request.Context(), path.ID)
	if err != nil {
		h.internal(c, "load tenant", err)
		return nil, nil, false
	}
	if tenant == nil {
		response.NotFound(c, "Tenant not found")
		return nil, nil, false
	}
	return requester, tenant, true
}

// Load handles GET /admin/tenant/{id}.
func (h *Handler) Load(c *gin.Context) {
	_, tenant, ok := h.bindTarget(c)
	if !ok {
		return
	}
	response.OK(c, tenant)
}

// Update handles POST /admin/tenant/{id}. A new admin email must belong to a user of the tenant.
func (h *Handler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.UpdateTenantRequest
	if err := validation.BindJSON(c, &req, h.logger); err != nil {
		response.Error(c, err)
		return
	}
	_, tenant, ok := h.bindTarget(c)
	if !ok {
		return
	}

	if req.AdminEmail != nil {
		user, err := h.repos.Users.GetByEmailInTenant(ctx, *req.AdminEmail, tenant.ID)
		if err != nil {
			h.internal(c, "lookup admin email", err)
			return
		}
		if user == nil {
			response.Forbidden(c)
			return
		}
	}

	upd := models.TenantUpdate{Name: req.Name, AdminEmail: req.AdminEmail}
	if req.Tier != nil {
		tier := models.Tier(*req.Tier)
		upd.Tier = &tier
	}
	if len(upd.Fields()) == 0 {
		response.NoContent(c)
		return
	}
	if err := h.repos.Tenants.Update(ctx, tenant.ID, upd); err != nil {
		h.internal(c, "update tenant", err)
		return
	}
	h.logger.Info("tenant updated", zap.String("tenant_id", tenant.ID))
	response.NoContent(c)
}

// Delete handles DELETE /admin/tenant/{id}. Only the registering admin may delete a tenant.
// Users, roles, identity accounts and the subdomain reservation go with it.
func (h *Handler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	requester, tenant, ok := h.bindTarget(c)
	if !ok {
		return
	}
	if !auth.IsRegisteringAdmin(requester.User.Email, tenant) {
		response.Forbidden(c)
		return
	}

	users, err := h.repos.Users.ListByTenant(ctx, tenant.ID)
	if err != nil {
		h.internal(c, "list tenant users", err)
		return
	}
	roles, err := h.repos.Roles.ListByTenant(ctx, tenant.ID)
	if err != nil {
		h.internal(c, "list tenant roles", err)
		return
	}
	accounts, err := h.identity.ListUsers(ctx)
	if err != nil {
		h.internal(c, "list identity accounts", err)
		return
	}
	accounts = identity.TenantAccounts(accounts, tenant.ID)

	if h.archive != nil {
		key, err := h.archive.ArchiveTenant(ctx, tenant.ID, Snapshot{
			Tenant:     *tenant,
			Users:      users,
			Roles:      roles,
			ArchivedAt: models.Now(),
		})
		if err != nil {
			h.internal(c, "archive tenant", err)
			return
		}
		h.logger.Info("tenant archived", zap.String("tenant_id", tenant.ID), zap.String("key", key))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for i := range users {
		user := &users[i]
		g.Go(func() error { return h.repos.Users.Delete(gctx, user) })
	}
	for i := range roles {
		role := &roles[i]
		g.Go(func() error { return h.repos.Roles.Delete(gctx, role) })
	}
	for _, acc := range accounts {
		acc := acc
		g.Go(func() error {
			if err := h.identity.DeleteUser(gctx, acc.Email); err != nil && !errors.Is(err, identity.ErrAccountNotFound) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.internal(c, "delete tenant members", err)
		return
	}
	if err := h.repos.Tenants.Delete(ctx, tenant); err != nil {
		h.internal(c, "delete tenant", err)
		return
	}

	h.logger.Info("tenant deleted",
		zap.String("tenant_id", tenant.ID),
		zap.Int("users", len(users)),
		zap.Int("accounts", len(accounts)),
	)
	response.NoContent(c)
}
