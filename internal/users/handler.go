package users

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saas-onboarding/backend/internal/apperrors"
	"github.com/saas-onboarding/backend/internal/auth"
	"github.com/saas-onboarding/backend/internal/middleware"
	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/internal/repository"
	"github.com/saas-onboarding/backend/internal/validation"
	"github.com/saas-onboarding/backend/pkg/identity"
	"github.com/saas-onboarding/backend/pkg/response"
)

// Handler handles user HTTP endpoints.
type Handler struct {
	repos    *repository.Repositories
	identity identity.Provider
	logger   *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(repos *repository.Repositories, idp identity.Provider, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repos: repos, identity: idp, logger: logger}
}

func (h *Handler) internal(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	response.Internal(c)
}

// target loads the user named by the {id} path parameter within the requester's tenant.
// A nil user with ok set means no such user in that tenant.
func (h *Handler) target(c *gin.Context) (*auth.Requester, *models.User, bool) {
	var path validation.PathID
	if err := validation.BindURI(c, &path, h.logger); err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	requester := middleware.RequesterFrom(c)
	user, err := h.repos.Users.GetByID(c.Request.Context(), requester.User.TenantID, path.ID)
	if err != nil {
		h.internal(c, "load user", err)
		return nil, nil, false
	}
	return requester, user, true
}

// Me handles GET /me. Only a session is needed; the caller gets their own record.
func (h *Handler) Me(c *gin.Context) {
	session := middleware.SessionFrom(c)
	user, err := h.repos.Users.GetByID(c.Request.Context(), session.TenantID, session.UserID)
	if err != nil {
		h.internal(c, "load user", err)
		return
	}
	if user == nil {
		response.Error(c, auth.ErrRequesterNotFound)
		return
	}
	response.OK(c, user)
}

// List handles GET /admin/users.
func (h *Handler) List(c *gin.Context) {
	requester := middleware.RequesterFrom(c)
	list, err := h.repos.Users.ListByTenant(c.Request.Context(), requester.User.TenantID)
	if err != nil {
		h.internal(c, "list users", err)
		return
	}
	response.OK(c, list)
}

// Load handles GET /admin/user/{id}.
func (h *Handler) Load(c *gin.Context) {
	_, user, ok := h.target(c)
	if !ok {
		return
	}
	if user == nil {
		response.Error(c, apperrors.NotFound("User"))
		return
	}
	response.OK(c, user)
}

// Update handles POST /admin/user/{id}. An email change is mirrored to the identity
// provider and, for the registering admin, to the tenant record.
func (h *Handler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.UpdateUserRequest
	if err := validation.BindJSON(c, &req, h.logger); err != nil {
		response.Error(c, err)
		return
	}
	requester, user, ok := h.target(c)
	if !ok {
		return
	}
	if user == nil {
		response.Forbidden(c)
		return
	}
	tenantID := requester.User.TenantID
	tenant, err := h.repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		h.internal(c, "load tenant", err)
		return
	}

	if req.RoleID != nil {
		// The registering admin keeps the admin role.
		if *req.RoleID != user.RoleID && auth.IsRegisteringAdmin(user.Email, tenant) {
			response.Unauthorized(c, "Unauthorized")
			return
		}
		role, err := h.repos.Roles.GetByID(ctx, tenantID, *req.RoleID)
		if err != nil {
			h.internal(c, "load role", err)
			return
		}
		if role == nil {
			response.Error(c, auth.ErrRoleNotFound)
			return
		}
	}

	upd := models.UserUpdate{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		RoleID:     req.RoleID,
	}
	emailChanged := req.Email != nil && *req.Email != user.Email
	if emailChanged {
		other, err := h.repos.Users.GetByEmail(ctx, *req.Email, "")
		if err != nil {
			h.internal(c, "lookup email", err)
			return
		}
		if other != nil {
			response.Error(c, &apperrors.AlreadyInUseError{Param: "E-mail"})
			return
		}
		upd.Email = req.Email
	}

	if len(upd.Fields()) == 0 {
		response.NoContent(c)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.repos.Users.Update(gctx, user, upd) })
	if emailChanged {
		g.Go(func() error { return h.identity.UpdateEmail(gctx, user.Email, *req.Email) })
		if auth.IsRegisteringAdmin(user.Email, tenant) {
			g.Go(func() error {
				return h.repos.Tenants.Update(gctx, tenant.ID, models.TenantUpdate{AdminEmail: req.Email})
			})
		}
	}
	if err := g.Wait(); err != nil {
		h.internal(c, "update user", err)
		return
	}

	h.logger.Info("user updated",
		zap.String("user_id", user.ID),
		zap.String("tenant_id", tenantID),
		zap.Bool("email_changed", emailChanged),
	)
	response.NoContent(c)
}

// Delete handles DELETE /admin/user/{id}. Admins may delete any user of their tenant and
// members only themselves. The registering admin can never be deleted this way.
func (h *Handler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	requester, user, ok := h.target(c)
	if !ok {
		return
	}
	if user == nil {
		response.Forbidden(c)
		return
	}
	tenant, err := h.repos.Tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		h.internal(c, "load tenant", err)
		return
	}
	if auth.IsRegisteringAdmin(user.Email, tenant) {
		response.Unauthorized(c, "Unauthorized")
		return
	}
	if !auth.IsAdmin(requester) && requester.User.ID != user.ID {
		response.Forbidden(c)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.repos.Users.Delete(gctx, user) })
	g.Go(func() error {
		if err := h.identity.DeleteUser(gctx, user.Email); err != nil && !errors.Is(err, identity.ErrAccountNotFound) {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		h.internal(c, "delete user", err)
		return
	}

	h.logger.Info("user deleted",
		zap.String("user_id", user.ID),
		zap.String("tenant_id", user.TenantID),
		zap.String("deleted_by", requester.User.ID),
	)
	response.NoContent(c)
}
