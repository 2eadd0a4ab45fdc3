package invitations

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saas-onboarding/backend/internal/apperrors"
	"github.com/saas-onboarding/backend/internal/middleware"
	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/internal/repository"
	"github.com/saas-onboarding/backend/internal/validation"
	"github.com/saas-onboarding/backend/pkg/email"
	"github.com/saas-onboarding/backend/pkg/identity"
	"github.com/saas-onboarding/backend/pkg/response"
	"github.com/saas-onboarding/backend/pkg/utils"
)

// SendInvitationResponse is the body returned by PUT /admin/invitation.
type SendInvitationResponse struct {
	Sent bool `json:"sent"`
}

// Handler handles invitation HTTP endpoints.
type Handler struct {
	repos    *repository.Repositories
	identity identity.Provider
	mailer   email.Sender
	issuer   *Issuer
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates an invitations handler.
func NewHandler(repos *repository.Repositories, idp identity.Provider, mailer email.Sender, issuer *Issuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repos:    repos,
		identity: idp,
		mailer:   mailer,
		issuer:   issuer,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the time source used to evaluate expiry.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

func (h *Handler) internal(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	response.Internal(c)
}

// SendInvitation handles PUT /admin/invitation. Requires an admin requester.
// A pending invitation for the same invitee in the tenant is replaced.
func (h *Handler) SendInvitation(c *gin.Context) {
	ctx := c.Request.Context()
	requester := middleware.RequesterFrom(c)

	var req validation.SendInvitationRequest
	if err := validation.BindJSON(c, &req, h.logger); err != nil {
		response.Error(c, err)
		return
	}
	tenantID := requester.User.TenantID

	existing, err := h.repos.Users.GetByEmailInTenant(ctx, req.Invitee, tenantID)
	if err != nil {
		h.internal(c, "lookup invitee", err)
		return
	}
	if existing != nil {
		response.BadRequest(c, "User already exists")
		return
	}
	elsewhere, err := h.repos.Users.GetByEmail(ctx, req.Invitee, "")
	if err != nil {
		h.internal(c, "lookup invitee", err)
		return
	}
	if elsewhere != nil {
		response.Error(c, &apperrors.AlreadyInUseError{Param: "E-mail"})
		return
	}
	tenant, err := h.repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		h.internal(c, "load tenant", err)
		return
	}
	if tenant == nil {
		response.NotFound(c, "Tenant not found")
		return
	}

	prior, err := h.repos.Invitations.GetByEmail(ctx, req.Invitee, tenantID)
	if err != nil {
		h.internal(c, "lookup invitation", err)
		return
	}
	if prior != nil {
		if err := h.repos.Invitations.Delete(ctx, prior); err != nil {
			h.internal(c, "delete prior invitation", err)
			return
		}
		h.logger.Info("invitation superseded", zap.String("invitation_id", prior.ID))
	}

	inv, err := h.issuer.New(tenantID, req.Invitee, false)
	if err != nil {
		h.internal(c, "create invitation", err)
		return
	}
	msg, err := h.issuer.Message(inv, tenant.Name)
	if err != nil {
		h.internal(c, "build invitation email", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.repos.Invitations.Put(gctx, inv) })
	g.Go(func() error { return h.mailer.Send(gctx, msg) })
	if err := g.Wait(); err != nil {
		h.internal(c, "send invitation", err)
		return
	}

	h.logger.Info("invitation sent",
		zap.String("invitation_id", inv.ID),
		zap.String("tenant_id", tenantID),
	)
	response.OK(c, SendInvitationResponse{Sent: true})
}

// findByHash returns the invitation whose secret the hash was derived from.
func findByHash(candidates []models.Invitation, hash string) *models.Invitation {
	for i := range candidates {
		if utils.CheckSecret(candidates[i].HashSecret, hash) {
			return &candidates[i]
		}
	}
	return nil
}

// CompleteSignup handles PUT /signup. The invitation hash is the only credential.
func (h *Handler) CompleteSignup(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CompleteSignupRequest
	if err := validation.BindJSON(c, &req, h.logger); err != nil {
		response.Error(c, err)
		return
	}

	candidates, err := h.repos.Invitations.ListByEmail(ctx, req.Invitee)
	if err != nil {
		h.internal(c, "lookup invitation", err)
		return
	}
	if len(candidates) == 0 {
		response.NotFound(c, "Invitation not found.")
		return
	}
	inv := findByHash(candidates, req.Hash)
	if inv == nil {
		response.BadRequest(c, "Hash doesn't match.")
		return
	}

	switch Evaluate(h.now(), inv) {
	case Accepted:
		response.BadRequest(c, "Invitation already accepted.")
		return
	case Expired:
		if inv.Status != models.InvitationExpired {
			err := h.repos.Invitations.UpdateStatus(ctx, inv.ID, inv.Status, models.InvitationExpired)
			if err != nil && !errors.Is(err, repository.ErrInvitationChanged) {
				h.internal(c, "expire invitation", err)
				return
			}
			h.logger.Info("invitation expired", zap.String("invitation_id", inv.ID))
		}
		response.BadRequest(c, "Invitation expired.")
		return
	}

	taken, err := h.repos.Users.GetByEmail(ctx, req.Invitee, "")
	if err != nil {
		h.internal(c, "lookup invitee", err)
		return
	}
	if taken != nil {
		response.Error(c, &apperrors.AlreadyInUseError{Param: "E-mail"})
		return
	}

	role, err := h.repos.Roles.GetByScope(ctx, inv.TenantID, inv.IsUserAdmin)
	if err != nil {
		h.internal(c, "load role", err)
		return
	}
	if role == nil {
		response.NotFound(c, "Role not found")
		return
	}

	// Claim the invitation first; only one request moves it out of sent.
	err = h.repos.Invitations.UpdateStatus(ctx, inv.ID, models.InvitationSent, models.InvitationAccepted)
	if errors.Is(err, repository.ErrInvitationChanged) {
		h.answerChanged(c, inv.ID)
		return
	}
	if err != nil {
		h.internal(c, "accept invitation", err)
		return
	}

	user := &models.User{
		ID:         uuid.NewString(),
		TenantID:   inv.TenantID,
		RoleID:     role.ID,
		GivenName:  req.User.GivenName,
		FamilyName: req.User.FamilyName,
		Email:      req.Invitee,
		CreatedAt:  models.Now(),
	}

	var stored, created bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := h.repos.Users.Put(gctx, user); err != nil {
			return err
		}
		stored = true
		return nil
	})
	g.Go(func() error {
		err := h.identity.CreateUser(gctx, identity.Account{
			Email:    user.Email,
			UserID:   user.ID,
			TenantID: user.TenantID,
		})
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err := g.Wait(); err != nil {
		h.rollbackSignup(ctx, inv, user, stored, created)
		if errors.Is(err, identity.ErrAccountExists) {
			response.Error(c, &apperrors.AlreadyInUseError{Param: "E-mail"})
			return
		}
		h.internal(c, "complete signup", err)
		return
	}

	h.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("tenant_id", user.TenantID),
		zap.Bool("admin", inv.IsUserAdmin),
	)
	response.NoContent(c)
}

// answerChanged reports an invitation that another request accepted or expired after it was read.
func (h *Handler) answerChanged(c *gin.Context, id string) {
	current, err := h.repos.Invitations.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internal(c, "reload invitation", err)
		return
	}
	if current != nil && current.Status == models.InvitationAccepted {
		response.BadRequest(c, "Invitation already accepted.")
		return
	}
	response.BadRequest(c, "Invitation expired.")
}

// rollbackSignup undoes a partially completed signup so the invitee can try again.
func (h *Handler) rollbackSignup(ctx context.Context, inv *models.Invitation, user *models.User, stored, created bool) {
	log := h.logger.With(zap.String("invitation_id", inv.ID), zap.String("user_id", user.ID))
	if stored {
		if err := h.repos.Users.Delete(ctx, user); err != nil {
			log.Error("rollback user record", zap.Error(err))
		}
	}
	if created {
		if err := h.identity.DeleteUser(ctx, user.Email); err != nil {
			log.Error("rollback identity account", zap.Error(err))
		}
	}
	if err := h.repos.Invitations.UpdateStatus(ctx, inv.ID, models.InvitationAccepted, models.InvitationSent); err != nil {
		log.Error("rollback invitation status", zap.Error(err))
	}
}
