package auth

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saas-onboarding/backend/internal/apperrors"
	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/internal/repository"
	"github.com/saas-onboarding/backend/internal/validation"
	"github.com/saas-onboarding/backend/pkg/email"
	"github.com/saas-onboarding/backend/pkg/identity"
	"github.com/saas-onboarding/backend/pkg/response"
)

const resetSubject = "Reset your password."

// Handler handles the password reset endpoints.
type Handler struct {
	repos    *repository.Repositories
	identity identity.Provider
	mailer   email.Sender
	tokens   *ResetTokens
	domain   string
	logger   *zap.Logger
}

// NewHandler creates a password handler. domain is the host reset links point to.
func NewHandler(repos *repository.Repositories, idp identity.Provider, mailer email.Sender, tokens *ResetTokens, domain string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repos:    repos,
		identity: idp,
		mailer:   mailer,
		tokens:   tokens,
		domain:   domain,
		logger:   logger,
	}
}

func (h *Handler) internal(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	response.Internal(c)
}

// ResetLink is the page a user follows to choose a new password.
func ResetLink(domain, token string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     domain,
		Path:     "/reset-password",
		RawQuery: url.Values{"hash": {token}}.Encode(),
	}
	return u.String()
}

// ForgotPassword handles POST /forgot-password. It marks the user as resetting and mails
// a signed, short-lived link.
func (h *Handler) ForgotPassword(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.ForgotPasswordRequest
	if err := validation.BindJSON(c, &req, h.logger); err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.repos.Users.GetByEmail(ctx, req.Email, "")
	if err != nil {
		h.internal(c, "lookup user", err)
		return
	}
	if user == nil {
		response.NotFound(c, "User not found")
		return
	}
	tenant, err := h.repos.Tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		h.internal(c, "load tenant", err)
		return
	}
	if tenant == nil {
		response.NotFound(c, "Tenant not found")
		return
	}

	token, err := h.tokens.Issue(tenant.SubDomain, user.Email)
	if err != nil {
		h.internal(c, "issue reset token", err)
		return
	}
	msg := email.Message{
		To:      []string{user.Email},
		Subject: resetSubject,
		Body:    fmt.Sprintf("Please, click on the link %s and reset your password", ResetLink(h.domain, token)),
	}

	flag := true
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.repos.Users.Update(gctx, user, models.UserUpdate{ResetPassword: &flag})
	})
	g.Go(func() error { return h.mailer.Send(gctx, msg) })
	if err := g.Wait(); err != nil {
		h.internal(c, "start password reset", err)
		return
	}

	h.logger.Info("password reset requested", zap.String("user_id", user.ID))
	response.NoContent(c)
}

// ResetPassword handles POST /reset-password. The token must be unexpired and the user
// must still have a reset pending.
func (h *Handler) ResetPassword(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.ResetPasswordRequest
	if err := validation.BindJSON(c, &req, h.logger); err != nil {
		response.Error(c, err)
		return
	}

	claims, err := h.tokens.Verify(req.Hash)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			response.BadRequest(c, "Hash has expired.")
			return
		}
		h.logger.Error("invalid reset token", zap.Error(err))
		response.BadRequest(c, apperrors.ArgumentMessage)
		return
	}

	tenant, err := h.repos.Tenants.GetBySubDomain(ctx, claims.SubDomain)
	if err != nil {
		h.internal(c, "lookup tenant", err)
		return
	}
	if tenant == nil {
		response.NotFound(c, "Tenant not found.")
		return
	}
	user, err := h.repos.Users.GetByEmail(ctx, claims.Email, "")
	if err != nil {
		h.internal(c, "lookup user", err)
		return
	}
	if user == nil {
		response.NotFound(c, "User not found.")
		return
	}
	if user.TenantID != tenant.ID || !user.ResetPassword {
		response.Forbidden(c)
		return
	}

	flag := false
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.repos.Users.Update(gctx, user, models.UserUpdate{ResetPassword: &flag})
	})
	g.Go(func() error { return h.identity.SetPassword(gctx, user.Email, req.NewPassword) })
	if err := g.Wait(); err != nil {
		h.internal(c, "reset password", err)
		return
	}

	h.logger.Info("password reset", zap.String("user_id", user.ID))
	response.NoContent(c)
}
