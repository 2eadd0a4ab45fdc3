package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/saas-onboarding/backend/internal/auth"
	"github.com/saas-onboarding/backend/internal/invitations"
	"github.com/saas-onboarding/backend/internal/middleware"
	"github.com/saas-onboarding/backend/internal/repository"
	"github.com/saas-onboarding/backend/internal/tenants"
	"github.com/saas-onboarding/backend/internal/users"
	"github.com/saas-onboarding/backend/pkg/email"
	"github.com/saas-onboarding/backend/pkg/identity"
	"github.com/saas-onboarding/backend/pkg/response"
	"github.com/saas-onboarding/backend/pkg/storage"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Repos       *repository.Repositories
	Identity    identity.Provider
	Mailer      email.Sender
	Archive     storage.Archive // optional
	Sessions    auth.SessionVerifier
	Issuer      *invitations.Issuer
	ResetTokens *auth.ResetTokens
	Domain      string

	CORSAllowedOrigins string
	RateLimit          middleware.RateLimitConfig
	Registry           *prometheus.Registry // optional, enables GET /metrics
	Logger             *zap.Logger
}

// Handlers exposes the built handlers, mainly so tests can swap clocks.
type Handlers struct {
	Tenants     *tenants.Handler
	Users       *users.Handler
	Invitations *invitations.Handler
	Passwords   *auth.Handler
}

// NewRouter builds the gin engine with every route of the onboarding API.
func NewRouter(d Dependencies) (*gin.Engine, *Handlers) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handlers{
		Tenants:     tenants.NewHandler(d.Repos, d.Identity, d.Mailer, d.Issuer, d.Archive, logger),
		Users:       users.NewHandler(d.Repos, d.Identity, logger),
		Invitations: invitations.NewHandler(d.Repos, d.Identity, d.Mailer, d.Issuer, logger),
		Passwords:   auth.NewHandler(d.Repos, d.Identity, d.Mailer, d.ResetTokens, d.Domain, logger),
	}
	resolver := auth.NewResolver(d.Repos.Users, d.Repos.Roles)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	if d.Registry != nil {
		router.Use(middleware.NewHTTPMetrics(d.Registry).Middleware())
		router.GET("/metrics", middleware.MetricsHandler(d.Registry))
	}

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: registration, signup and password reset
	public := router.Group("")
	public.Use(middleware.RateLimit(d.RateLimit, logger))
	{
		public.PUT("/tenant", h.Tenants.Register)
		public.PUT("/signup", h.Invitations.CompleteSignup)
		public.POST("/forgot-password", h.Passwords.ForgotPassword)
		public.POST("/reset-password", h.Passwords.ResetPassword)
	}

	// Session only
	session := middleware.Session(d.Sessions, logger)
	router.GET("/me", session, h.Users.Me)

	// Admin API (session + requester resolved from the store)
	admin := router.Group("/admin")
	admin.Use(session, middleware.Requester(resolver, logger))
	{
		requireAdmin := middleware.RequireAdmin()

		admin.GET("/tenant/:id", requireAdmin, h.Tenants.Load)
		admin.POST("/tenant/:id", requireAdmin, h.Tenants.Update)
		admin.DELETE("/tenant/:id", requireAdmin, h.Tenants.Delete)

		admin.PUT("/invitation", requireAdmin, h.Invitations.SendInvitation)

		admin.GET("/users", requireAdmin, h.Users.List)
		admin.GET("/user/:id", requireAdmin, h.Users.Load)
		admin.POST("/user/:id", requireAdmin, h.Users.Update)
		// Members may delete themselves; the handler checks admin-or-self.
		admin.DELETE("/user/:id", h.Users.Delete)
	}

	return router, h
}
