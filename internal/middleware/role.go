package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saas-onboarding/backend/internal/apperrors"
	"github.com/saas-onboarding/backend/internal/auth"
	"github.com/saas-onboarding/backend/pkg/response"
)

// ContextRequester is the key for the resolved requester in gin context.
const ContextRequester = "requester"

// Requester returns a middleware that loads the session's user and role once per request.
// A missing user or role is answered with 404.
func Requester(resolver *auth.Resolver, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		s := SessionFrom(c)
		if s == nil {
			response.Unauthorized(c, unauthorizedMessage)
			c.Abort()
			return
		}
		req, err := resolver.Resolve(c.Request.Context(), s)
		if err != nil {
			var nf *apperrors.NotFoundError
			if !errors.As(err, &nf) {
				logger.Error("resolve requester", zap.String("user_id", s.UserID), zap.Error(err))
			}
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextRequester, req)
		c.Next()
	}
}

// RequesterFrom returns the requester stored by Requester.
func RequesterFrom(c *gin.Context) *auth.Requester {
	v, ok := c.Get(ContextRequester)
	if !ok {
		return nil
	}
	r, _ := v.(*auth.Requester)
	return r
}

// RequireAdmin allows only admin-scoped requesters. Must run after Requester.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.IsAdmin(RequesterFrom(c)) {
			response.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
