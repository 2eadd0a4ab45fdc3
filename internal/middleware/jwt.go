package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saas-onboarding/backend/internal/auth"
	"github.com/saas-onboarding/backend/pkg/response"
)

// ContextSession is the key for the session claims in gin context.
const ContextSession = "session"

const unauthorizedMessage = "Unauthorized"

// Session returns a middleware that verifies the session claims and stores them in context.
func Session(verifier auth.SessionVerifier, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		s, err := verifier.Verify(c.Request.Context(), c.Request)
		if err != nil {
			logger.Debug("session rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			response.Unauthorized(c, unauthorizedMessage)
			c.Abort()
			return
		}
		c.Set(ContextSession, s)
		c.Next()
	}
}

// SessionFrom returns the session stored by Session.
func SessionFrom(c *gin.Context) *auth.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	s, _ := v.(*auth.Session)
	return s
}
