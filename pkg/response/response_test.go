package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/saas-onboarding/backend/internal/apperrors"
)

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"argument", apperrors.NewArgumentError(errors.New("name: required")), http.StatusBadRequest, apperrors.ArgumentMessage},
		{"in use", &apperrors.AlreadyInUseError{Param: "Subdomain"}, http.StatusBadRequest, "Subdomain already in use"},
		{"wrapped not found", fmt.Errorf("load: %w", apperrors.NotFound("Tenant")), http.StatusNotFound, "Tenant not found"},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, InternalMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			Error(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestNullBodies(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Forbidden(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "null", w.Body.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	Created(c)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "null", w.Body.String())
}
