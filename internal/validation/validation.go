// Package validation binds request bodies and path parameters and rejects anything that does
// not match the declared schema with the generic argument error.
package validation

import (
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saas-onboarding/backend/internal/apperrors"
	"github.com/saas-onboarding/backend/internal/models"
)

// MinPasswordLength follows the identity pool's default policy.
const MinPasswordLength = 8

var registerOnce sync.Once

// Register installs the custom validators on gin's validator engine. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
			return models.Tier(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return ValidPassword(fl.Field().String())
		})
	})
}

// ValidPassword reports whether pw has at least MinPasswordLength characters with an upper case
// letter, a lower case letter, a digit and a symbol.
func ValidPassword(pw string) bool {
	if len([]rune(pw)) < MinPasswordLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

// BindJSON decodes and validates the JSON body into req.
func BindJSON(c *gin.Context, req any, logger *zap.Logger) error {
	Register()
	if err := c.ShouldBindJSON(req); err != nil {
		logFailure(c, logger, err)
		return apperrors.NewArgumentError(err)
	}
	return nil
}

// BindURI validates the path parameters into req.
func BindURI(c *gin.Context, req any, logger *zap.Logger) error {
	Register()
	if err := c.ShouldBindUri(req); err != nil {
		logFailure(c, logger, err)
		return apperrors.NewArgumentError(err)
	}
	return nil
}

func logFailure(c *gin.Context, logger *zap.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("request validation failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
}
