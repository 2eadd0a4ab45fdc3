package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saas-onboarding/backend/internal/apperrors"
)

const contentTypeJSON = "application/json"

// InternalMessage is sent for failures the client cannot act on.
const InternalMessage = "Internal error"

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends 201 with a null body.
func Created(c *gin.Context) {
	Null(c, http.StatusCreated)
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Null sends status with a JSON null body.
func Null(c *gin.Context, status int) {
	c.Data(status, contentTypeJSON, []byte("null"))
}

// Message sends status with msg as the raw body.
func Message(c *gin.Context, status int, msg string) {
	c.Data(status, contentTypeJSON, []byte(msg))
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, msg string) {
	Message(c, http.StatusBadRequest, msg)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) {
	Message(c, http.StatusUnauthorized, msg)
}

// Forbidden sends 403 with a null body.
func Forbidden(c *gin.Context) {
	Null(c, http.StatusForbidden)
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	Message(c, http.StatusNotFound, msg)
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, msg string) {
	Message(c, http.StatusTooManyRequests, msg)
}

// Internal sends 500.
func Internal(c *gin.Context) {
	Message(c, http.StatusInternalServerError, InternalMessage)
}

// Error maps the apperrors taxonomy onto a status code. Anything else is a 500.
func Error(c *gin.Context, err error) {
	var (
		arg      *apperrors.ArgumentError
		inUse    *apperrors.AlreadyInUseError
		notFound *apperrors.NotFoundError
	)
	switch {
	case errors.As(err, &arg):
		BadRequest(c, arg.Error())
	case errors.As(err, &inUse):
		BadRequest(c, inUse.Error())
	case errors.As(err, &notFound):
		NotFound(c, notFound.Error())
	default:
		Internal(c)
	}
}
