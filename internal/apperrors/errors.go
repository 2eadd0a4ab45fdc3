// Package apperrors holds the error types that handlers translate into HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
)

// ArgumentMessage is the only text a client sees for a malformed request.
const ArgumentMessage = "Something went wrong with the arguments provided."

// ArgumentError reports a request that failed validation. Detail is for logs only.
type ArgumentError struct {
	Detail string
}

func (e *ArgumentError) Error() string { return ArgumentMessage }

// ErrArgument is an ArgumentError without detail.
var ErrArgument = &ArgumentError{}

// NewArgumentError wraps a validation failure.
func NewArgumentError(err error) *ArgumentError {
	if err == nil {
		return ErrArgument
	}
	return &ArgumentError{Detail: err.Error()}
}

// AlreadyInUseError reports a failed uniqueness check.
type AlreadyInUseError struct {
	Param string
}

func (e *AlreadyInUseError) Error() string {
	return fmt.Sprintf("%s already in use", e.Param)
}

// NotFoundError reports a lookup miss. Message is returned to the client verbatim.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NotFound builds the "<entity> not found" error.
func NotFound(entity string) *NotFoundError {
	return &NotFoundError{Message: entity + " not found"}
}

// IsArgument reports whether err is an ArgumentError.
func IsArgument(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}
