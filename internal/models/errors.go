package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes group failures by how they are reported to clients.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

// Reasons name the specific failure inside a code.
const (
	ReasonMissingField       = "MISSING_FIELD"
	ReasonInvalidField       = "INVALID_FIELD"
	ReasonMissingContent     = "MISSING_CONTENT"
	ReasonInvalidImage       = "INVALID_IMAGE"
	ReasonUsernameTaken      = "USERNAME_TAKEN"
	ReasonAlreadyFollowing   = "ALREADY_FOLLOWING"
	ReasonNotFollowing       = "NOT_FOLLOWING"
	ReasonCannotFollowSelf   = "CANNOT_FOLLOW_SELF"
	ReasonInvalidCredentials = "INVALID_CREDENTIALS"
	ReasonUnauthorized       = "UNAUTHORIZED"
	ReasonInvalidToken       = "INVALID_TOKEN"
	ReasonUserNotFound       = "USER_NOT_FOUND"
	ReasonTweetNotFound      = "TWEET_NOT_FOUND"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Reason  string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewValidationError(reason, message string) *AppError {
	return &AppError{Code: CodeValidation, Reason: reason, Message: message}
}

func NewUnauthorizedError(reason, message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Reason: reason, Message: message}
}

func NewNotFoundError(reason, resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Reason:  reason,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewConflictError(reason, message string) *AppError {
	return &AppError{Code: CodeConflict, Reason: reason, Message: message}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// UserNotFound reports a missing user row.
func UserNotFound(id uint) *AppError {
	return NewNotFoundError(ReasonUserNotFound, "User", id)
}

// TweetNotFound reports a missing tweet row.
func TweetNotFound(id uint) *AppError {
	return NewNotFoundError(ReasonTweetNotFound, "Tweet", id)
}

// AsAppError unwraps err into an AppError; unknown errors become internal errors.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}

// HasReason reports whether err is an AppError carrying the given reason.
func HasReason(err error, reason string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Reason == reason
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(err error) int {
	switch AsAppError(err).Code {
	case CodeValidation, CodeConflict:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError writes a standardized error response. Internal errors only
// expose the generic message; the cause stays in the logs.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	appErr := AsAppError(err)
	return c.Status(status).JSON(ErrorResponse{
		Error:  appErr.Message,
		Code:   appErr.Code,
		Reason: appErr.Reason,
	})
}
