package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error codes carried in the response envelope.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeUnauthorizedClient   = "unauthorized_client"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodeNotFound             = "not_found"
	CodeValidation           = "validation_error"
	CodeConflict             = "conflict"
	CodeTooManyRequests      = "too_many_requests"
	CodeInternal             = "internal_error"
)

// FieldError describes a single rejected field of a request payload.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error envelope written for every failure.
type ErrorResponse struct {
	Status  int          `json:"status"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// AppError is an error that knows how it should be rendered over HTTP.
type AppError struct {
	Status  int
	Code    string
	Message string
	Errors  []FieldError
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Response builds the envelope for e.
func (e *AppError) Response() *ErrorResponse {
	errs := e.Errors
	if errs == nil {
		errs = []FieldError{}
	}
	return &ErrorResponse{Status: e.Status, Code: e.Code, Message: e.Message, Errors: errs}
}

func newAppError(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func NewInvalidRequest(message string) *AppError {
	return newAppError(http.StatusBadRequest, CodeInvalidRequest, message)
}

// NewInvalidClient never says which part of the client credentials was wrong.
func NewInvalidClient() *AppError {
	return newAppError(http.StatusUnauthorized, CodeInvalidClient, "Invalid client: client is invalid")
}

// NewInvalidGrant never says which part of the user credentials was wrong.
func NewInvalidGrant(message string) *AppError {
	return newAppError(http.StatusUnauthorized, CodeInvalidGrant, message)
}

func NewUnauthorizedClient() *AppError {
	return newAppError(http.StatusBadRequest, CodeUnauthorizedClient, "Unauthorized client: grant type is invalid")
}

func NewUnsupportedGrantType() *AppError {
	return newAppError(http.StatusBadRequest, CodeUnsupportedGrantType, "Unsupported grant type: grant type is invalid")
}

func NewUnauthorized(message string) *AppError {
	return newAppError(http.StatusUnauthorized, CodeUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return newAppError(http.StatusForbidden, CodeForbidden, message)
}

func NewNotFound(resource string) *AppError {
	return newAppError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewValidationError carries every field failure found, not only the first.
func NewValidationError(errs []FieldError) *AppError {
	e := newAppError(http.StatusUnprocessableEntity, CodeValidation, "Validation failed")
	e.Errors = errs
	return e
}

func NewConflict(message string) *AppError {
	return newAppError(http.StatusConflict, CodeConflict, message)
}

func NewTooManyRequests() *AppError {
	return newAppError(http.StatusTooManyRequests, CodeTooManyRequests, "Too many requests")
}

func NewInternal(err error) *AppError {
	e := newAppError(http.StatusInternalServerError, CodeInternal, "Internal server error")
	e.Err = err
	return e
}

// AsAppError maps any error onto the taxonomy. Unknown errors become internal errors.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok {
			msg = s
		}
		return newAppError(httpErr.Code, codeForStatus(httpErr.Code), msg)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		e := newAppError(http.StatusServiceUnavailable, CodeInternal, "Request timed out")
		e.Err = err
		return e
	}

	return NewInternal(err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	case http.StatusServiceUnavailable:
		return CodeInternal
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeInvalidRequest
}

// ErrorHandler renders every error returned by a handler as an ErrorResponse.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := AsAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(appErr.Status)
		} else {
			err = c.JSON(appErr.Status, appErr.Response())
		}
		if err != nil {
			logger.Error("writing error response", "error", err)
		}
	}
}
