// Package errors provides error types and handling for propdesk.
// It includes custom error types with HTTP status codes and error codes.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/propdesk/propdesk/internal/api"
)

// AppError represents an application error with an associated HTTP status code.
type AppError struct {
	// Code is an optional error code string for programmatic handling
	Code string
	// Message is a user-friendly error message
	Message string
	// StatusCode is the HTTP status code the backend answered with, 0 when no response was received
	StatusCode int
	// Body is the raw response body, if any
	Body []byte
	// Cause is the underlying error (for error wrapping)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for error unwrapping.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to work with AppError.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code != "" && e.Code == t.Code
	}
	return false
}

// Predefined error codes.
const (
	// ErrCodeHTTP marks a non-2xx response other than 401; the caller handles it.
	ErrCodeHTTP = "HTTP_ERROR"
	// ErrCodeUnauthorized marks a 401 that was not recovered by a token refresh.
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeRefreshFailed marks a failed access token refresh.
	ErrCodeRefreshFailed = "REFRESH_FAILED"
	// ErrCodeSessionExpired marks a forced logout.
	ErrCodeSessionExpired = "SESSION_EXPIRED"
	// ErrCodeInvalidRequest marks a request that could not be built.
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	// ErrCodeChannelDegraded marks a real-time channel failure. Never fatal to the session.
	ErrCodeChannelDegraded = "CHANNEL_DEGRADED"
)

// Sentinel values for errors.Is comparisons.
var (
	ErrUnauthorizedCode    = &AppError{Code: ErrCodeUnauthorized}
	ErrRefreshFailedCode   = &AppError{Code: ErrCodeRefreshFailed}
	ErrSessionExpiredCode  = &AppError{Code: ErrCodeSessionExpired}
	ErrHTTPCode            = &AppError{Code: ErrCodeHTTP}
	ErrChannelDegradedCode = &AppError{Code: ErrCodeChannelDegraded}
)

// NewHTTPError builds the error returned for a non-2xx response.
// The message is taken from a JSON error body when the backend sent one.
func NewHTTPError(statusCode int, body []byte) *AppError {
	code := ErrCodeHTTP
	if statusCode == http.StatusUnauthorized {
		code = ErrCodeUnauthorized
	}

	message := fmt.Sprintf("request failed with status %d", statusCode)
	var errorResp api.ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if text := errorResp.Text(); text != "" {
			message = fmt.Sprintf("[%d] %s", statusCode, text)
		}
	}

	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Body:       body,
	}
}

// ErrRefreshFailed creates a refresh failure error.
func ErrRefreshFailed(message string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeRefreshFailed,
		Message:    message,
		StatusCode: GetStatusCode(cause),
		Cause:      cause,
	}
}

// ErrSessionExpired creates the error reported when the session was forcibly ended.
func ErrSessionExpired(cause error) *AppError {
	return &AppError{
		Code:       ErrCodeSessionExpired,
		Message:    "session expired, please sign in again",
		StatusCode: http.StatusUnauthorized,
		Cause:      cause,
	}
}

// ErrInvalidRequest creates an error for a request that could not be built or sent.
func ErrInvalidRequest(message string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Cause:   cause,
	}
}

// ErrChannelDegraded creates a degraded real-time channel error.
func ErrChannelDegraded(message string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeChannelDegraded,
		Message: message,
		Cause:   cause,
	}
}

// GetStatusCode extracts the HTTP status code from an error.
// Returns 0 if the error carries no response status.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 0
}

// GetErrorCode extracts the error code from an error.
// Returns empty string if the error is not an AppError.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetErrorMessage extracts a user-friendly message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// IsUnauthorized reports whether err carries a 401 response status.
func IsUnauthorized(err error) bool {
	return GetStatusCode(err) == http.StatusUnauthorized
}
