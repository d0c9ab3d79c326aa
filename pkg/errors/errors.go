package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Generic error codes
const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
)

// Client registry errors
const (
	ErrCodeInvalidClient    ErrorCode = "INVALID_CLIENT"
	ErrCodeInvalidRedirect  ErrorCode = "INVALID_REDIRECT_URI"
	ErrCodeClientAuthFailed ErrorCode = "CLIENT_AUTH_FAILED"
)

// Credential and account errors
const (
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserAlreadyExists  ErrorCode = "USER_ALREADY_EXISTS"
	ErrCodeAccountInactive    ErrorCode = "ACCOUNT_INACTIVE"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
)

// Authorization code errors. Redeem failures are reported in this order.
const (
	ErrCodeCodeNotFound     ErrorCode = "CODE_NOT_FOUND"
	ErrCodeCodeExpired      ErrorCode = "CODE_EXPIRED"
	ErrCodeCodeAlreadyUsed  ErrorCode = "CODE_ALREADY_USED"
	ErrCodeClientMismatch   ErrorCode = "CLIENT_MISMATCH"
	ErrCodeRedirectMismatch ErrorCode = "REDIRECT_MISMATCH"
	ErrCodeCodeNotBound     ErrorCode = "CODE_NOT_BOUND"
	ErrCodePKCEFailed       ErrorCode = "PKCE_FAILED"
	ErrCodeBusinessLogic    ErrorCode = "BUSINESS_LOGIC"
)

// Federation errors
const (
	ErrCodeFederationTimeout    ErrorCode = "FEDERATION_TIMEOUT"
	ErrCodeInvalidFederatedCode ErrorCode = "INVALID_FEDERATED_CODE"
	ErrCodeFederationUpstream   ErrorCode = "FEDERATION_UPSTREAM_ERROR"
	ErrCodeInvalidState         ErrorCode = "INVALID_STATE"
	ErrCodeProviderNotFound     ErrorCode = "PROVIDER_NOT_FOUND"
)

// Token errors
const (
	ErrCodeTokenExpired      ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid      ErrorCode = "TOKEN_INVALID"
	ErrCodeInsufficientScope ErrorCode = "INSUFFICIENT_SCOPE"
)

// OAuth2 error values returned in the "error" field of protocol responses
const (
	OAuthInvalidRequest          = "invalid_request"
	OAuthInvalidClient           = "invalid_client"
	OAuthInvalidGrant            = "invalid_grant"
	OAuthUnsupportedGrantType    = "unsupported_grant_type"
	OAuthUnsupportedResponseType = "unsupported_response_type"
	OAuthInvalidToken            = "invalid_token"
	OAuthInsufficientScope       = "insufficient_scope"
	OAuthAccessDenied            = "access_denied"
	OAuthServerError             = "server_error"
	OAuthTemporarilyUnavailable  = "temporarily_unavailable"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// Retryable reports whether the caller may retry the same request later.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeFederationTimeout, ErrCodeTimeout, ErrCodeUnavailable:
		return true
	}
	return false
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether err carries a retryable code
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	// 400 Bad Request
	case ErrCodeInvalidInput, ErrCodeInvalidRedirect, ErrCodeCodeNotFound, ErrCodeCodeExpired,
		ErrCodeCodeAlreadyUsed, ErrCodeClientMismatch, ErrCodeRedirectMismatch, ErrCodeCodeNotBound,
		ErrCodePKCEFailed, ErrCodeBusinessLogic, ErrCodeFederationTimeout, ErrCodeInvalidFederatedCode,
		ErrCodeFederationUpstream, ErrCodeInvalidState, ErrCodeProviderNotFound:
		return http.StatusBadRequest

	// 401 Unauthorized
	case ErrCodeInvalidClient, ErrCodeClientAuthFailed, ErrCodeInvalidCredentials, ErrCodeUserNotFound,
		ErrCodeAccountInactive, ErrCodeTokenExpired, ErrCodeTokenInvalid:
		return http.StatusUnauthorized

	// 403 Forbidden
	case ErrCodeInsufficientScope:
		return http.StatusForbidden

	// 404 Not Found
	case ErrCodeNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case ErrCodeConflict, ErrCodeUserAlreadyExists:
		return http.StatusConflict

	// 429 Too Many Requests
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case ErrCodeUnavailable, ErrCodeTimeout:
		return http.StatusServiceUnavailable

	case ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// MapErrorCodeToOAuth2 maps error codes to the OAuth2 "error" value used by the
// authorization and token endpoints.
func MapErrorCodeToOAuth2(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidInput, ErrCodeFederationTimeout, ErrCodeInvalidFederatedCode,
		ErrCodeFederationUpstream, ErrCodeInvalidState, ErrCodeProviderNotFound:
		return OAuthInvalidRequest
	case ErrCodeInvalidClient, ErrCodeInvalidRedirect, ErrCodeClientAuthFailed:
		return OAuthInvalidClient
	case ErrCodeCodeNotFound, ErrCodeCodeExpired, ErrCodeCodeAlreadyUsed, ErrCodeClientMismatch,
		ErrCodeRedirectMismatch, ErrCodeCodeNotBound, ErrCodePKCEFailed, ErrCodeBusinessLogic,
		ErrCodeUserNotFound, ErrCodeAccountInactive:
		return OAuthInvalidGrant
	case ErrCodeTokenExpired, ErrCodeTokenInvalid:
		return OAuthInvalidToken
	case ErrCodeInsufficientScope:
		return OAuthInsufficientScope
	case ErrCodeUnavailable, ErrCodeTimeout:
		return OAuthTemporarilyUnavailable
	default:
		return OAuthServerError
	}
}

// Common error constructors for frequently used errors

// NotFound creates a "not found" error
func NotFound(resourceType, identifier string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resourceType, identifier)
}

// MissingParameter creates an invalid input error naming the missing field
func MissingParameter(field string) *Error {
	return Newf(ErrCodeInvalidInput, "missing required parameter: %s", field).WithDetail("field", field)
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).WithDetail("field", field)
}

// Internal creates an "internal error"
func Internal(message string) *Error {
	return New(ErrCodeInternal, message)
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}
