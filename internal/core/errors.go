// Package core provides core types and interfaces for the TimeFlow completion proxy.
package core

import (
	"fmt"
	"net/http"
)

// ErrorType represents the kind of failure that ended a request
type ErrorType string

const (
	// ErrorTypeMissingCredential indicates an absent or malformed Authorization header (401)
	ErrorTypeMissingCredential ErrorType = "missing_credential"
	// ErrorTypeInvalidCredential indicates a token rejected by the identity provider (401)
	ErrorTypeInvalidCredential ErrorType = "invalid_credential"
	// ErrorTypeInvalidRequest indicates a request body that does not match the schema (400)
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	// ErrorTypeUpstream indicates any failure of the completion provider (500)
	ErrorTypeUpstream ErrorType = "upstream_error"
)

// Public messages returned to callers. These are the only error strings
// that ever leave the process.
const (
	MessageUnauthorized       = "Unauthorized"
	MessageInvalidToken       = "Invalid or expired token"
	MessagePromptRequired     = "Prompt is required"
	MessageInvalidRequestBody = "Invalid request body"
	MessageInternalError      = "Internal server error"
)

// ProxyError is the error type for all request-terminating failures
type ProxyError struct {
	Type ErrorType `json:"type"`
	// Message is safe to return to the caller
	Message string `json:"message"`
	// Detail is for server-side logs only
	Detail   string `json:"-"`
	Provider string `json:"-"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *ProxyError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = e.Message
	}
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, detail)
}

// Unwrap implements the error unwrapping interface
func (e *ProxyError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status code for this error
func (e *ProxyError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeMissingCredential, ErrorTypeInvalidCredential:
		return http.StatusUnauthorized
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the public response body
func (e *ProxyError) ToJSON() map[string]string {
	msg := e.Message
	if msg == "" {
		msg = MessageInternalError
	}
	return map[string]string{"error": msg}
}

// NewMissingCredentialError creates an error for an absent or malformed Authorization header
func NewMissingCredentialError(detail string) *ProxyError {
	return &ProxyError{
		Type:    ErrorTypeMissingCredential,
		Message: MessageUnauthorized,
		Detail:  detail,
	}
}

// NewInvalidCredentialError creates an error for a token the identity provider rejected
func NewInvalidCredentialError(err error) *ProxyError {
	e := &ProxyError{
		Type:    ErrorTypeInvalidCredential,
		Message: MessageInvalidToken,
		Err:     err,
	}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// NewPromptRequiredError creates an error for a missing or empty prompt
func NewPromptRequiredError() *ProxyError {
	return &ProxyError{
		Type:    ErrorTypeInvalidRequest,
		Message: MessagePromptRequired,
	}
}

// NewInvalidRequestError creates an error for a body that fails schema validation
func NewInvalidRequestError(detail string, err error) *ProxyError {
	return &ProxyError{
		Type:    ErrorTypeInvalidRequest,
		Message: MessageInvalidRequestBody,
		Detail:  detail,
		Err:     err,
	}
}

// NewUpstreamError creates an error for a failed completion provider call
func NewUpstreamError(provider, detail string, err error) *ProxyError {
	return &ProxyError{
		Type:     ErrorTypeUpstream,
		Message:  MessageInternalError,
		Detail:   detail,
		Provider: provider,
		Err:      err,
	}
}
