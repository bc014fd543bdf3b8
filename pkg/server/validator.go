package server

import (
	"crypto/subtle"
	"net/http"
)

// HeaderAPIKey carries the caller's API key.
const HeaderAPIKey = "X-API-Key"

// RequestValidator validates incoming requests before a mutating handler runs.
// Implementations can check API keys, rate limits, permissions, etc.
type RequestValidator interface {
	// ValidateRequest returns nil to allow the request, or an error to reject
	// it. A *ValidationError's code and message are returned to the client.
	ValidateRequest(r *http.Request) error
}

// ValidationError represents a validation failure with structured info.
type ValidationError struct {
	Code    string // Machine-readable error code (e.g., "UNAUTHORIZED")
	Message string // Human-readable message
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// APIKeyValidator accepts requests whose X-API-Key header matches one of keys.
type APIKeyValidator struct {
	keys [][]byte
}

// NewAPIKeyValidator returns a validator for keys. It returns nil when keys is
// empty so callers can pass the result straight to WithValidator.
func NewAPIKeyValidator(keys []string) RequestValidator {
	if len(keys) == 0 {
		return nil
	}
	v := &APIKeyValidator{}
	for _, k := range keys {
		if k != "" {
			v.keys = append(v.keys, []byte(k))
		}
	}
	return v
}

func (v *APIKeyValidator) ValidateRequest(r *http.Request) error {
	got := r.Header.Get(HeaderAPIKey)
	if got == "" {
		return NewValidationError("UNAUTHORIZED", "missing "+HeaderAPIKey+" header")
	}
	for _, k := range v.keys {
		if subtle.ConstantTimeCompare([]byte(got), k) == 1 {
			return nil
		}
	}
	return NewValidationError("FORBIDDEN", "invalid API key")
}
