package core

import (
	"errors"
	"fmt"
)

// ProviderError represents an error returned by a remote service with full context.
type ProviderError struct {
	Provider  string
	Status    int
	RequestID string
	Code      string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (status=%d, code=%s, request_id=%s)",
			e.Provider, e.Message, e.Status, e.Code, e.RequestID)
	}
	return fmt.Sprintf("%s: %s (status=%d, code=%s)",
		e.Provider, e.Message, e.Status, e.Code)
}

// Unwrap returns the underlying error for error chaining.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Sentinel errors for transport classification.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network error")
	ErrDecode       = errors.New("decode error")
)

// Sentinel errors for the edit pipeline.
var (
	ErrImageNotFound     = errors.New("image not found")
	ErrMalformedResponse = errors.New("unexpected response format from qwen-image-edit")
	ErrNoImageFound      = errors.New("no image found in qwen-image-edit response")
	ErrValidation        = errors.New("validation failed")
	ErrAPIKeyRequired    = errors.New("API key is required (use --api-key or DASHSCOPE_API_KEY)")
)

// NotFoundError reports a local image reference that does not exist on disk.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "image not found: " + e.Path
}

// Is lets errors.Is(err, ErrImageNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrImageNotFound
}

// ResponseError describes why an image URL could not be extracted from a
// generation response. Kind is either ErrMalformedResponse or ErrNoImageFound.
type ResponseError struct {
	Kind   error
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Reason
}

// Unwrap returns the error kind.
func (e *ResponseError) Unwrap() error {
	return e.Kind
}

// ValidationError is returned when required user input is missing.
// Message is suitable for showing to the user as-is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
