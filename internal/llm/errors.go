package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential means no API key could be resolved. No request is sent.
	ErrNoCredential = errors.New("OpenRouter API key not set. Please add your API key in settings")
	// ErrNoImage means the image endpoint answered without an image.
	ErrNoImage = errors.New("no image was generated. Please try again")
	// ErrCancelled marks a request or stream stopped by its context.
	// Errors wrapping it also wrap the context's own error.
	ErrCancelled = errors.New("request cancelled")
)

// StatusError carries a non-success HTTP response from the model service.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Operation, e.StatusCode, e.Body)
}

// APIError is an error object the service returned inside an otherwise
// successful response, including mid-stream.
type APIError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	return "API error: " + e.Message
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
