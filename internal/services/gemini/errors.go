package gemini

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential is returned before any request is made when no API
// key is configured.
var ErrMissingCredential = errors.New("gemini: API key not configured")

// APIError is returned for non-2xx responses and transport failures.
// StatusCode is 0 when the request never got a response.
type APIError struct {
	StatusCode int
	Status     string // provider status, e.g. "INVALID_ARGUMENT"
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gemini request failed: %s", e.Message)
	}
	if e.Status != "" {
		return fmt.Sprintf("gemini: http %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini: http %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// SchemaParseError means a schema-constrained response could not be decoded
// as JSON. Raw holds the text the model produced.
type SchemaParseError struct {
	Raw string
	Err error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("gemini: structured response is not valid JSON: %v (payload snippet: %s)", e.Err, snippet(e.Raw))
}

func (e *SchemaParseError) Unwrap() error { return e.Err }

func snippet(s string) string {
	const limit = 160
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
