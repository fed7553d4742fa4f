package apiclient

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that an expected stage, candidate, or record is absent
// upstream. It is a configuration or data problem, not a transport failure.
var ErrNotFound = errors.New("not found")

// ErrAmbiguous signals that a lookup matched more than one record and the
// caller deliberately declines to decide.
var ErrAmbiguous = errors.New("ambiguous match")

// errCircuitOpen is returned, wrapped in a TransportError, while the circuit
// breaker is open.
var errCircuitOpen = errors.New("circuit open: upstream failing")

// TransportError wraps a network-level or timeout failure. It is retried at
// the HTTP layer only for rate-limit responses, which are not transport
// errors, so in practice it is always fatal to the calling operation.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-success HTTP response, surfaced after any rate-limit
// retries are exhausted. It carries the server-provided status and body for
// operator diagnosis.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Body)
}

// IsRateLimit reports whether this is an HTTP 429 response.
func (e *APIError) IsRateLimit() bool { return e.Status == 429 }

// DecodeError is a malformed response body from an upstream API.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
