package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the closed set of failure modes the
// pipeline cares about. Retry decisions branch on this, nothing else.
type Kind int

const (
	// KindConfig covers missing credentials or required fields. Fatal, never retried.
	KindConfig Kind = iota
	// KindAuth covers bad or expired session credentials (HTTP 401/403).
	KindAuth
	// KindTransient covers network failures, 5xx and timeouts. Retryable.
	KindTransient
	// KindContentPolicy covers provider-side safety/quality/fame rejections.
	KindContentPolicy
	// KindParse covers malformed structured output from an LLM.
	KindParse
	// KindEmpty covers a successful call that returned zero usable results.
	KindEmpty
	// KindProvider covers non-retryable upstream errors (4xx other than auth).
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindAuth:
		return "auth"
	case KindTransient:
		return "transient"
	case KindContentPolicy:
		return "content_policy"
	case KindParse:
		return "parse"
	case KindEmpty:
		return "empty"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// Error is the tagged error type shared by the generation service and the
// image pipeline. Status is the upstream HTTP status when one exists.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("[%s/%d] %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a tagged error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a tagged error around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithStatus attaches an upstream HTTP status code.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// Configf creates a configuration error.
func Configf(format string, args ...any) *Error {
	return New(KindConfig, fmt.Sprintf(format, args...))
}

// Authf creates an authentication error carrying the HTTP status.
func Authf(status int, format string, args ...any) *Error {
	return New(KindAuth, fmt.Sprintf(format, args...)).WithStatus(status)
}

// KindOf extracts the Kind from any error in the chain. Errors that are not
// tagged default to KindTransient so unknown failures stay retryable.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// IsRetryable reports whether the pipeline may retry after this error.
// Only transient failures qualify; retrying a bad credential or a rejected
// prompt with identical inputs cannot succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
