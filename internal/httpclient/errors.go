package httpclient

import (
	"fmt"
	"net/http"
)

// UpstreamError represents a non-2xx response from an upstream provider.
// The raw body is kept so callers can inspect provider-specific error
// payloads (reason codes, safety verdicts) before deciding what to surface.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// IsAuth reports whether the upstream rejected our credentials.
func (e *UpstreamError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsTransient reports whether a retry could plausibly succeed: server-side
// failures and timeouts, but never auth or client errors.
func (e *UpstreamError) IsTransient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout
}
