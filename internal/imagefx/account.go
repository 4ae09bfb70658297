// Package imagefx drives the image-generation provider: a session manager
// that exchanges a long-lived cookie for short-lived bearer tokens, and a
// pipeline that sanitizes prompts, executes requests with bounded retry,
// maps provider rejections to readable messages, and optionally corrects
// generated images to 16:9.
package imagefx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/httpclient"
	"go.uber.org/zap"
)

const defaultSessionURL = "https://labs.google/fx/api/auth/session"

// tokenExpiryMargin forces a refresh when the token is this close to
// expiring, so a request never departs with a token about to die mid-call.
const tokenExpiryMargin = 30 * time.Second

// Account owns one long-lived provider cookie and the short-lived bearer
// token derived from it. Not safe for concurrent use: the expiry check and
// the refresh are not atomic, so two goroutines sharing one Account can
// race into duplicate refreshes. Callers hold one Account per request flow.
type Account struct {
	cookie     string
	sessionURL string
	client     *http.Client
	logger     *zap.Logger

	token       string
	tokenExpiry time.Time
	user        map[string]any
}

type AccountOption func(*Account)

// WithSessionURL points the account at a different session endpoint.
func WithSessionURL(url string) AccountOption {
	return func(a *Account) { a.sessionURL = url }
}

// NewAccount creates an account from a provider cookie. The cookie is the
// only required credential; the bearer token is fetched lazily.
func NewAccount(cookie string, logger *zap.Logger, opts ...AccountOption) (*Account, error) {
	if cookie == "" {
		return nil, fault.Configf("imagefx account requires a non-empty cookie")
	}
	a := &Account{
		cookie:     cookie,
		sessionURL: defaultSessionURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Token returns the current bearer token. Empty until EnsureSession runs.
func (a *Account) Token() string { return a.token }

// User returns the profile object from the last session exchange.
func (a *Account) User() map[string]any { return a.user }

// EnsureSession guarantees a usable bearer token, refreshing when none is
// held or the held one expires within the safety margin.
func (a *Account) EnsureSession(ctx context.Context) error {
	if a.token != "" && time.Until(a.tokenExpiry) > tokenExpiryMargin {
		return nil
	}
	return a.refreshSession(ctx)
}

type sessionResponse struct {
	AccessToken string         `json:"access_token"`
	Expires     string         `json:"expires"`
	User        map[string]any `json:"user"`
}

// refreshSession exchanges the cookie for a fresh token. Auth rejections
// (401/403) are tagged with their status so callers can branch; a response
// missing any required field is equally fatal, since continuing without a
// token or expiry would just fail later in a less explicable way.
func (a *Account) refreshSession(ctx context.Context) error {
	headers := map[string]string{"Cookie": a.cookie}

	var resp sessionResponse
	if err := httpclient.GetJSON(ctx, a.client, a.sessionURL, headers, &resp); err != nil {
		var ue *httpclient.UpstreamError
		if errors.As(err, &ue) && ue.IsAuth() {
			return fault.Authf(ue.StatusCode, "imagefx session rejected: cookie invalid or expired")
		}
		return fault.Wrap(fault.KindTransient, "imagefx session exchange failed", err)
	}

	if resp.AccessToken == "" || resp.Expires == "" || resp.User == nil {
		return fault.New(fault.KindAuth, "imagefx session response incomplete: missing access_token, expires or user")
	}

	expiry, err := time.Parse(time.RFC3339, resp.Expires)
	if err != nil {
		return fault.Wrap(fault.KindAuth, fmt.Sprintf("imagefx session expiry %q unparseable", resp.Expires), err)
	}

	a.token = resp.AccessToken
	a.tokenExpiry = expiry
	a.user = resp.User
	a.logger.Debug("imagefx session refreshed", zap.Time("expires", expiry))
	return nil
}

// authHeaders builds the cookie + bearer pair every image request carries.
func (a *Account) authHeaders() map[string]string {
	return map[string]string{
		"Cookie":        a.cookie,
		"Authorization": "Bearer " + a.token,
	}
}
