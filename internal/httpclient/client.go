// Package httpclient holds the JSON request plumbing shared by every
// provider adapter: one call for request/response bodies, one for SSE
// streams. Adapters own auth headers and payload shapes; this layer owns
// marshalling, status checking and stream teardown.
package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient is satisfied by *http.Client and by test doubles.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxLineSize bounds a single SSE line. Gemini ships whole response chunks
// per line, which can exceed bufio's 64K default.
const maxLineSize = 1024 * 1024

// PostJSON marshals body, sends it, and decodes the JSON response into out.
// A non-2xx status becomes an *UpstreamError carrying the raw body.
func PostJSON(ctx context.Context, client HTTPClient, url string, headers map[string]string, body, out any) error {
	return do(ctx, client, http.MethodPost, url, headers, body, out)
}

// GetJSON sends a GET and decodes the JSON response into out.
func GetJSON(ctx context.Context, client HTTPClient, url string, headers map[string]string, out any) error {
	return do(ctx, client, http.MethodGet, url, headers, nil, out)
}

func do(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &UpstreamError{StatusCode: resp.StatusCode, Body: raw, URL: url}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// LineFunc consumes one line of an SSE stream.
type LineFunc func(line string) error

// StreamJSON posts body and feeds every non-empty response line to fn.
// The response body is closed when fn errors, the stream ends, or ctx is
// cancelled, so an abandoned caller never leaks the provider connection.
func StreamJSON(ctx context.Context, client HTTPClient, url string, headers map[string]string, body any, fn LineFunc) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &UpstreamError{StatusCode: resp.StatusCode, Body: raw, URL: url}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
