// Package anthropic shapes requests for the Claude messages API. Same
// structural shape as the GPT adapter but a different endpoint and auth
// scheme: API key in a custom header plus a version header, not bearer.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/httpclient"
	"github.com/lumeo/content-api/internal/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

type Config struct {
	APIKey  string
	BaseURL string
}

type Adapter struct {
	config Config
	client *http.Client
}

func New(config Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	return &Adapter{
		config: config,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type response struct {
	Content []contentBlock `json:"content"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.config.APIKey,
		"anthropic-version": apiVersion,
	}
}

func (a *Adapter) url() string {
	return fmt.Sprintf("%s/messages", strings.TrimRight(a.config.BaseURL, "/"))
}

func (a *Adapter) buildRequest(model, prompt string, opts llm.Options) request {
	maxTokens := opts.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return request{
		Model:       model,
		MaxTokens:   maxTokens,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
	}
}

func (a *Adapter) Generate(ctx context.Context, model, prompt string, opts llm.Options) (*llm.Result, error) {
	req := a.buildRequest(model, prompt, opts)

	var resp response
	if err := httpclient.PostJSON(ctx, a.client, a.url(), a.headers(), req, &resp); err != nil {
		return nil, wrapUpstream(err)
	}

	if len(resp.Content) == 0 {
		return nil, fault.New(fault.KindEmpty, "claude returned no content blocks")
	}
	return &llm.Result{Text: resp.Content[0].Text}, nil
}

func (a *Adapter) Stream(ctx context.Context, model, prompt string, opts llm.Options) (<-chan llm.Chunk, error) {
	req := a.buildRequest(model, prompt, opts)
	req.Stream = true

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)

		err := httpclient.StreamJSON(ctx, a.client, a.url(), a.headers(), req, func(line string) error {
			if !strings.HasPrefix(line, "data: ") {
				return nil
			}
			data := strings.TrimPrefix(line, "data: ")

			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				return nil
			}
			if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				// guard every send: an abandoned consumer must not strand
				// this goroutine on an unbuffered channel
				select {
				case ch <- llm.Chunk{Text: event.Delta.Text}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil {
			select {
			case ch <- llm.Chunk{Err: wrapUpstream(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

func wrapUpstream(err error) error {
	var ue *httpclient.UpstreamError
	if !errors.As(err, &ue) {
		return fault.Wrap(fault.KindTransient, "claude request failed", err)
	}

	kind := fault.KindProvider
	switch {
	case ue.IsAuth():
		kind = fault.KindAuth
	case ue.IsTransient():
		kind = fault.KindTransient
	}
	return fault.Wrap(kind, fmt.Sprintf("claude upstream error: %s", string(ue.Body)), err).WithStatus(ue.StatusCode)
}
