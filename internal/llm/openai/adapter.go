// Package openai shapes requests for the GPT-family chat-completion API.
package openai

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

const defaultBaseURL = "https://api.openai.com/v1"

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
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + a.config.APIKey,
	}
}

func (a *Adapter) url() string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(a.config.BaseURL, "/"))
}

func (a *Adapter) buildRequest(model, prompt string, opts llm.Options) request {
	return request{
		Model:       model,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxOutputTokens,
		Temperature: opts.Temperature,
	}
}

func (a *Adapter) Generate(ctx context.Context, model, prompt string, opts llm.Options) (*llm.Result, error) {
	req := a.buildRequest(model, prompt, opts)

	var resp response
	if err := httpclient.PostJSON(ctx, a.client, a.url(), a.headers(), req, &resp); err != nil {
		return nil, wrapUpstream(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fault.New(fault.KindEmpty, "gpt returned no choices")
	}
	return &llm.Result{Text: resp.Choices[0].Message.Content}, nil
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
			if data == "[DONE]" {
				return nil
			}

			var resp response
			if err := json.Unmarshal([]byte(data), &resp); err != nil {
				// skip malformed keep-alive chunks
				return nil
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				// the consumer may have gone away mid-stream; a bare send
				// would park this goroutine forever and pin the response body
				select {
				case ch <- llm.Chunk{Text: resp.Choices[0].Delta.Content}:
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

// wrapUpstream tags an httpclient error with the failure kind, keeping the
// provider's raw error payload in the message. Never swallows.
func wrapUpstream(err error) error {
	var ue *httpclient.UpstreamError
	if !errors.As(err, &ue) {
		return fault.Wrap(fault.KindTransient, "gpt request failed", err)
	}

	kind := fault.KindProvider
	switch {
	case ue.IsAuth():
		kind = fault.KindAuth
	case ue.IsTransient():
		kind = fault.KindTransient
	}
	return fault.Wrap(kind, fmt.Sprintf("gpt upstream error: %s", string(ue.Body)), err).WithStatus(ue.StatusCode)
}
