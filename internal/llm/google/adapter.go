// Package google shapes requests for the Gemini generateContent API. The
// request shape differs entirely from the chat-completion family: a
// contents array of role/parts plus a generationConfig block. The API key
// travels as a query parameter, and streaming is selected with an SSE
// query flag instead of a header. When the caller asks for structured
// output the response text goes through the repair parser, since Gemini's
// JSON mode does not guarantee well-formed JSON under truncation.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/httpclient"
	"github.com/lumeo/content-api/internal/jsonrepair"
	"github.com/lumeo/content-api/internal/llm"
)

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultMaxTokens = 8192

	// generateTimeout bounds the non-streaming call. Gemini long-context
	// requests can run for minutes; anything past this is a lost cause.
	generateTimeout = 5 * time.Minute
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
		// the per-call deadline governs; no transport-level timeout on top
		client: &http.Client{},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens  int      `json:"maxOutputTokens"`
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMimeType string   `json:"response_mime_type,omitempty"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (a *Adapter) buildRequest(prompt string, opts llm.Options) request {
	maxTokens := opts.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	cfg := generationConfig{
		MaxOutputTokens: maxTokens,
		Temperature:     opts.Temperature,
	}
	if opts.Schema != nil {
		cfg.ResponseMimeType = "application/json"
	}
	return request{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	}
}

func (a *Adapter) endpoint(model, method string, sse bool) string {
	u := fmt.Sprintf("%s/models/%s:%s?key=%s",
		strings.TrimRight(a.config.BaseURL, "/"),
		model,
		method,
		url.QueryEscape(a.config.APIKey),
	)
	// only the streaming path carries the SSE flag
	if sse {
		u += "&alt=sse"
	}
	return u
}

func (a *Adapter) Generate(ctx context.Context, model, prompt string, opts llm.Options) (*llm.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	req := a.buildRequest(prompt, opts)

	var resp response
	if err := httpclient.PostJSON(ctx, a.client, a.endpoint(model, "generateContent", false), nil, req, &resp); err != nil {
		return nil, wrapUpstream(err)
	}

	text := firstText(resp)
	if text == "" {
		return nil, fault.New(fault.KindEmpty, "gemini returned no candidates")
	}

	result := &llm.Result{Text: text}
	if opts.Schema != nil {
		parsed, err := jsonrepair.Parse(text, "gemini:structured")
		if err != nil {
			return nil, fault.Wrap(fault.KindParse, "gemini structured output unparseable", err)
		}
		result.Data = parsed
	}
	return result, nil
}

func (a *Adapter) Stream(ctx context.Context, model, prompt string, opts llm.Options) (<-chan llm.Chunk, error) {
	req := a.buildRequest(prompt, opts)

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)

		err := httpclient.StreamJSON(ctx, a.client, a.endpoint(model, "streamGenerateContent", true), nil, req, func(line string) error {
			if !strings.HasPrefix(line, "data: ") {
				return nil
			}
			data := strings.TrimPrefix(line, "data: ")

			var resp response
			if err := json.Unmarshal([]byte(data), &resp); err != nil {
				return nil
			}
			if text := firstText(resp); text != "" {
				// guard every send: an abandoned consumer must not strand
				// this goroutine on an unbuffered channel
				select {
				case ch <- llm.Chunk{Text: text}:
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

func firstText(resp response) string {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return resp.Candidates[0].Content.Parts[0].Text
}

func wrapUpstream(err error) error {
	var ue *httpclient.UpstreamError
	if !errors.As(err, &ue) {
		return fault.Wrap(fault.KindTransient, "gemini request failed", err)
	}

	kind := fault.KindProvider
	switch {
	case ue.IsAuth():
		kind = fault.KindAuth
	case ue.IsTransient():
		kind = fault.KindTransient
	}
	return fault.Wrap(kind, fmt.Sprintf("gemini upstream error: %s", string(ue.Body)), err).WithStatus(ue.StatusCode)
}
