package imagefx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/httpclient"
	"github.com/lumeo/content-api/internal/sanitize"
	"go.uber.org/zap"
)

const (
	defaultGenerateURL = "https://aisandbox-pa.googleapis.com/v1:runImageFx"

	defaultRetries    = 2
	retryDelay        = 500 * time.Millisecond
	defaultCount      = 4
	defaultAspect     = "IMAGE_ASPECT_RATIO_LANDSCAPE"
	generationModel   = "IMAGEN_3_5"
	clientContextTool = "IMAGE_FX"
)

// Options tune one pipeline invocation. Zero values mean: fresh random
// seed, default aspect ratio, four candidates, two retries, no aspect
// correction.
type Options struct {
	Seed           *int64
	NegativePrompt string
	Count          int
	AspectRatio    string
	// Retries is the number of attempts after the first. nil means 2.
	Retries *int
	// FixAspectRatio re-encodes images that do not approximate 16:9.
	FixAspectRatio bool
}

// Image is one generated result, data-URI wrapped and annotated with what
// the sanitizer did to the prompt on its way in.
type Image struct {
	DataURI         string   `json:"data_uri"`
	Prompt          string   `json:"prompt"`
	SanitizedPrompt string   `json:"sanitized_prompt"`
	WasSanitized    bool     `json:"was_sanitized"`
	Alerts          []string `json:"alerts"`
	Model           string   `json:"model"`
	AspectRatio     string   `json:"aspect_ratio"`
	Seed            int64    `json:"seed"`
	MediaID         string   `json:"media_id"`
	WorkflowID      string   `json:"workflow_id"`
	FingerprintID   string   `json:"fingerprint_id"`
}

// Client executes the image-generation pipeline against one Account.
type Client struct {
	account     *Account
	generateURL string
	client      *http.Client
	logger      *zap.Logger
}

type ClientOption func(*Client)

// WithGenerateURL points the client at a different generation endpoint.
func WithGenerateURL(url string) ClientOption {
	return func(c *Client) { c.generateURL = url }
}

func NewClient(account *Account, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		account:     account,
		generateURL: defaultGenerateURL,
		client:      &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire shapes; these must stay bit-compatible with the provider.

type userInput struct {
	CandidatesCount int      `json:"candidatesCount"`
	Prompts         []string `json:"prompts"`
	Seed            int64    `json:"seed"`
	NegativePrompts []string `json:"negativePrompts,omitempty"`
}

type clientContext struct {
	SessionID string `json:"sessionId"`
	Tool      string `json:"tool"`
}

type modelInput struct {
	ModelNameType string `json:"modelNameType"`
}

type generateRequest struct {
	UserInput     userInput     `json:"userInput"`
	ClientContext clientContext `json:"clientContext"`
	ModelInput    modelInput    `json:"modelInput"`
	AspectRatio   string        `json:"aspectRatio"`
}

type generatedImage struct {
	EncodedImage           string `json:"encodedImage"`
	Seed                   int64  `json:"seed"`
	MediaGenerationID      string `json:"mediaGenerationId"`
	WorkflowID             string `json:"workflowId"`
	FingerprintLogRecordID string `json:"fingerprintLogRecordId"`
}

type imagePanel struct {
	Prompt          string           `json:"prompt"`
	GeneratedImages []generatedImage `json:"generatedImages"`
}

type generateResponse struct {
	ImagePanels []imagePanel `json:"imagePanels"`
}

// Generate runs the full pipeline: validate, ensure session, sanitize,
// build the request, execute with bounded retry, map errors, post-process.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) ([]Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fault.Configf("image prompt must not be empty")
	}

	// a bad credential fails here, before any generation attempt, and is
	// never retried: waiting will not make the cookie valid
	if err := c.account.EnsureSession(ctx); err != nil {
		return nil, err
	}

	cleaned := sanitize.Sanitize(prompt)
	wasSanitized := len(cleaned.Alerts) > 0
	if wasSanitized {
		c.logger.Info("prompt sanitized", zap.Strings("alerts", cleaned.Alerts))
	}

	seed := int64(rand.Int31())
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	count := opts.Count
	if count <= 0 {
		count = defaultCount
	}
	aspect := opts.AspectRatio
	if aspect == "" {
		aspect = defaultAspect
	}

	req := generateRequest{
		UserInput: userInput{
			CandidatesCount: count,
			Prompts:         []string{cleaned.Sanitized},
			Seed:            seed,
		},
		ClientContext: clientContext{
			SessionID: newSessionID(),
			Tool:      clientContextTool,
		},
		ModelInput:  modelInput{ModelNameType: generationModel},
		AspectRatio: aspect,
	}
	if opts.NegativePrompt != "" {
		req.UserInput.NegativePrompts = []string{opts.NegativePrompt}
	}

	resp, err := c.execute(ctx, req, retryBudget(opts.Retries))
	if err != nil {
		return nil, err
	}

	var images []Image
	for _, panel := range resp.ImagePanels {
		for _, gen := range panel.GeneratedImages {
			encoded := gen.EncodedImage
			if opts.FixAspectRatio {
				fixed, err := fixTo16x9(encoded)
				if err != nil {
					c.logger.Warn("aspect correction failed, keeping original", zap.Error(err))
				} else {
					encoded = fixed
				}
			}

			images = append(images, Image{
				DataURI:         toDataURI(encoded),
				Prompt:          prompt,
				SanitizedPrompt: cleaned.Sanitized,
				WasSanitized:    wasSanitized,
				Alerts:          cleaned.Alerts,
				Model:           generationModel,
				AspectRatio:     aspect,
				Seed:            gen.Seed,
				MediaID:         gen.MediaGenerationID,
				WorkflowID:      gen.WorkflowID,
				FingerprintID:   gen.FingerprintLogRecordID,
			})
		}
	}

	if len(images) == 0 {
		return nil, fault.New(fault.KindEmpty, "provider returned no images")
	}
	return images, nil
}

func retryBudget(retries *int) int {
	if retries == nil {
		return defaultRetries
	}
	if *retries < 0 {
		return 0
	}
	return *retries
}

// execute runs the request with an explicit bounded loop: one initial
// attempt plus the retry budget, fixed delay between attempts. Only
// transient failures are retried; auth and policy rejections surface at
// once because repeating them with identical inputs cannot succeed.
func (c *Client) execute(ctx context.Context, req generateRequest, retries int) (*generateResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying image generation",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var resp generateResponse
		err := httpclient.PostJSON(ctx, c.client, c.generateURL, c.account.authHeaders(), req, &resp)
		if err == nil {
			return &resp, nil
		}

		lastErr = c.mapUpstreamError(err)
		if !fault.IsRetryable(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// providerReasons is the closed set of rejection codes we translate. The
// messages are what end users see, so they explain rather than parrot.
var providerReasons = map[string]string{
	"PUBLIC_ERROR_UNSAFE":           "O prompt foi bloqueado pelo filtro de segurança do provedor. Remova termos sensíveis e tente novamente.",
	"PUBLIC_ERROR_PROMINENT_PEOPLE": "O prompt menciona pessoas famosas, que o provedor não permite gerar. Remova nomes ou descrições de pessoas conhecidas.",
	"PUBLIC_ERROR_LOW_QUALITY":      "O provedor recusou o prompt por gerar resultados de baixa qualidade. Tente reformular com mais detalhes.",
}

type providerErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// mapUpstreamError classifies a failed generation call. Known provider
// reason codes become content-policy errors with fixed readable messages;
// 429 gets a dedicated rate-limit message; everything else keeps the HTTP
// status and raw body for debugging.
func (c *Client) mapUpstreamError(err error) error {
	var ue *httpclient.UpstreamError
	if !errors.As(err, &ue) {
		return fault.Wrap(fault.KindTransient, "image generation request failed", err)
	}

	if ue.IsAuth() {
		return fault.Authf(ue.StatusCode, "imagefx rejected the session token")
	}

	if reason := extractReason(ue.Body); reason != "" {
		if msg, known := providerReasons[reason]; known {
			return fault.New(fault.KindContentPolicy, msg).WithStatus(ue.StatusCode)
		}
	}

	if ue.StatusCode == http.StatusTooManyRequests {
		return fault.New(fault.KindProvider, "Limite de requisições atingido. Aguarde alguns instantes antes de gerar novamente.").WithStatus(ue.StatusCode)
	}

	if ue.IsTransient() {
		return fault.Wrap(fault.KindTransient, fmt.Sprintf("imagefx upstream failure (status %d)", ue.StatusCode), err)
	}
	return fault.Wrap(fault.KindProvider, fmt.Sprintf("imagefx error (status %d): %s", ue.StatusCode, truncate(string(ue.Body), 300)), err).WithStatus(ue.StatusCode)
}

// extractReason digs the provider's reason code out of an error body of
// varying shape. Unparseable bodies yield "" and fall through to the
// generic message.
func extractReason(body []byte) string {
	var parsed providerErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Error.Reason != "" {
		return parsed.Error.Reason
	}
	for _, d := range parsed.Error.Details {
		if d.Reason != "" {
			return d.Reason
		}
	}
	return ""
}

// newSessionID builds the per-request correlation identifier: wall-clock
// millis plus a random suffix. Distinct from the account's auth token.
func newSessionID() string {
	return fmt.Sprintf("%d;%d", time.Now().UnixMilli(), rand.Int31())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
