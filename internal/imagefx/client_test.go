package imagefx_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/imagefx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAccount(t *testing.T) (*imagefx.Account, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access_token":"tok","expires":%q,"user":{"name":"dev"}}`,
			time.Now().Add(time.Hour).Format(time.RFC3339))
	}))
	acct, err := imagefx.NewAccount("cookie-value", zap.NewNop(), imagefx.WithSessionURL(server.URL))
	require.NoError(t, err)
	return acct, server.Close
}

func encodedPNG(t *testing.T, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func panelsBody(t *testing.T, encoded string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"imagePanels": []map[string]any{{
			"prompt": "p",
			"generatedImages": []map[string]any{{
				"encodedImage":           encoded,
				"seed":                   int64(42),
				"mediaGenerationId":      "media-1",
				"workflowId":             "wf-1",
				"fingerprintLogRecordId": "fp-1",
			}},
		}},
	})
	require.NoError(t, err)
	return string(body)
}

func TestGenerateHappyPath(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	encoded := encodedPNG(t, 1280, 720)
	var gotReq map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cookie-value", r.Header.Get("Cookie"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, panelsBody(t, encoded))
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	seed := int64(7)
	images, err := client.Generate(context.Background(), "uma paisagem tranquila", imagefx.Options{
		Seed:           &seed,
		Count:          2,
		NegativePrompt: "texto",
	})
	require.NoError(t, err)
	require.Len(t, images, 1)

	img := images[0]
	assert.True(t, strings.HasPrefix(img.DataURI, "data:image/png;base64,"))
	assert.Equal(t, "uma paisagem tranquila", img.Prompt)
	assert.Equal(t, "uma paisagem tranquila", img.SanitizedPrompt)
	assert.False(t, img.WasSanitized)
	assert.Empty(t, img.Alerts)
	assert.Equal(t, "IMAGEN_3_5", img.Model)
	assert.Equal(t, "IMAGE_ASPECT_RATIO_LANDSCAPE", img.AspectRatio)
	assert.Equal(t, int64(42), img.Seed)
	assert.Equal(t, "media-1", img.MediaID)
	assert.Equal(t, "wf-1", img.WorkflowID)
	assert.Equal(t, "fp-1", img.FingerprintID)

	userInput := gotReq["userInput"].(map[string]any)
	assert.Equal(t, float64(2), userInput["candidatesCount"])
	assert.Equal(t, []any{"uma paisagem tranquila"}, userInput["prompts"])
	assert.Equal(t, float64(7), userInput["seed"])
	assert.Equal(t, []any{"texto"}, userInput["negativePrompts"])
	assert.Equal(t, "IMAGE_FX", gotReq["clientContext"].(map[string]any)["tool"])
	assert.Equal(t, "IMAGEN_3_5", gotReq["modelInput"].(map[string]any)["modelNameType"])
	assert.Equal(t, "IMAGE_ASPECT_RATIO_LANDSCAPE", gotReq["aspectRatio"])
}

func TestGenerateSanitizesPrompt(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	encoded := encodedPNG(t, 1280, 720)
	var sentPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sentPrompt = req["userInput"].(map[string]any)["prompts"].([]any)[0].(string)
		fmt.Fprint(w, panelsBody(t, encoded))
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	images, err := client.Generate(context.Background(), "uma paisagem sangue e violencia", imagefx.Options{})
	require.NoError(t, err)
	require.Len(t, images, 1)

	assert.True(t, images[0].WasSanitized)
	require.Len(t, images[0].Alerts, 1)
	assert.Contains(t, images[0].Alerts[0], "sangue")
	assert.Contains(t, images[0].Alerts[0], "violencia")
	assert.NotContains(t, sentPrompt, "sangue")
	assert.NotContains(t, sentPrompt, "violencia")
	assert.Equal(t, images[0].SanitizedPrompt, sentPrompt)
	assert.Equal(t, "uma paisagem sangue e violencia", images[0].Prompt)
}

func TestGenerateEmptyPromptFailsFast(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	_, err := client.Generate(context.Background(), "   ", imagefx.Options{})
	require.Error(t, err)
	assert.Equal(t, fault.KindConfig, fault.KindOf(err))
	assert.Equal(t, 0, hits)
}

func TestGenerateRetriesTransientToExhaustion(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	_, err := client.Generate(context.Background(), "paisagem", imagefx.Options{})
	require.Error(t, err)
	assert.Equal(t, fault.KindTransient, fault.KindOf(err))
	// default budget: one initial attempt plus two retries
	assert.Equal(t, 3, attempts)
}

func TestGenerateRecoversOnSecondAttempt(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	encoded := encodedPNG(t, 1280, 720)
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, panelsBody(t, encoded))
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	images, err := client.Generate(context.Background(), "paisagem", imagefx.Options{})
	require.NoError(t, err)
	assert.Len(t, images, 1)
	assert.Equal(t, 2, attempts)
}

func TestGenerateDoesNotRetryAuthFailure(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	_, err := client.Generate(context.Background(), "paisagem", imagefx.Options{})
	require.Error(t, err)
	assert.Equal(t, fault.KindAuth, fault.KindOf(err))
	assert.Equal(t, 1, attempts)
}

func TestGenerateMapsContentPolicyReason(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"blocked","details":[{"reason":"PUBLIC_ERROR_UNSAFE"}]}}`)
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	_, err := client.Generate(context.Background(), "paisagem", imagefx.Options{})
	require.Error(t, err)
	assert.Equal(t, fault.KindContentPolicy, fault.KindOf(err))
	assert.Contains(t, err.Error(), "filtro de segurança")
	assert.Equal(t, 1, attempts)
}

func TestGenerateMapsRateLimit(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	_, err := client.Generate(context.Background(), "paisagem", imagefx.Options{})
	require.Error(t, err)
	assert.Equal(t, fault.KindProvider, fault.KindOf(err))
	assert.Contains(t, err.Error(), "Limite de requisições")
}

func TestGenerateEmptyPanelsIsEmptyError(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"imagePanels":[]}`)
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	_, err := client.Generate(context.Background(), "paisagem", imagefx.Options{})
	require.Error(t, err)
	assert.Equal(t, fault.KindEmpty, fault.KindOf(err))
}

func TestGenerateFixesAspectRatio(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	square := encodedPNG(t, 1000, 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, panelsBody(t, square))
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	images, err := client.Generate(context.Background(), "paisagem", imagefx.Options{FixAspectRatio: true})
	require.NoError(t, err)
	require.Len(t, images, 1)

	payload := strings.TrimPrefix(images[0].DataURI, "data:image/png;base64,")
	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
}

func TestGenerateZeroRetriesOption(t *testing.T) {
	acct, closeSession := testAccount(t)
	defer closeSession()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := imagefx.NewClient(acct, zap.NewNop(), imagefx.WithGenerateURL(server.URL))

	zero := 0
	_, err := client.Generate(context.Background(), "paisagem", imagefx.Options{Retries: &zero})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
