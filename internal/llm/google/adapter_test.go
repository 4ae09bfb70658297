package google_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/llm"
	"github.com/lumeo/content-api/internal/llm/google"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		// the SSE flag belongs to the streaming path only
		assert.Empty(t, r.URL.Query().Get("alt"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		contents := body["contents"].([]any)
		require.Len(t, contents, 1)
		assert.Equal(t, "user", contents[0].(map[string]any)["role"])

		genCfg := body["generationConfig"].(map[string]any)
		assert.Equal(t, float64(8192), genCfg["maxOutputTokens"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"resposta"}]}}]}`))
	}))
	defer server.Close()

	adapter := google.New(google.Config{APIKey: "test-key", BaseURL: server.URL})

	res, err := adapter.Generate(context.Background(), "gemini-2.5-flash", "oi", llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "resposta", res.Text)
	assert.Nil(t, res.Data)
}

func TestGenerateStructured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		genCfg := body["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", genCfg["response_mime_type"])

		// fenced, trailing comma: exactly what Gemini ships under truncation
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": "```json\n{\"a\":1,}\n```"}},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := google.New(google.Config{APIKey: "k", BaseURL: server.URL})

	res, err := adapter.Generate(context.Background(), "gemini-2.5-flash", "give me json", llm.Options{Schema: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, res.Data)
}

func TestGenerateStructuredUnparseable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"not json and no brackets"}]}}]}`))
	}))
	defer server.Close()

	adapter := google.New(google.Config{APIKey: "k", BaseURL: server.URL})

	_, err := adapter.Generate(context.Background(), "gemini-2.5-flash", "json please", llm.Options{Schema: map[string]any{}})
	require.Error(t, err)
	assert.Equal(t, fault.KindParse, fault.KindOf(err))
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"um \"}]}}]}\n\n" +
				"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"dois\"}]}}]}\n\n"))
	}))
	defer server.Close()

	adapter := google.New(google.Config{APIKey: "k", BaseURL: server.URL})

	ch, err := adapter.Stream(context.Background(), "gemini-2.5-flash", "conte", llm.Options{})
	require.NoError(t, err)

	var got string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got += chunk.Text
	}
	assert.Equal(t, "um dois", got)
}

// A consumer that cancels and walks away must not strand the producer
// goroutine on a channel send with the response body still open.
func TestStreamCancelReleasesProducer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			_, _ = fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"x\"}]}}]}\n\n")
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer server.Close()

	adapter := google.New(google.Config{APIKey: "k", BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := adapter.Stream(ctx, "gemini-2.5-flash", "conte", llm.Options{})
	require.NoError(t, err)

	chunk := <-ch
	require.NoError(t, chunk.Err)
	cancel()

	// no one is receiving anymore; the channel closing is the proof the
	// producer noticed the cancellation and exited
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
