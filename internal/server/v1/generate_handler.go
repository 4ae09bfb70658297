package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumeo/content-api/internal/llm"
	"github.com/lumeo/content-api/internal/server/middleware"
	"github.com/lumeo/content-api/internal/server/validator"
)

type GenerateHandler struct {
	deps *Dependencies
}

func NewGenerateHandler(deps *Dependencies) *GenerateHandler {
	return &GenerateHandler{deps: deps}
}

type generateRequest struct {
	Model           string         `json:"model" binding:"required"`
	Prompt          string         `json:"prompt" binding:"required"`
	MaxOutputTokens int            `json:"max_output_tokens"`
	Temperature     *float64       `json:"temperature"`
	Schema          map[string]any `json:"schema"`
}

type generateResponse struct {
	Model string `json:"model"`
	Text  string `json:"text"`
	Data  any    `json:"data,omitempty"`
}

func (r *generateRequest) options() llm.Options {
	return llm.Options{
		MaxOutputTokens: r.MaxOutputTokens,
		Temperature:     r.Temperature,
		Schema:          r.Schema,
	}
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"kind":    "validation",
			"details": validator.ParseValidationError(err),
		}})
		return
	}

	caller := middleware.CallerID(c)
	service, err := h.serviceFor(c, caller)
	if err != nil {
		_ = c.Error(err)
		return
	}

	started := time.Now()
	result, err := service.Generate(c.Request.Context(), req.Model, req.Prompt, req.options())
	h.deps.logGeneration(caller, "text", req.Model, len(req.Prompt), resultChars(result), started, err)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, generateResponse{
		Model: req.Model,
		Text:  result.Text,
		Data:  result.Data,
	})
}

func (h *GenerateHandler) Stream(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"kind":    "validation",
			"details": validator.ParseValidationError(err),
		}})
		return
	}

	caller := middleware.CallerID(c)
	service, err := h.serviceFor(c, caller)
	if err != nil {
		_ = c.Error(err)
		return
	}

	started := time.Now()
	stream, err := service.Stream(c.Request.Context(), req.Model, req.Prompt, req.options())
	if err != nil {
		h.deps.logGeneration(caller, "text", req.Model, len(req.Prompt), 0, started, err)
		_ = c.Error(err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	var sent int
	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-stream
		if !ok {
			h.deps.logGeneration(caller, "text", req.Model, len(req.Prompt), sent, started, nil)
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		if chunk.Err != nil {
			h.deps.logGeneration(caller, "text", req.Model, len(req.Prompt), sent, started, chunk.Err)
			payload, _ := json.Marshal(gin.H{"error": chunk.Err.Error()})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
			return false
		}

		sent += len(chunk.Text)
		payload, err := json.Marshal(gin.H{"text": chunk.Text})
		if err != nil {
			return false
		}
		_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
		return err == nil
	})
}

// serviceFor builds a gateway bound to the caller's credentials. A fresh
// service per request keeps credential state out of the handler.
func (h *GenerateHandler) serviceFor(c *gin.Context, caller string) (TextService, error) {
	settings, err := h.deps.resolveSettings(c.Request.Context(), caller)
	if err != nil {
		return nil, err
	}
	return h.deps.NewTextService(h.deps.credentialsFor(settings)), nil
}

func resultChars(result *llm.Result) int {
	if result == nil {
		return 0
	}
	return len(result.Text)
}
