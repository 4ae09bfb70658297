package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lumeo/content-api/internal/modelcaps"
	"go.uber.org/zap"
)

type LimitsHandler struct {
	logger *zap.Logger
}

func NewLimitsHandler(logger *zap.Logger) *LimitsHandler {
	return &LimitsHandler{logger: logger}
}

type limitsResponse struct {
	Model      string           `json:"model"`
	Normalized string           `json:"normalized"`
	Limits     modelcaps.Limits `json:"limits"`
	Fit        *modelcaps.Fit   `json:"fit,omitempty"`
}

// Limits exposes the capability table plus an optional pre-flight fit
// check: pass prompt and/or desired_output to see whether a request would
// fit the model's window before paying for it.
func (h *LimitsHandler) Limits(c *gin.Context) {
	model := c.Query("model")
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"kind":    "validation",
			"details": gin.H{"model": "model query parameter is required"},
		}})
		return
	}

	resp := limitsResponse{
		Model:      model,
		Normalized: modelcaps.Normalize(model),
		Limits:     modelcaps.Lookup(model, h.logger),
	}

	prompt := c.Query("prompt")
	desired, _ := strconv.Atoi(c.Query("desired_output"))
	if prompt != "" || desired > 0 {
		fit := modelcaps.FitsInLimits(model, prompt, desired, h.logger)
		resp.Fit = &fit
	}

	c.JSON(http.StatusOK, resp)
}
