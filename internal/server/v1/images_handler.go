package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumeo/content-api/internal/fault"
	"github.com/lumeo/content-api/internal/imagefx"
	"github.com/lumeo/content-api/internal/server/middleware"
	"github.com/lumeo/content-api/internal/server/validator"
)

type ImagesHandler struct {
	deps *Dependencies
}

func NewImagesHandler(deps *Dependencies) *ImagesHandler {
	return &ImagesHandler{deps: deps}
}

type imagesRequest struct {
	Prompt         string `json:"prompt" binding:"required"`
	Seed           *int64 `json:"seed"`
	NegativePrompt string `json:"negative_prompt"`
	Count          int    `json:"count" binding:"omitempty,min=1,max=8"`
	AspectRatio    string `json:"aspect_ratio"`
	FixAspectRatio bool   `json:"fix_aspect_ratio"`
}

type imagesResponse struct {
	Images []imagefx.Image `json:"images"`
}

func (h *ImagesHandler) Generate(c *gin.Context) {
	var req imagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"kind":    "validation",
			"details": validator.ParseValidationError(err),
		}})
		return
	}

	caller := middleware.CallerID(c)
	settings, err := h.deps.resolveSettings(c.Request.Context(), caller)
	if err != nil {
		_ = c.Error(err)
		return
	}

	cookie := h.deps.cookieFor(settings)
	if cookie == "" {
		_ = c.Error(fault.Configf("no imagefx cookie configured for caller"))
		return
	}

	client, err := h.deps.NewImageClient(cookie)
	if err != nil {
		_ = c.Error(err)
		return
	}

	started := time.Now()
	images, err := client.Generate(c.Request.Context(), req.Prompt, imagefx.Options{
		Seed:           req.Seed,
		NegativePrompt: req.NegativePrompt,
		Count:          req.Count,
		AspectRatio:    req.AspectRatio,
		FixAspectRatio: req.FixAspectRatio,
	})
	h.deps.logGeneration(caller, "image", "imagefx", len(req.Prompt), len(images), started, err)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, imagesResponse{Images: images})
}
