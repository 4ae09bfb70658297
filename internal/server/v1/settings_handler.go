package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumeo/content-api/internal/server/middleware"
	"github.com/lumeo/content-api/internal/server/validator"
	"github.com/lumeo/content-api/internal/store/model"
)

type SettingsHandler struct {
	deps *Dependencies
}

func NewSettingsHandler(deps *Dependencies) *SettingsHandler {
	return &SettingsHandler{deps: deps}
}

type settingsRequest struct {
	OpenAIKey     string   `json:"openai_key"`
	AnthropicKey  string   `json:"anthropic_key"`
	GeminiKeys    []string `json:"gemini_keys"`
	ImageFXCookie string   `json:"imagefx_cookie"`
}

// settingsView is the redacted response shape. Stored secrets never leave
// the server; clients only learn which credentials are present.
type settingsView struct {
	CallerID         string    `json:"caller_id"`
	HasOpenAIKey     bool      `json:"has_openai_key"`
	HasAnthropicKey  bool      `json:"has_anthropic_key"`
	GeminiKeyCount   int       `json:"gemini_key_count"`
	HasImageFXCookie bool      `json:"has_imagefx_cookie"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func viewOf(s *model.Settings) settingsView {
	return settingsView{
		CallerID:         s.CallerID,
		HasOpenAIKey:     s.OpenAIKey != "",
		HasAnthropicKey:  s.AnthropicKey != "",
		GeminiKeyCount:   len(s.GeminiKeys()),
		HasImageFXCookie: s.ImageFXCookie != "",
		UpdatedAt:        s.UpdatedAt,
	}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	caller := middleware.CallerID(c)
	settings, err := h.deps.resolveSettings(c.Request.Context(), caller)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, viewOf(settings))
}

func (h *SettingsHandler) Put(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"kind":    "validation",
			"details": validator.ParseValidationError(err),
		}})
		return
	}

	caller := middleware.CallerID(c)
	settings := &model.Settings{
		CallerID:      caller,
		OpenAIKey:     req.OpenAIKey,
		AnthropicKey:  req.AnthropicKey,
		ImageFXCookie: req.ImageFXCookie,
	}
	settings.SetGeminiKeys(req.GeminiKeys)

	if err := h.deps.Repo.Settings().Upsert(c.Request.Context(), settings); err != nil {
		_ = c.Error(err)
		return
	}
	// drop the stale cache entry so the new keys apply immediately
	_ = h.deps.Cache.Delete(c.Request.Context(), "settings:"+caller)

	c.JSON(http.StatusOK, viewOf(settings))
}

func (h *SettingsHandler) Delete(c *gin.Context) {
	caller := middleware.CallerID(c)
	if err := h.deps.Repo.Settings().Delete(c.Request.Context(), caller); err != nil {
		_ = c.Error(err)
		return
	}
	_ = h.deps.Cache.Delete(c.Request.Context(), "settings:"+caller)

	c.Status(http.StatusNoContent)
}
