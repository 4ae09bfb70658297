package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lumeo/content-api/internal/server/middleware"
	"github.com/lumeo/content-api/internal/store/model"
)

const defaultHistoryLimit = 20

type HistoryHandler struct {
	deps *Dependencies
}

func NewHistoryHandler(deps *Dependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

// Recent lists the caller's latest generations, newest first.
func (h *HistoryHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}

	caller := middleware.CallerID(c)
	logs, err := h.deps.Repo.Generations().GetRecent(c.Request.Context(), caller, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if logs == nil {
		logs = []model.GenerationLog{}
	}

	c.JSON(http.StatusOK, gin.H{"generations": logs})
}
