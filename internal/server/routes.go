package server

import (
	v1 "github.com/lumeo/content-api/internal/server/v1"
)

func (s *Server) setupRoutes() {
	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group("/api/v1")
	{
		generateHandler := v1.NewGenerateHandler(s.deps)
		api.POST("/generate", generateHandler.Generate)
		api.POST("/generate/stream", generateHandler.Stream)

		imagesHandler := v1.NewImagesHandler(s.deps)
		api.POST("/images", imagesHandler.Generate)

		limitsHandler := v1.NewLimitsHandler(s.logger)
		api.GET("/limits", limitsHandler.Limits)

		settingsHandler := v1.NewSettingsHandler(s.deps)
		api.GET("/settings", settingsHandler.Get)
		api.PUT("/settings", settingsHandler.Put)
		api.DELETE("/settings", settingsHandler.Delete)

		historyHandler := v1.NewHistoryHandler(s.deps)
		api.GET("/generations", historyHandler.Recent)
	}
}
