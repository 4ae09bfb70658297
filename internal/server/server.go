// Package server assembles the gin engine: middleware chain, route table,
// and the default domain-service factories the handlers use.
package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/lumeo/content-api/internal/config"
	"github.com/lumeo/content-api/internal/gateway"
	"github.com/lumeo/content-api/internal/imagefx"
	"github.com/lumeo/content-api/internal/llm"
	"github.com/lumeo/content-api/internal/server/middleware"
	v1 "github.com/lumeo/content-api/internal/server/v1"
	"github.com/lumeo/content-api/internal/server/validator"
	"github.com/lumeo/content-api/internal/store"
	"github.com/lumeo/content-api/internal/store/cache"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	config *config.Config
	logger *zap.Logger
	deps   *v1.Dependencies
}

type Option func(*Server)

// WithDependencies replaces the handler dependency set, primarily so tests
// can substitute service factories.
func WithDependencies(deps *v1.Dependencies) Option {
	return func(s *Server) { s.deps = deps }
}

func New(cfg *config.Config, logger *zap.Logger, repo store.Repository, opts ...Option) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Init()

	engine := gin.New()
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Identity())
	engine.Use(middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger).Middleware())
	engine.Use(middleware.ErrorHandler(logger))

	s := &Server{
		router: engine,
		config: cfg,
		logger: logger,
		deps:   defaultDependencies(cfg, logger, repo),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// defaultDependencies wires handlers to the real gateway and image
// pipeline. Each request gets a service bound to that caller's credentials.
func defaultDependencies(cfg *config.Config, logger *zap.Logger, repo store.Repository) *v1.Dependencies {
	return &v1.Dependencies{
		Repo:      repo,
		Cache:     cache.NewMemory(),
		Logger:    logger,
		Providers: cfg.Providers,
		ImageFX:   cfg.ImageFX,
		NewTextService: func(creds llm.Credentials) v1.TextService {
			return gateway.NewService(creds, logger)
		},
		NewImageClient: func(cookie string) (v1.ImageGenerator, error) {
			var accountOpts []imagefx.AccountOption
			if cfg.ImageFX.SessionURL != "" {
				accountOpts = append(accountOpts, imagefx.WithSessionURL(cfg.ImageFX.SessionURL))
			}
			account, err := imagefx.NewAccount(cookie, logger, accountOpts...)
			if err != nil {
				return nil, err
			}
			return imagefx.NewClient(account, logger), nil
		},
	}
}
