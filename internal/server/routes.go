package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/edge-gateway/internal/server/middleware"
	v1 "github.com/nulzo/edge-gateway/internal/server/v1"
	"github.com/nulzo/edge-gateway/pkg/api"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) SetupRoutes() {
	// 1. Global Middleware
	s.SetupMiddleware()

	handler := v1.NewHandler(s.service, s.validator, s.logger)

	// 2. Health and metrics (public)
	s.router.GET("/health", handler.Health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 3. API V1 Group
	group := s.router.Group("/v1")
	if s.config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)
		group.Use(limiter.Middleware())
	}
	{
		group.GET("/models", handler.ListModels)
		group.POST("/chat/completions", handler.CreateCompletion)
		group.POST("/responses", handler.CreateResponse)
	}

	// 4. Everything else
	s.router.NoRoute(notFound)
}

func notFound(c *gin.Context) {
	_ = c.Error(api.NotFound())
}
