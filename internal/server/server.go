package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/edge-gateway/internal/config"
	"github.com/nulzo/edge-gateway/internal/gateway"
	"github.com/nulzo/edge-gateway/internal/server/middleware"
	"github.com/nulzo/edge-gateway/internal/server/validator"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	service   gateway.Service
	validator *validator.Validator
}

func New(cfg *config.Config, logger *zap.Logger, service gateway.Service) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	s := &Server{
		router:    engine,
		service:   service,
		logger:    logger,
		config:    cfg,
		validator: validator.New(),
	}

	s.SetupRoutes()
	return s
}

// SetupMiddleware installs the global chain. Order matters: the request id
// must exist before the logger reads it, and CORS headers must be set
// before the error handler renders a body.
func (s *Server) SetupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(ginzap.RecoveryWithZap(s.logger, true))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.Metrics())

	if s.config.Tracing.Enabled {
		// continues an inbound traceparent; upstream.forward spans nest under it
		s.router.Use(otelgin.Middleware(s.config.Tracing.ServiceName))
	}

	s.router.Use(middleware.ErrorHandler(s.logger))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer wraps the engine in an http.Server listening on addr. No write
// timeout is set so long-lived streams are not cut off.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
