package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/edge-gateway/cmd"
	"github.com/nulzo/edge-gateway/internal/catalog"
	"github.com/nulzo/edge-gateway/internal/config"
	"github.com/nulzo/edge-gateway/internal/gateway"
	"github.com/nulzo/edge-gateway/internal/platform/logger"
	"github.com/nulzo/edge-gateway/internal/platform/otel"
	"github.com/nulzo/edge-gateway/internal/provider"
	"github.com/nulzo/edge-gateway/internal/router"
	"github.com/nulzo/edge-gateway/internal/server"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	defaults := provider.Defaults()
	cfg, err := config.LoadConfig(defaults)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// 2. Logger
	logger.Initialize(logger.NewConfig(cfg.Log.Level, cfg.Log.Format))
	log := logger.Get()
	defer logger.Sync()

	log.Info("Starting edge gateway",
		zap.String("version", cmd.AppVersion),
		zap.String("env", cfg.Server.Env),
	)

	// 3. Tracing
	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer(cfg.Tracing.ServiceName, cmd.AppVersion, log, os.Stdout)
		if err != nil {
			log.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Error("Failed to flush traces", zap.Error(err))
			}
		}()
	}

	// 4. Providers and routing
	registry, err := provider.NewRegistry(cfg.Routing.DefaultProvider, provider.Configure(defaults, cfg.BaseURLs())...)
	if err != nil {
		log.Fatal("Failed to build provider registry", zap.Error(err))
	}

	creds := cfg.Credentials()
	gateway.ReportProviders(registry, creds, log)

	client := &http.Client{}
	rt := router.New(registry, router.WithStrict(cfg.Routing.Strict))
	models := catalog.NewAggregator(registry, creds, client, log)
	service := gateway.NewService(log, rt, models, creds, client)

	if cfg.Server.CheckUpdates {
		go cmd.CheckForUpdates(context.Background(), client, log)
	}

	// 5. Server
	srv := server.New(cfg, log, service).HTTPServer(":" + cfg.Server.Port)

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 6. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
