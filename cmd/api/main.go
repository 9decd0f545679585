package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/macthinh22/my-knowledge-app/internal/api"
	"github.com/macthinh22/my-knowledge-app/internal/api/middleware"
	"github.com/macthinh22/my-knowledge-app/internal/app"
	"github.com/macthinh22/my-knowledge-app/internal/config"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := app.NewLogger(&cfg.Log, "knowledge-api")
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Pick up jobs left unfinished by the previous process
	if cfg.Jobs.ResumeOnStartup {
		resumed, err := application.Runner.Recover(ctx)
		if err != nil {
			appLogger.WithError(err).Error("Failed to recover jobs")
		} else if resumed > 0 {
			appLogger.WithField(logger.FieldCount, resumed).Info("Resumed unfinished jobs")
		}
	}

	// Daily review digest
	switch {
	case !cfg.Digest.Enabled:
		appLogger.Info("Daily digest disabled")
	case application.Digest == nil:
		appLogger.Warn("Email not configured, daily digest disabled")
	default:
		go application.Digest.RunDaily(ctx, cfg.Digest.Hour)
		appLogger.WithField("hour", cfg.Digest.Hour).Info("Daily digest scheduled")
	}

	// Setup router
	router := api.SetupRouter(&api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Logger: appLogger,
		DB:     application.DB,
		Intake: application.Intake,
		Videos: application.Videos,
		Search: application.Search,
		Tags:   application.Tags,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	// Unfinished jobs stay in the database and resume on next start
	if err := application.Runner.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Interrupted in-flight jobs")
	}

	appLogger.Info("Server exited")
}
