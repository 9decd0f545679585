package main

import (
	"context"
	"flag"
	"time"

	"github.com/macthinh22/my-knowledge-app/internal/app"
	"github.com/macthinh22/my-knowledge-app/internal/config"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "knowledge-digest",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	timeout := flag.Duration("timeout", 2*time.Minute, "Maximum time to spend sending")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	appLogger = app.NewLogger(&cfg.Log, "knowledge-digest")
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	if application.Digest == nil {
		appLogger.Fatal("Email is not configured; set EMAIL_ADDRESS, EMAIL_PASSWORD and RECIPIENT_EMAIL")
	}

	sent, err := application.Digest.Send(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to send digest")
	}
	appLogger.WithField(logger.FieldCount, sent).Info("Digest sent")
}
