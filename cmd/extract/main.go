package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/macthinh22/my-knowledge-app/internal/app"
	"github.com/macthinh22/my-knowledge-app/internal/config"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/service"
)

// inlineScheduler leaves the job queued so main can run it in the foreground.
type inlineScheduler struct{}

func (inlineScheduler) Schedule(string) {}

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "knowledge-extract",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	videoURL := flag.String("url", "", "YouTube video URL to extract")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *videoURL == "" {
		fmt.Fprintln(os.Stderr, "usage: extract -url <youtube url> [-config path]")
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	appLogger = app.NewLogger(&cfg.Log, "knowledge-extract")
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	intake := service.NewIntakeService(application.JobRepo, application.VideoRepo, inlineScheduler{})
	job, err := intake.Submit(ctx, *videoURL)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to submit video")
	}
	appLogger.WithFields(logger.Fields{
		logger.FieldJobID:     job.ID,
		logger.FieldYouTubeID: job.YouTubeID,
		logger.FieldStatus:    job.Status,
	}).Info("Job accepted")

	if err := application.Runner.Run(ctx, job.ID); err != nil {
		appLogger.WithError(err).Fatal("Extraction failed")
	}

	job, err = intake.Job(ctx, job.ID)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to reload job")
	}
	if job.VideoID == nil {
		appLogger.WithField(logger.FieldStatus, job.Status).Fatal("Job finished without a video")
	}
	video, err := application.Videos.Get(ctx, *job.VideoID)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load video")
	}

	out, err := json.MarshalIndent(video, "", "  ")
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to encode video")
	}
	fmt.Println(string(out))
}
