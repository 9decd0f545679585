// Package app assembles repositories, clients and services from config.
// The API server and the command line tools share it so they run the
// same pipeline.
package app

import (
	"context"
	"fmt"

	"github.com/macthinh22/my-knowledge-app/internal/config"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/notify"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
	"github.com/macthinh22/my-knowledge-app/internal/service"
	"github.com/macthinh22/my-knowledge-app/internal/storage"
	"github.com/macthinh22/my-knowledge-app/internal/youtube"
	"gorm.io/gorm"
)

// App holds the wired components.
type App struct {
	Config *config.Config
	DB     *gorm.DB

	JobRepo   *repository.JobRepository
	VideoRepo *repository.VideoRepository
	AliasRepo *repository.TagAliasRepository

	Tags   *service.TagService
	Runner *service.JobRunner
	Intake *service.IntakeService
	Videos *service.VideoService
	Search *service.SearchService
	// Digest is nil when email is not configured.
	Digest *service.DigestService

	closers []func() error
}

// New builds every component. Optional integrations (Data API, audio
// archive, semantic index, email) are only created when configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.DB = db
	a.JobRepo = repository.NewJobRepository(db)
	a.VideoRepo = repository.NewVideoRepository(db)
	a.AliasRepo = repository.NewTagAliasRepository(db)

	ytdlp := youtube.NewYtdlp(cfg.YouTube.YtdlpPath, cfg.YouTube.CommandTimeout)
	ffmpeg := youtube.NewFFmpeg(cfg.YouTube.FFmpegPath, cfg.YouTube.FFprobePath, cfg.YouTube.CommandTimeout)
	captions := youtube.NewCaptionClient(ytdlp, cfg.YouTube.CaptionLanguages)

	var metadata service.MetadataProvider = ytdlp
	if cfg.YouTube.DataAPIKey != "" {
		dataAPI, err := youtube.NewDataAPIClient(ctx, cfg.YouTube.DataAPIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init youtube data api: %w", err)
		}
		dataAPI.SetFallback(ytdlp)
		metadata = dataAPI
		logger.CtxInfo(ctx, "Using YouTube Data API for metadata")
	}

	archive, err := newAudioArchive(ctx, &cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	limiter := service.NewProviderLimiter(cfg.OpenAI.RequestsPerMinute)
	speech := service.NewSpeechService(&service.SpeechConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.TranscriptionModel,
		Timeout: cfg.OpenAI.UploadTimeout,
		Limiter: limiter,
	})
	transcriber := service.NewTranscriptionService(ytdlp, ffmpeg, speech, archive, &service.TranscriptionConfig{
		MaxUploadMB:   cfg.Transcription.MaxUploadMB,
		TargetChunkMB: cfg.Transcription.TargetChunkMB,
		WorkDir:       cfg.YouTube.WorkDir,
	})
	analyzer := service.NewAnalyzerService(&service.AnalyzerConfig{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.AnalysisModel,
		Temperature: cfg.OpenAI.Temperature,
		Language:    cfg.OpenAI.OutputLanguage,
		Timeout:     cfg.OpenAI.AnalysisTimeout,
		Limiter:     limiter,
	})

	var (
		vectors  service.VectorStore
		embedder service.Embedder
	)
	if cfg.Qdrant.Enabled {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init qdrant: %w", err)
		}
		a.closers = append(a.closers, qdrantRepo.Close)
		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure qdrant collection: %w", err)
		}
		vectors = qdrantRepo
		embedder = service.NewEmbeddingService(&service.EmbeddingConfig{
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
		})
		logger.With(logger.Fields{
			"collection": cfg.Qdrant.Collection,
			"model":      cfg.Embedding.Model,
		}).Info(ctx, "Semantic search enabled")
	}
	a.Search = service.NewSearchService(a.VideoRepo, vectors, embedder, nil)

	var indexer service.VideoIndexer
	if a.Search.Semantic() {
		indexer = a.Search
	}

	a.Tags = service.NewTagService(db, a.VideoRepo, a.AliasRepo)
	a.Runner = service.NewJobRunner(&service.JobRunnerConfig{
		Jobs:       a.JobRepo,
		Videos:     a.VideoRepo,
		Tags:       a.Tags,
		Metadata:   metadata,
		Captions:   captions,
		Fallback:   transcriber,
		Analyzer:   analyzer,
		Indexer:    indexer,
		RunTimeout: cfg.Jobs.RunTimeout,
	})
	a.Intake = service.NewIntakeService(a.JobRepo, a.VideoRepo, a.Runner)
	a.Videos = service.NewVideoService(a.VideoRepo, indexer, archive)

	if cfg.Email.Configured() {
		notifier := notify.NewEmailNotifier(notify.EmailConfig{
			Host:      cfg.Email.SMTPHost,
			Port:      cfg.Email.SMTPPort,
			Address:   cfg.Email.Address,
			Password:  cfg.Email.Password,
			Recipient: cfg.Email.Recipient,
			Subject:   cfg.Digest.Subject,
		})
		a.Digest = service.NewDigestService(a.VideoRepo, notifier, cfg.Digest.MaxVideos, nil)
	}

	return a, nil
}

// newAudioArchive returns a nil interface when storage is disabled so the
// transcription service skips archiving entirely.
func newAudioArchive(ctx context.Context, cfg *config.StorageConfig) (service.AudioArchive, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Type),
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure storage bucket: %w", err)
	}
	logger.With(logger.Fields{
		"bucket": cfg.Bucket,
		"prefix": cfg.Prefix,
	}).Info(ctx, "Audio archive enabled")
	return storage.NewAudioArchive(store, cfg.Prefix), nil
}

// Close releases external connections. Errors are logged.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Failed to close resource: %v", err)
		}
	}
	a.closers = nil
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// NewLogger builds the process logger from the log section and installs it
// as the default.
func NewLogger(cfg *config.LogConfig, serviceName string) *logger.Logger {
	envCfg := logger.LoadFromEnv().Override(cfg.Level, cfg.Format, cfg.File, cfg.Environment)
	envCfg.ServiceName = serviceName
	log := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(log)
	return log
}
