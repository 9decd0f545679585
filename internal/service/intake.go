package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
	"github.com/macthinh22/my-knowledge-app/internal/youtube"
)

// Scheduler starts a pipeline run without waiting for it.
type Scheduler interface {
	Schedule(jobID string)
}

// IntakeService accepts video URLs and hands out job records, making sure
// a YouTube ID never has two pipeline runs in flight.
type IntakeService struct {
	jobs      *repository.JobRepository
	videos    *repository.VideoRepository
	scheduler Scheduler
}

// NewIntakeService creates the intake gate.
func NewIntakeService(jobs *repository.JobRepository, videos *repository.VideoRepository, scheduler Scheduler) *IntakeService {
	return &IntakeService{jobs: jobs, videos: videos, scheduler: scheduler}
}

// Submit returns the job responsible for the video behind rawURL.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rawURL: any supported YouTube URL shape.
//
// Returns:
//   - *domain.VideoJob: the active job, a completed job for an already
//     stored video, or a freshly queued job.
//   - error: domain.ErrInvalidInput when no video ID can be extracted.
func (s *IntakeService) Submit(ctx context.Context, rawURL string) (*domain.VideoJob, error) {
	rawURL = strings.TrimSpace(rawURL)
	youtubeID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	ctx = logger.SetYouTubeID(ctx, youtubeID)

	if job, err := s.activeJob(ctx, youtubeID); job != nil || err != nil {
		return job, err
	}

	video, err := s.videos.GetByYouTubeID(ctx, youtubeID)
	switch {
	case err == nil:
		return s.completedJob(ctx, video)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("look up video: %w", err)
	}

	job := &domain.VideoJob{
		ID:          uuid.New().String(),
		YouTubeURL:  rawURL,
		YouTubeID:   youtubeID,
		Status:      domain.JobStatusQueued,
		CurrentStep: 0,
		TotalSteps:  domain.TotalJobSteps(),
		StepLabel:   domain.JobSteps[0],
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, repository.ErrActiveJobExists) {
			// Lost the race against a concurrent submit for the same video.
			if active, err := s.activeJob(ctx, youtubeID); active != nil || err != nil {
				return active, err
			}
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	logger.With(logger.Fields{logger.FieldJobID: job.ID}).Info(ctx, "Job queued")
	s.scheduler.Schedule(job.ID)
	return job, nil
}

func (s *IntakeService) activeJob(ctx context.Context, youtubeID string) (*domain.VideoJob, error) {
	job, err := s.jobs.FindActiveByYouTubeID(ctx, youtubeID)
	switch {
	case err == nil:
		logger.With(logger.Fields{logger.FieldJobID: job.ID}).Info(ctx, "Job already in progress")
		return job, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("look up active job: %w", err)
	}
}

// completedJob finds or creates a completed job pointing at video so the
// caller gets the same response shape without re-running the pipeline.
func (s *IntakeService) completedJob(ctx context.Context, video *domain.Video) (*domain.VideoJob, error) {
	job, err := s.jobs.FindCompletedByVideoID(ctx, video.ID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("look up completed job: %w", err)
	}

	last := domain.TotalJobSteps() - 1
	videoID := video.ID
	job = &domain.VideoJob{
		ID:          uuid.New().String(),
		YouTubeURL:  video.YouTubeURL,
		YouTubeID:   video.YouTubeID,
		Status:      domain.JobStatusCompleted,
		CurrentStep: last,
		TotalSteps:  domain.TotalJobSteps(),
		StepLabel:   domain.JobSteps[last],
		VideoID:     &videoID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create completed job: %w", err)
	}

	logger.With(logger.Fields{
		logger.FieldJobID:   job.ID,
		logger.FieldVideoID: video.ID,
	}).Info(ctx, "Video already processed")
	return job, nil
}

// Job returns one job by ID.
func (s *IntakeService) Job(ctx context.Context, id string) (*domain.VideoJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// Jobs lists jobs newest first, optionally filtered by status.
func (s *IntakeService) Jobs(ctx context.Context, statuses []domain.JobStatus) ([]domain.VideoJob, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown job status %q", domain.ErrInvalidInput, st)
		}
	}
	return s.jobs.List(ctx, statuses)
}
