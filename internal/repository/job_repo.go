package repository

import (
	"context"
	"errors"
	"time"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"gorm.io/gorm"
)

// ErrActiveJobExists is returned when a second queued/processing job is
// inserted for a YouTube ID that already has one.
var ErrActiveJobExists = errors.New("an active job already exists for this video")

// JobRepository handles video job persistence.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to persist.
//
// Returns:
//   - error: ErrActiveJobExists when the active-job index rejects the row.
func (r *JobRepository) Create(ctx context.Context, job *domain.VideoJob) error {
	err := r.db.WithContext(ctx).Create(job).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrActiveJobExists
	}
	return err
}

// GetByID retrieves a job by ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.VideoJob, error) {
	var job domain.VideoJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// FindActiveByYouTubeID returns the newest queued or processing job for a video.
func (r *JobRepository) FindActiveByYouTubeID(ctx context.Context, youtubeID string) (*domain.VideoJob, error) {
	var job domain.VideoJob
	err := r.db.WithContext(ctx).
		Where("youtube_id = ? AND status IN ?", youtubeID, domain.ActiveJobStatuses).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// FindCompletedByVideoID returns the newest completed job that produced videoID.
func (r *JobRepository) FindCompletedByVideoID(ctx context.Context, videoID string) (*domain.VideoJob, error) {
	var job domain.VideoJob
	err := r.db.WithContext(ctx).
		Where("video_id = ? AND status = ?", videoID, domain.JobStatusCompleted).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// List returns jobs newest first, optionally limited to the given statuses.
func (r *JobRepository) List(ctx context.Context, statuses []domain.JobStatus) ([]domain.VideoJob, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var jobs []domain.VideoJob
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListActive returns queued and processing jobs, oldest first.
func (r *JobRepository) ListActive(ctx context.Context) ([]domain.VideoJob, error) {
	var jobs []domain.VideoJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", domain.ActiveJobStatuses).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateState writes one state transition. Terminal rows are never touched:
// the update only matches while the job is still queued or processing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - state: full mutable state to persist (nil pointers are written as NULL).
//
// Returns:
//   - bool: false when the job is missing or already terminal.
//   - error: non-nil if the write fails.
func (r *JobRepository) UpdateState(ctx context.Context, id string, state domain.JobState) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.VideoJob{}).
		Where("id = ? AND status IN ?", id, domain.ActiveJobStatuses).
		Updates(map[string]interface{}{
			"status":        state.Status,
			"current_step":  state.CurrentStep,
			"step_label":    state.StepLabel,
			"error_message": state.ErrorMessage,
			"video_id":      state.VideoID,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
