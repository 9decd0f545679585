package repository

import (
	"context"
	"strings"
	"time"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VideoRepository handles video data operations.
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *VideoRepository: repository instance bound to db.
func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *VideoRepository) WithTx(tx *gorm.DB) *VideoRepository {
	return &VideoRepository{db: tx}
}

// Create inserts a new video record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - video: video record to persist.
//
// Returns:
//   - error: non-nil if the insert fails (gorm.ErrDuplicatedKey on a YouTube ID clash).
func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

// GetByID retrieves a video by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: video ID.
//
// Returns:
//   - *domain.Video: video record if found.
//   - error: domain.ErrNotFound if absent.
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	var video domain.Video
	if err := r.db.WithContext(ctx).First(&video, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &video, nil
}

// GetByYouTubeID retrieves a video by its YouTube identifier.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - youtubeID: 11-character YouTube video ID.
//
// Returns:
//   - *domain.Video: video record if found.
//   - error: domain.ErrNotFound if absent.
func (r *VideoRepository) GetByYouTubeID(ctx context.Context, youtubeID string) (*domain.Video, error) {
	var video domain.Video
	if err := r.db.WithContext(ctx).First(&video, "youtube_id = ?", youtubeID).Error; err != nil {
		return nil, notFound(err)
	}
	return &video, nil
}

// GetByIDs retrieves videos by IDs. Missing IDs are skipped.
func (r *VideoRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Video, error) {
	if len(ids) == 0 {
		return []domain.Video{}, nil
	}
	var videos []domain.Video
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// List returns videos newest first. A non-empty query keeps only videos whose
// title, channel name or keywords contain it, case-insensitively.
func (r *VideoRepository) List(ctx context.Context, query string) ([]domain.Video, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where(
			"LOWER(title) LIKE ? OR LOWER(COALESCE(channel_name, '')) LIKE ? OR LOWER(CAST(keywords AS TEXT)) LIKE ?",
			like, like, like,
		)
	}
	var videos []domain.Video
	if err := q.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// ListAll returns every video in insertion order.
func (r *VideoRepository) ListAll(ctx context.Context) ([]domain.Video, error) {
	var videos []domain.Video
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// Count returns the number of stored videos.
func (r *VideoRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Video{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateNotes replaces the user note and returns the updated record.
func (r *VideoRepository) UpdateNotes(ctx context.Context, id string, notes *string) (*domain.Video, error) {
	res := r.db.WithContext(ctx).Model(&domain.Video{}).Where("id = ?", id).
		Updates(map[string]interface{}{"notes": notes, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// UpdateKeywords rewrites the keyword list of one video.
func (r *VideoRepository) UpdateKeywords(ctx context.Context, id string, keywords []string) error {
	if keywords == nil {
		keywords = []string{}
	}
	res := r.db.WithContext(ctx).Model(&domain.Video{}).Where("id = ?", id).
		Updates(map[string]interface{}{"keywords": datatypes.JSONSlice[string](keywords), "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a video and clears the back-reference on jobs that produced it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: video ID.
//
// Returns:
//   - error: domain.ErrNotFound if absent.
func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.VideoJob{}).Where("video_id = ?", id).
			Update("video_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Video{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
