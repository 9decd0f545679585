package service

import (
	"context"
	"strings"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
)

// VideoService serves stored videos and cleans up their side data on delete.
type VideoService struct {
	videos  *repository.VideoRepository
	indexer VideoIndexer
	archive AudioArchive
}

// NewVideoService creates a video service. indexer and archive may be nil.
func NewVideoService(videos *repository.VideoRepository, indexer VideoIndexer, archive AudioArchive) *VideoService {
	return &VideoService{videos: videos, indexer: indexer, archive: archive}
}

// List returns video summaries newest first, filtered by query when non-empty.
func (s *VideoService) List(ctx context.Context, query string) ([]domain.VideoSummary, error) {
	videos, err := s.videos.List(ctx, query)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.VideoSummary, len(videos))
	for i := range videos {
		summaries[i] = videos[i].Summary()
	}
	return summaries, nil
}

// Get returns one full video record.
func (s *VideoService) Get(ctx context.Context, id string) (*domain.Video, error) {
	return s.videos.GetByID(ctx, id)
}

// UpdateNotes replaces the user note. A blank note clears it.
func (s *VideoService) UpdateNotes(ctx context.Context, id string, notes *string) (*domain.Video, error) {
	if notes != nil && strings.TrimSpace(*notes) == "" {
		notes = nil
	}
	return s.videos.UpdateNotes(ctx, id, notes)
}

// Delete removes a video. The vector and archived audio are removed best effort.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: video ID.
//
// Returns:
//   - error: domain.ErrNotFound if absent.
func (s *VideoService) Delete(ctx context.Context, id string) error {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.videos.Delete(ctx, id); err != nil {
		return err
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldVideoID:   video.ID,
		logger.FieldYouTubeID: video.YouTubeID,
	})
	if s.indexer != nil {
		if err := s.indexer.RemoveVideo(ctx, video.ID); err != nil {
			logger.CtxWarn(ctx, "Failed to remove video from search index: %v", err)
		}
	}
	if s.archive != nil {
		if err := s.archive.Remove(ctx, video.YouTubeID); err != nil {
			logger.CtxWarn(ctx, "Failed to remove archived audio: %v", err)
		}
	}
	logger.CtxInfo(ctx, "Video deleted")
	return nil
}
