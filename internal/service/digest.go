package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
)

const defaultDigestMaxVideos = 3

// Notifier delivers a review digest.
type Notifier interface {
	SendDigest(ctx context.Context, videos []domain.Video) error
}

// SelectDigest picks between 1 and max random videos, never more than exist.
// It returns nil when videos is empty.
func SelectDigest(videos []domain.Video, rng *rand.Rand, max int) []domain.Video {
	if len(videos) == 0 {
		return nil
	}
	if max <= 0 {
		max = defaultDigestMaxVideos
	}
	n := rng.Intn(max) + 1
	if n > len(videos) {
		n = len(videos)
	}

	picked := make([]domain.Video, 0, n)
	for _, i := range rng.Perm(len(videos))[:n] {
		picked = append(picked, videos[i])
	}
	return picked
}

// DigestService sends the daily review email.
type DigestService struct {
	videos    *repository.VideoRepository
	notifier  Notifier
	maxVideos int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDigestService creates a digest service. rng may be nil.
func NewDigestService(videos *repository.VideoRepository, notifier Notifier, maxVideos int, rng *rand.Rand) *DigestService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &DigestService{videos: videos, notifier: notifier, maxVideos: maxVideos, rng: rng}
}

// Send selects videos and hands them to the notifier.
// Returns:
//   - int: number of videos sent; 0 when the library is empty.
//   - error: repository or notifier failure.
func (s *DigestService) Send(ctx context.Context) (int, error) {
	ctx = logger.SetComponent(ctx, "digest")
	all, err := s.videos.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	picked := SelectDigest(all, s.rng, s.maxVideos)
	s.mu.Unlock()
	if len(picked) == 0 {
		logger.CtxInfo(ctx, "No videos stored, skipping digest")
		return 0, nil
	}

	start := time.Now()
	if err := s.notifier.SendDigest(ctx, picked); err != nil {
		return 0, err
	}
	logger.With(logger.Fields{
		logger.FieldCount:      len(picked),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Digest sent")
	return len(picked), nil
}

// NextDigestRun returns the next hour:00 strictly after now, in now's location.
func NextDigestRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunDaily sends a digest every day at hour until ctx is cancelled.
// Failures are logged and the next day's run is still scheduled.
func (s *DigestService) RunDaily(ctx context.Context, hour int) {
	ctx = logger.SetComponent(ctx, "digest")
	for {
		next := NextDigestRun(time.Now(), hour)
		logger.CtxInfo(ctx, "Next digest at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.Send(ctx); err != nil {
			logger.CtxError(ctx, "Daily digest failed: %v", err)
		}
	}
}
