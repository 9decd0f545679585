package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50

	// Jina accepts 8192 tokens; characters are a safe upper bound.
	maxEmbeddingChars = 8000
)

// VectorStore is the subset of the Qdrant repository used for video search.
type VectorStore interface {
	Upsert(ctx context.Context, pointID string, vector []float32, payload *repository.VideoPayload) error
	Search(ctx context.Context, vector []float32, topK int, keyword string) ([]repository.SearchResult, error)
	Delete(ctx context.Context, pointID string) error
}

// Embedder produces passage and query vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// SearchConfig holds configuration for search service.
type SearchConfig struct {
	ScoreThreshold float32
}

// SearchService handles video search. Without a vector store it falls back
// to substring matching on title, channel and keywords.
type SearchService struct {
	videos         *repository.VideoRepository
	vectors        VectorStore
	embedding      Embedder
	scoreThreshold float32
}

// NewSearchService creates a new search service.
// Parameters:
//   - videos: repository for video records.
//   - vectors: optional vector store; nil disables semantic search.
//   - embedding: embedding provider, required when vectors is set.
//   - cfg: search configuration settings.
//
// Returns:
//   - *SearchService: initialized search service.
func NewSearchService(videos *repository.VideoRepository, vectors VectorStore, embedding Embedder, cfg *SearchConfig) *SearchService {
	var threshold float32
	if cfg != nil {
		threshold = cfg.ScoreThreshold
	}
	return &SearchService{
		videos:         videos,
		vectors:        vectors,
		embedding:      embedding,
		scoreThreshold: threshold,
	}
}

// Semantic reports whether vector search is configured.
func (s *SearchService) Semantic() bool {
	return s.vectors != nil && s.embedding != nil
}

// IndexVideo embeds a video's analysis and stores it under the video ID.
func (s *SearchService) IndexVideo(ctx context.Context, video *domain.Video) error {
	if !s.Semantic() {
		return nil
	}

	start := time.Now()
	vector, err := s.embedding.Embed(ctx, videoEmbeddingText(video))
	if err != nil {
		return fmt.Errorf("embed video: %w", err)
	}

	payload := &repository.VideoPayload{
		VideoID:   video.ID,
		YouTubeID: video.YouTubeID,
		Title:     video.Title,
		Keywords:  video.KeywordList(),
	}
	if video.ChannelName != nil {
		payload.ChannelName = *video.ChannelName
	}
	if err := s.vectors.Upsert(ctx, video.ID, vector, payload); err != nil {
		return err
	}

	logger.With(logger.Fields{
		logger.FieldVideoID:    video.ID,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Video indexed for search")
	return nil
}

// RemoveVideo deletes a video's vector.
func (s *SearchService) RemoveVideo(ctx context.Context, videoID string) error {
	if !s.Semantic() {
		return nil
	}
	return s.vectors.Delete(ctx, videoID)
}

// Search finds videos matching query.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: free text; must not be blank.
//   - limit: maximum results, clamped to [1, 50]; 0 means 10.
//   - keyword: optional tag every result must carry.
//
// Returns:
//   - []domain.VideoSearchResult: matches, best first.
//   - error: domain.ErrInvalidInput for a blank query.
func (s *SearchService) Search(ctx context.Context, query string, limit int, keyword string) ([]domain.VideoSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}
	keyword = NormalizeTag(keyword)

	if s.Semantic() {
		results, err := s.semanticSearch(ctx, query, limit, keyword)
		if err == nil {
			return results, nil
		}
		logger.CtxWarn(ctx, "Semantic search failed, falling back to text match: %v", err)
	}
	return s.textSearch(ctx, query, limit, keyword)
}

func (s *SearchService) semanticSearch(ctx context.Context, query string, limit int, keyword string) ([]domain.VideoSearchResult, error) {
	vector, err := s.embedding.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.vectors.Search(ctx, vector, limit, keyword)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= s.scoreThreshold {
			ids = append(ids, hit.ID)
		}
	}
	videos, err := s.videos.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}

	results := make([]domain.VideoSearchResult, 0, len(ids))
	for _, hit := range hits {
		v, ok := byID[hit.ID]
		if !ok || hit.Score < s.scoreThreshold {
			// Points of deleted videos are skipped.
			continue
		}
		results = append(results, domain.VideoSearchResult{Video: v, Score: hit.Score})
	}
	return results, nil
}

func (s *SearchService) textSearch(ctx context.Context, query string, limit int, keyword string) ([]domain.VideoSearchResult, error) {
	videos, err := s.videos.List(ctx, query)
	if err != nil {
		return nil, err
	}
	results := make([]domain.VideoSearchResult, 0, limit)
	for _, v := range videos {
		if keyword != "" && !containsTag(v.KeywordList(), keyword) {
			continue
		}
		results = append(results, domain.VideoSearchResult{Video: v})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func containsTag(keywords []string, tag string) bool {
	for _, kw := range keywords {
		if NormalizeTag(kw) == tag {
			return true
		}
	}
	return false
}

// videoEmbeddingText joins the parts of a video worth matching against.
func videoEmbeddingText(v *domain.Video) string {
	var b strings.Builder
	b.WriteString(v.Title)
	if v.ChannelName != nil {
		b.WriteString("\n")
		b.WriteString(*v.ChannelName)
	}
	if kws := v.KeywordList(); len(kws) > 0 {
		b.WriteString("\nKeywords: ")
		b.WriteString(strings.Join(kws, ", "))
	}
	if v.KeyKnowledge != nil {
		b.WriteString("\n\n")
		b.WriteString(*v.KeyKnowledge)
	}
	if v.Explanation != nil {
		b.WriteString("\n\n")
		b.WriteString(*v.Explanation)
	}

	text := b.String()
	if utf8.RuneCountInString(text) <= maxEmbeddingChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxEmbeddingChars])
}
