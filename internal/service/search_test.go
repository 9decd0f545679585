package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memVectors ranks points by dot product with the query vector.
type memVectors struct {
	mu        sync.Mutex
	points    map[string][]float32
	payloads  map[string]*repository.VideoPayload
	searchErr error
}

func newMemVectors() *memVectors {
	return &memVectors{
		points:   make(map[string][]float32),
		payloads: make(map[string]*repository.VideoPayload),
	}
}

func (m *memVectors) Upsert(ctx context.Context, pointID string, vector []float32, payload *repository.VideoPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[pointID] = vector
	m.payloads[pointID] = payload
	return nil
}

func (m *memVectors) Search(ctx context.Context, vector []float32, topK int, keyword string) ([]repository.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var results []repository.SearchResult
	for id, v := range m.points {
		if keyword != "" && !containsTag(m.payloads[id].Keywords, keyword) {
			continue
		}
		var score float32
		for i := range v {
			if i < len(vector) {
				score += v[i] * vector[i]
			}
		}
		results = append(results, repository.SearchResult{ID: id, Score: score, Payload: m.payloads[id]})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *memVectors) Delete(ctx context.Context, pointID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, pointID)
	delete(m.payloads, pointID)
	return nil
}

// newJinaServer embeds text as a one-hot vector keyed on the first matching word.
func newJinaServer(t *testing.T, words []string, tasks *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer jina-key", r.Header.Get("Authorization"))

		var req jinaRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		*tasks = append(*tasks, req.Task)
		mu.Unlock()

		vec := make([]float32, len(words))
		text := strings.ToLower(req.Input[0])
		for i, word := range words {
			if strings.Contains(text, word) {
				vec[i] = 1
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": vec, "index": 0}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchSemantic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	var tasks []string
	srv := newJinaServer(t, []string{"rust", "gopher"}, &tasks)

	vectors := newMemVectors()
	embedder := NewEmbeddingService(&EmbeddingConfig{Model: "jina-embeddings-v3", APIKey: "jina-key", BaseURL: srv.URL + "/", Dimensions: 2})
	search := NewSearchService(store.videos, vectors, embedder, &SearchConfig{ScoreThreshold: 0.5})
	require.True(t, search.Semantic())

	rust := store.addVideo(t, "rrrrrrrrrrr", "rust")
	rust.Title = "Rust ownership"
	goVideo := store.addVideo(t, "ggggggggggg", "go")
	goVideo.Title = "The gopher way"
	require.NoError(t, search.IndexVideo(ctx, rust))
	require.NoError(t, search.IndexVideo(ctx, goVideo))
	assert.Equal(t, []string{"go"}, vectors.payloads[goVideo.ID].Keywords)

	results, err := search.Search(ctx, "  gopher  ", 0, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, goVideo.ID, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, []string{jinaTaskPassage, jinaTaskPassage, jinaTaskQuery}, tasks)

	// A point whose video is gone is skipped.
	require.NoError(t, store.videos.Delete(ctx, goVideo.ID))
	results, err = search.Search(ctx, "gopher", 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, search.RemoveVideo(ctx, goVideo.ID))
	assert.NotContains(t, vectors.points, goVideo.ID)
}

func TestSearchFallsBackToTextMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.addVideo(t, "aaaaaaaaaaa", "go", "testing")
	store.addVideo(t, "bbbbbbbbbbb", "go")
	store.addVideo(t, "ccccccccccc", "python")

	t.Run("without vector store", func(t *testing.T) {
		search := NewSearchService(store.videos, nil, nil, nil)
		assert.False(t, search.Semantic())

		results, err := search.Search(ctx, "GO", 0, "")
		require.NoError(t, err)
		require.Len(t, results, 2)
		// Newest first.
		assert.Equal(t, "bbbbbbbbbbb", results[0].YouTubeID)
		assert.Zero(t, results[0].Score)

		results, err = search.Search(ctx, "go", 0, "Testing")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "aaaaaaaaaaa", results[0].YouTubeID)

		results, err = search.Search(ctx, "go", 1, "")
		require.NoError(t, err)
		assert.Len(t, results, 1)

		require.NoError(t, search.IndexVideo(ctx, &results[0].Video))
		require.NoError(t, search.RemoveVideo(ctx, results[0].ID))
	})

	t.Run("when vector search errors", func(t *testing.T) {
		var tasks []string
		srv := newJinaServer(t, []string{"go"}, &tasks)
		vectors := newMemVectors()
		vectors.searchErr = errors.New("qdrant unavailable")
		embedder := NewEmbeddingService(&EmbeddingConfig{APIKey: "jina-key", BaseURL: srv.URL})
		search := NewSearchService(store.videos, vectors, embedder, nil)

		results, err := search.Search(ctx, "python", 10, "")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "ccccccccccc", results[0].YouTubeID)
	})
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	store := newTestStore(t)
	search := NewSearchService(store.videos, nil, nil, nil)

	_, err := search.Search(context.Background(), "   ", 10, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbeddingServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	embedder := NewEmbeddingService(&EmbeddingConfig{APIKey: "bad", BaseURL: srv.URL})
	_, err := embedder.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestVideoEmbeddingText(t *testing.T) {
	channel := "Gopher Talks"
	knowledge := "- channels"
	v := &domain.Video{Title: "Concurrency", ChannelName: &channel, KeyKnowledge: &knowledge, Keywords: []string{"go", "concurrency"}}

	text := videoEmbeddingText(v)
	assert.Equal(t, "Concurrency\nGopher Talks\nKeywords: go, concurrency\n\n- channels", text)

	long := strings.Repeat("é", maxEmbeddingChars+10)
	v = &domain.Video{Title: long}
	assert.Equal(t, maxEmbeddingChars, len([]rune(videoEmbeddingText(v))))
}
