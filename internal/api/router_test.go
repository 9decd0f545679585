package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/macthinh22/my-knowledge-app/internal/api/middleware"
	"github.com/macthinh22/my-knowledge-app/internal/config"
	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
	"github.com/macthinh22/my-knowledge-app/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type noopScheduler struct{ scheduled []string }

func (s *noopScheduler) Schedule(jobID string) { s.scheduled = append(s.scheduled, jobID) }

type testServer struct {
	router    *gin.Engine
	videos    *repository.VideoRepository
	scheduler *noopScheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "api.db"),
		MaxIdleConns: 2,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	videos := repository.NewVideoRepository(db)
	jobs := repository.NewJobRepository(db)
	aliases := repository.NewTagAliasRepository(db)
	scheduler := &noopScheduler{}

	router := SetupRouter(&RouterConfig{
		Mode:   "test",
		CORS:   middleware.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		DB:     db,
		Intake: service.NewIntakeService(jobs, videos, scheduler),
		Videos: service.NewVideoService(videos, nil, nil),
		Search: service.NewSearchService(videos, nil, nil, nil),
		Tags:   service.NewTagService(db, videos, aliases),
	})
	return &testServer{router: router, videos: videos, scheduler: scheduler}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) addVideo(t *testing.T, youtubeID string, keywords ...string) *domain.Video {
	t.Helper()
	v := &domain.Video{
		ID:         uuid.New().String(),
		YouTubeURL: "https://youtu.be/" + youtubeID,
		YouTubeID:  youtubeID,
		Title:      "Video " + youtubeID,
		Keywords:   datatypes.JSONSlice[string](keywords),
	}
	require.NoError(t, s.videos.Create(context.Background(), v))
	return v
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/api/health"} {
		w := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}
}

func TestSubmitVideo(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/videos", map[string]string{"youtube_url": "https://vimeo.com/1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "could not extract YouTube video ID")

	w = s.do(t, http.MethodPost, "/api/videos", map[string]string{"youtube_url": "https://youtu.be/dQw4w9WgXcQ"})
	require.Equal(t, http.StatusAccepted, w.Code)
	job := decode[domain.VideoJob](t, w)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, "dQw4w9WgXcQ", job.YouTubeID)
	assert.Equal(t, 4, job.TotalSteps)

	w = s.do(t, http.MethodPost, "/api/videos", map[string]string{"youtube_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, job.ID, decode[domain.VideoJob](t, w).ID)
	assert.Equal(t, []string{job.ID}, s.scheduler.scheduled)

	w = s.do(t, http.MethodGet, "/api/videos/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, job.ID, decode[domain.VideoJob](t, w).ID)

	w = s.do(t, http.MethodGet, "/api/videos/jobs/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Job not found"}`, w.Body.String())
}

func TestListJobs(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/videos", map[string]string{"youtube_url": "https://youtu.be/aaaaaaaaaaa"})
	s.do(t, http.MethodPost, "/api/videos", map[string]string{"youtube_url": "https://youtu.be/bbbbbbbbbbb"})

	w := s.do(t, http.MethodGet, "/api/videos/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.VideoJob](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/videos/jobs?status=completed,failed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.VideoJob](t, w))

	w = s.do(t, http.MethodGet, "/api/videos/jobs?status=queued,%20processing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.VideoJob](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/videos/jobs?status=running", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVideoCRUD(t *testing.T) {
	s := newTestServer(t)
	video := s.addVideo(t, "aaaaaaaaaaa", "go")
	s.addVideo(t, "bbbbbbbbbbb", "python")

	w := s.do(t, http.MethodGet, "/api/videos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.VideoSummary](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/videos?q=PYTHON", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]domain.VideoSummary](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "bbbbbbbbbbb", list[0].YouTubeID)

	w = s.do(t, http.MethodPatch, "/api/videos/"+video.ID, map[string]string{"notes": "great talk"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[domain.Video](t, w)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "great talk", *updated.Notes)

	w = s.do(t, http.MethodPatch, "/api/videos/"+video.ID, map[string]any{"notes": nil})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, decode[domain.Video](t, w).Notes)

	w = s.do(t, http.MethodGet, "/api/videos/"+video.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"go"}, decode[domain.Video](t, w).Keywords)

	w = s.do(t, http.MethodDelete, "/api/videos/"+video.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w = s.do(t, method, "/api/videos/"+video.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Video not found"}`, w.Body.String())
	}
	w = s.do(t, http.MethodPatch, "/api/videos/"+video.ID, map[string]string{"notes": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchVideos(t *testing.T) {
	s := newTestServer(t)
	s.addVideo(t, "aaaaaaaaaaa", "go")

	w := s.do(t, http.MethodGet, "/api/videos/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/videos/search?q=go&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/videos/search?q=go&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Results  []domain.VideoSearchResult `json:"results"`
		Total    int                        `json:"total"`
		Semantic bool                       `json:"semantic"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.False(t, resp.Semantic)
	assert.Equal(t, "aaaaaaaaaaa", resp.Results[0].YouTubeID)
}

func TestTagEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.addVideo(t, "aaaaaaaaaaa", "golang", "testing")
	s.addVideo(t, "bbbbbbbbbbb", "go")

	w := s.do(t, http.MethodPost, "/api/tags/aliases", map[string]string{"alias": " JS ", "canonical": "javascript"})
	require.Equal(t, http.StatusOK, w.Code)
	alias := decode[domain.TagAlias](t, w)
	assert.Equal(t, "js", alias.Alias)
	assert.Equal(t, "javascript", alias.Canonical)

	w = s.do(t, http.MethodPost, "/api/tags/aliases", map[string]string{"alias": "js", "canonical": "JS"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"alias and canonical tag cannot be the same"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/tags/aliases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.TagAlias](t, w), 1)

	w = s.do(t, http.MethodDelete, "/api/tags/aliases/JS", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/api/tags/aliases/js", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/api/tags/rename", map[string]string{"from_tag": "golang"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"both from_tag and to_tag are required"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/tags/rename", map[string]string{"from_tag": "golang", "to_tag": "go"})
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[[]domain.TagSummary](t, w)
	require.NotEmpty(t, summary)
	assert.Equal(t, "go", summary[0].Tag)
	assert.Equal(t, 2, summary[0].UsageCount)
	assert.Equal(t, []string{"golang"}, summary[0].Aliases)

	w = s.do(t, http.MethodPost, "/api/tags/merge", map[string]any{"source_tags": []string{}, "target_tag": "go"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/tags/merge", map[string]any{"source_tags": []string{"testing"}, "target_tag": "go"})
	require.Equal(t, http.StatusOK, w.Code)
	summary = decode[[]domain.TagSummary](t, w)
	require.Len(t, summary, 1)
	assert.Equal(t, []string{"golang", "testing"}, summary[0].Aliases)

	w = s.do(t, http.MethodDelete, "/api/tags/go", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.TagSummary](t, w))

	w = s.do(t, http.MethodGet, "/api/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/videos", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	assert.True(t, middleware.IsOriginAllowed("http://LOCALHOST:3000", middleware.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}))
	assert.False(t, middleware.IsOriginAllowed("http://evil.test", middleware.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}))
}
