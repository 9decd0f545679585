package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/macthinh22/my-knowledge-app/internal/config"
	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type testStore struct {
	db      *gorm.DB
	videos  *repository.VideoRepository
	jobs    *repository.JobRepository
	aliases *repository.TagAliasRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "knowledge.db"),
		MaxIdleConns: 2,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testStore{
		db:      db,
		videos:  repository.NewVideoRepository(db),
		jobs:    repository.NewJobRepository(db),
		aliases: repository.NewTagAliasRepository(db),
	}
}

func (s *testStore) addVideo(t *testing.T, youtubeID string, keywords ...string) *domain.Video {
	t.Helper()
	v := &domain.Video{
		ID:         uuid.New().String(),
		YouTubeURL: "https://youtu.be/" + youtubeID,
		YouTubeID:  youtubeID,
		Title:      "Video " + youtubeID,
		Keywords:   datatypes.JSONSlice[string](keywords),
	}
	require.NoError(t, s.videos.Create(context.Background(), v))
	// Distinct timestamps keep last-used ordering deterministic.
	time.Sleep(5 * time.Millisecond)
	return v
}

func (s *testStore) keywords(t *testing.T, id string) []string {
	t.Helper()
	v, err := s.videos.GetByID(context.Background(), id)
	require.NoError(t, err)
	return v.KeywordList()
}

func (s *testStore) aliasMap(t *testing.T) map[string]string {
	t.Helper()
	m, err := s.aliases.Map(context.Background())
	require.NoError(t, err)
	return m
}
