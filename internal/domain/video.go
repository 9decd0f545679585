package domain

import (
	"time"

	"gorm.io/datatypes"
)

// TranscriptSource records where a video's transcript came from.
type TranscriptSource string

const (
	TranscriptSourceCaptions TranscriptSource = "captions"
	TranscriptSourceWhisper  TranscriptSource = "whisper"
)

// Video is the durable result of a successful analysis run.
// YouTubeID is unique across all rows.
type Video struct {
	ID                    string                      `gorm:"type:text;primaryKey" json:"id"`
	YouTubeURL            string                      `gorm:"column:youtube_url;type:text;not null" json:"youtube_url"`
	YouTubeID             string                      `gorm:"column:youtube_id;type:varchar(20);not null;uniqueIndex:idx_videos_youtube_id" json:"youtube_id"`
	Title                 string                      `gorm:"type:text" json:"title"`
	ThumbnailURL          *string                     `gorm:"type:text" json:"thumbnail_url"`
	ChannelName           *string                     `gorm:"type:text" json:"channel_name"`
	Duration              *int                        `json:"duration"`
	Explanation           *string                     `gorm:"type:text" json:"explanation"`
	KeyKnowledge          *string                     `gorm:"type:text" json:"key_knowledge"`
	CriticalAnalysis      *string                     `gorm:"type:text" json:"critical_analysis"`
	RealWorldApplications *string                     `gorm:"type:text" json:"real_world_applications"`
	Keywords              datatypes.JSONSlice[string] `json:"keywords"`
	Notes                 *string                     `gorm:"type:text" json:"notes"`
	TranscriptSource      *TranscriptSource           `gorm:"type:varchar(20)" json:"transcript_source"`
	CreatedAt             time.Time                   `gorm:"index:idx_videos_created_at" json:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for Video.
func (Video) TableName() string {
	return "videos"
}

// KeywordList returns the keywords as a plain slice, never nil.
func (v *Video) KeywordList() []string {
	if v.Keywords == nil {
		return []string{}
	}
	return []string(v.Keywords)
}

// VideoSearchResult is a video matched by semantic search.
type VideoSearchResult struct {
	Video
	Score float32 `json:"score"`
}

// VideoSummary is the list view of a video without the long analysis fields.
type VideoSummary struct {
	ID               string            `json:"id"`
	YouTubeURL       string            `json:"youtube_url"`
	YouTubeID        string            `json:"youtube_id"`
	Title            string            `json:"title"`
	ThumbnailURL     *string           `json:"thumbnail_url"`
	ChannelName      *string           `json:"channel_name"`
	Duration         *int              `json:"duration"`
	Explanation      *string           `json:"explanation"`
	KeyKnowledge     *string           `json:"key_knowledge"`
	Keywords         []string          `json:"keywords"`
	TranscriptSource *TranscriptSource `json:"transcript_source"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Summary returns the list view of v.
func (v *Video) Summary() VideoSummary {
	return VideoSummary{
		ID:               v.ID,
		YouTubeURL:       v.YouTubeURL,
		YouTubeID:        v.YouTubeID,
		Title:            v.Title,
		ThumbnailURL:     v.ThumbnailURL,
		ChannelName:      v.ChannelName,
		Duration:         v.Duration,
		Explanation:      v.Explanation,
		KeyKnowledge:     v.KeyKnowledge,
		Keywords:         v.KeywordList(),
		TranscriptSource: v.TranscriptSource,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}
