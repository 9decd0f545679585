package domain

import "time"

// JobStatus represents the status of a video processing job.
// Values include JobStatusQueued, JobStatusProcessing, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ActiveJobStatuses are the statuses a pipeline run may still advance from.
var ActiveJobStatuses = []JobStatus{JobStatusQueued, JobStatusProcessing}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Pipeline step labels, indexed by step number.
var JobSteps = []string{
	"Fetching video information",
	"Transcribing content",
	"Analyzing knowledge",
	"Saving results",
}

const (
	StepFetchMetadata = iota
	StepTranscribe
	StepAnalyze
	StepPersist
)

// JobFailedLabel replaces the step label once a job fails.
const JobFailedLabel = "Failed"

// TotalJobSteps is the fixed number of pipeline stages.
func TotalJobSteps() int {
	return len(JobSteps)
}

// VideoJob tracks one execution attempt of the extraction pipeline.
type VideoJob struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	YouTubeURL   string    `gorm:"column:youtube_url;type:text;not null" json:"youtube_url"`
	YouTubeID    string    `gorm:"column:youtube_id;type:varchar(20);not null;index:idx_video_jobs_youtube_id" json:"youtube_id"`
	Status       JobStatus `gorm:"type:varchar(20);not null;index:idx_video_jobs_status;default:queued" json:"status"`
	CurrentStep  int       `gorm:"not null;default:0" json:"current_step"`
	TotalSteps   int       `gorm:"not null" json:"total_steps"`
	StepLabel    string    `gorm:"type:text;not null" json:"step_label"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message"`
	VideoID      *string   `gorm:"type:text;index:idx_video_jobs_video_id" json:"video_id"`
	Video        *Video    `gorm:"foreignKey:VideoID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt    time.Time `gorm:"index:idx_video_jobs_created_at" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for VideoJob.
func (VideoJob) TableName() string {
	return "video_jobs"
}

// JobState is the mutable part of a job written at each transition.
type JobState struct {
	Status       JobStatus
	CurrentStep  int
	StepLabel    string
	ErrorMessage *string
	VideoID      *string
}
