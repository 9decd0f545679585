package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
	"github.com/macthinh22/my-knowledge-app/internal/youtube"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MetadataProvider resolves basic video details.
type MetadataProvider interface {
	FetchMetadata(ctx context.Context, youtubeID string) (*youtube.Metadata, error)
}

// CaptionProvider returns caption text or youtube.ErrCaptionsUnavailable.
type CaptionProvider interface {
	FetchCaptions(ctx context.Context, youtubeID string) (string, error)
}

// FallbackTranscriber produces a transcript when captions are unavailable.
type FallbackTranscriber interface {
	Transcribe(ctx context.Context, youtubeID string) (string, error)
}

// KnowledgeAnalyzer turns a transcript into a structured analysis.
type KnowledgeAnalyzer interface {
	Analyze(ctx context.Context, transcript, title string) (*Analysis, error)
}

// VideoIndexer maintains the optional semantic index.
type VideoIndexer interface {
	IndexVideo(ctx context.Context, video *domain.Video) error
	RemoveVideo(ctx context.Context, videoID string) error
}

// errJobNotActive stops a run whose job was finished by someone else.
var errJobNotActive = errors.New("job is no longer active")

// JobRunnerConfig wires the collaborators of the extraction pipeline.
type JobRunnerConfig struct {
	Jobs       *repository.JobRepository
	Videos     *repository.VideoRepository
	Tags       *TagService
	Metadata   MetadataProvider
	Captions   CaptionProvider
	Fallback   FallbackTranscriber
	Analyzer   KnowledgeAnalyzer
	Indexer    VideoIndexer
	RunTimeout time.Duration
}

// JobRunner executes the four-step pipeline for a job and records every
// transition before moving on.
type JobRunner struct {
	jobs       *repository.JobRepository
	videos     *repository.VideoRepository
	tags       *TagService
	metadata   MetadataProvider
	captions   CaptionProvider
	fallback   FallbackTranscriber
	analyzer   KnowledgeAnalyzer
	indexer    VideoIndexer
	runTimeout time.Duration

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewJobRunner creates a job runner.
// Parameters:
//   - cfg: repositories and external collaborators; Indexer may be nil.
//
// Returns:
//   - *JobRunner: runner ready to schedule jobs.
func NewJobRunner(cfg *JobRunnerConfig) *JobRunner {
	baseCtx, stop := context.WithCancel(context.Background())
	return &JobRunner{
		jobs:       cfg.Jobs,
		videos:     cfg.Videos,
		tags:       cfg.Tags,
		metadata:   cfg.Metadata,
		captions:   cfg.Captions,
		fallback:   cfg.Fallback,
		analyzer:   cfg.Analyzer,
		indexer:    cfg.Indexer,
		runTimeout: cfg.RunTimeout,
		baseCtx:    baseCtx,
		stop:       stop,
	}
}

// Schedule runs the job in the background. The caller does not wait.
func (r *JobRunner) Schedule(jobID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := logger.SetComponent(r.baseCtx, "pipeline")
		_ = r.Run(ctx, jobID)
	}()
}

// Shutdown waits for scheduled runs. When ctx expires first, in-flight runs
// are interrupted and left in their last recorded state.
func (r *JobRunner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.stop()
		return nil
	case <-ctx.Done():
		r.stop()
		<-done
		return ctx.Err()
	}
}

// Recover schedules every job left queued or processing by a previous
// process. Runs restart from the first step.
func (r *JobRunner) Recover(ctx context.Context) (int, error) {
	jobs, err := r.jobs.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active jobs: %w", err)
	}
	for _, job := range jobs {
		logger.With(logger.Fields{
			logger.FieldJobID:     job.ID,
			logger.FieldYouTubeID: job.YouTubeID,
		}).Info(ctx, "Resuming job left at step %d", job.CurrentStep)
		r.Schedule(job.ID)
	}
	return len(jobs), nil
}

// pipelineState carries data between steps of one run.
type pipelineState struct {
	job        *domain.VideoJob
	metadata   *youtube.Metadata
	transcript string
	source     domain.TranscriptSource
	analysis   *Analysis
	video      *domain.Video
}

type pipelineStep struct {
	index int
	run   func(ctx context.Context, st *pipelineState) error
}

// Run executes the pipeline for one job synchronously.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job to run.
//
// Returns:
//   - error: the step failure that ended the run, or nil on completion.
//     The failure is also recorded on the job.
func (r *JobRunner) Run(ctx context.Context, jobID string) (err error) {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		logger.CtxError(ctx, "Failed to load job %s: %v", jobID, err)
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:     job.ID,
		logger.FieldYouTubeID: job.YouTubeID,
	})
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	st := &pipelineState{job: job}
	current := domain.StepFetchMetadata
	defer func() {
		if p := recover(); p != nil {
			logger.With(logger.Fields{"stack": string(debug.Stack())}).
				Error(ctx, "Pipeline panic: %v", p)
			err = fmt.Errorf("internal error: %v", p)
			r.fail(ctx, job.ID, current, err)
		}
	}()

	steps := []pipelineStep{
		{domain.StepFetchMetadata, r.fetchMetadata},
		{domain.StepTranscribe, r.fetchTranscript},
		{domain.StepAnalyze, r.analyze},
		{domain.StepPersist, r.persist},
	}

	start := time.Now()
	logger.CtxInfo(ctx, "Pipeline started")
	for _, step := range steps {
		current = step.index
		label := domain.JobSteps[step.index]
		if err := r.transition(ctx, job.ID, domain.JobState{
			Status:      domain.JobStatusProcessing,
			CurrentStep: step.index,
			StepLabel:   label,
		}); err != nil {
			return err
		}

		stepStart := time.Now()
		if err := step.run(ctx, st); err != nil {
			if r.interrupted() {
				logger.CtxWarn(ctx, "Pipeline interrupted during %q, job left for recovery", label)
				return err
			}
			r.fail(ctx, job.ID, step.index, err)
			return fmt.Errorf("%s: %w", label, err)
		}
		logger.With(logger.Fields{logger.FieldStep: label}).
			Since(stepStart).Info(ctx, "Step completed: %s", label)
	}

	last := domain.TotalJobSteps() - 1
	if err := r.transition(ctx, job.ID, domain.JobState{
		Status:      domain.JobStatusCompleted,
		CurrentStep: last,
		StepLabel:   domain.JobSteps[last],
		VideoID:     &st.video.ID,
	}); err != nil {
		return err
	}

	logger.With(logger.Fields{logger.FieldVideoID: st.video.ID}).
		Since(start).Info(ctx, "Pipeline completed")

	r.index(ctx, st.video)
	return nil
}

// transition durably records a state change.
func (r *JobRunner) transition(ctx context.Context, jobID string, state domain.JobState) error {
	ok, err := r.jobs.UpdateState(ctx, jobID, state)
	if err != nil {
		logger.With(logger.Fields{logger.FieldStatus: string(state.Status)}).
			Error(ctx, "Fatal inconsistency: could not record job %s state: %v", jobID, err)
		return fmt.Errorf("record job state: %w", err)
	}
	if !ok {
		logger.CtxWarn(ctx, "Job %s is no longer active, stopping", jobID)
		return errJobNotActive
	}
	return nil
}

// fail records the terminal failure. It uses a context detached from the
// run deadline so a timed-out step can still be recorded.
func (r *JobRunner) fail(ctx context.Context, jobID string, step int, cause error) {
	msg := cause.Error()
	if msg == "" {
		msg = "unknown error"
	}
	logger.With(logger.Fields{
		logger.FieldStep: domain.JobSteps[step],
	}).Error(ctx, "Pipeline failed: %s", msg)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	_ = r.transition(writeCtx, jobID, domain.JobState{
		Status:       domain.JobStatusFailed,
		CurrentStep:  step,
		StepLabel:    domain.JobFailedLabel,
		ErrorMessage: &msg,
	})
}

func (r *JobRunner) interrupted() bool {
	return r.baseCtx.Err() != nil
}

func (r *JobRunner) fetchMetadata(ctx context.Context, st *pipelineState) error {
	md, err := r.metadata.FetchMetadata(ctx, st.job.YouTubeID)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	if md.Title == "" {
		md.Title = youtube.DefaultTitle
	}
	st.metadata = md
	return nil
}

func (r *JobRunner) fetchTranscript(ctx context.Context, st *pipelineState) error {
	text, err := r.captions.FetchCaptions(ctx, st.job.YouTubeID)
	if err == nil {
		st.transcript, st.source = text, domain.TranscriptSourceCaptions
		return nil
	}
	if !errors.Is(err, youtube.ErrCaptionsUnavailable) {
		return fmt.Errorf("fetch captions: %w", err)
	}

	logger.CtxInfo(ctx, "No captions available, falling back to speech-to-text")
	text, err = r.fallback.Transcribe(ctx, st.job.YouTubeID)
	if err != nil {
		return err
	}
	st.transcript, st.source = text, domain.TranscriptSourceWhisper
	return nil
}

func (r *JobRunner) analyze(ctx context.Context, st *pipelineState) error {
	analysis, err := r.analyzer.Analyze(ctx, st.transcript, st.metadata.Title)
	if err != nil {
		return fmt.Errorf("analyze transcript: %w", err)
	}
	st.analysis = analysis
	return nil
}

// persist stores the video, or only refreshes keywords when a record for
// this YouTube ID already exists.
func (r *JobRunner) persist(ctx context.Context, st *pipelineState) error {
	keywords, err := r.tags.Canonicalize(ctx, st.analysis.Keywords)
	if err != nil {
		return err
	}

	existing, err := r.videos.GetByYouTubeID(ctx, st.job.YouTubeID)
	switch {
	case err == nil:
		return r.refreshKeywords(ctx, st, existing, keywords)
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("look up video: %w", err)
	}

	source := st.source
	video := &domain.Video{
		ID:                    uuid.New().String(),
		YouTubeURL:            st.job.YouTubeURL,
		YouTubeID:             st.job.YouTubeID,
		Title:                 st.metadata.Title,
		ThumbnailURL:          st.metadata.ThumbnailURL,
		ChannelName:           st.metadata.ChannelName,
		Duration:              st.metadata.DurationSeconds,
		Explanation:           &st.analysis.Explanation,
		KeyKnowledge:          &st.analysis.KeyKnowledge,
		CriticalAnalysis:      &st.analysis.CriticalAnalysis,
		RealWorldApplications: &st.analysis.RealWorldApplications,
		Keywords:              datatypes.JSONSlice[string](keywords),
		TranscriptSource:      &source,
	}
	if err := r.videos.Create(ctx, video); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("save video: %w", err)
		}
		// Another run stored this video between the lookup and the insert.
		existing, err := r.videos.GetByYouTubeID(ctx, st.job.YouTubeID)
		if err != nil {
			return fmt.Errorf("look up video: %w", err)
		}
		return r.refreshKeywords(ctx, st, existing, keywords)
	}

	st.video = video
	return nil
}

func (r *JobRunner) refreshKeywords(ctx context.Context, st *pipelineState, video *domain.Video, keywords []string) error {
	if err := r.videos.UpdateKeywords(ctx, video.ID, keywords); err != nil {
		return fmt.Errorf("update video keywords: %w", err)
	}
	video.Keywords = datatypes.JSONSlice[string](keywords)
	logger.With(logger.Fields{logger.FieldVideoID: video.ID}).
		Info(ctx, "Video already stored, refreshed keywords")
	st.video = video
	return nil
}

// index adds the video to the semantic index. Failures are logged only.
func (r *JobRunner) index(ctx context.Context, video *domain.Video) {
	if r.indexer == nil || video == nil {
		return
	}
	if err := r.indexer.IndexVideo(ctx, video); err != nil {
		logger.With(logger.Fields{logger.FieldVideoID: video.ID}).
			Warn(ctx, "Failed to index video: %v", err)
	}
}
