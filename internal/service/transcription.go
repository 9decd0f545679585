package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/youtube"
)

// ErrTranscriptionFailed wraps every failure of the speech-to-text fallback.
var ErrTranscriptionFailed = errors.New("transcription failed")

const bytesPerMB = 1024 * 1024

// AudioSource downloads a video's audio track into dir.
type AudioSource interface {
	DownloadAudio(ctx context.Context, videoID, dir string) (string, error)
}

// AudioSplitter probes and cuts audio files.
type AudioSplitter interface {
	Duration(ctx context.Context, path string) (float64, error)
	ExtractSegment(ctx context.Context, src, dst string, start, length float64) error
}

// SpeechToText transcribes one audio file.
type SpeechToText interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// AudioArchive stores downloaded audio between attempts.
type AudioArchive interface {
	Fetch(ctx context.Context, youtubeID, dst string) (bool, error)
	Store(ctx context.Context, youtubeID, src string) error
	Remove(ctx context.Context, youtubeID string) error
}

// TranscriptionConfig holds the size limits of the speech-to-text provider.
type TranscriptionConfig struct {
	MaxUploadMB   float64
	TargetChunkMB float64
	WorkDir       string
}

// TranscriptionService is the fallback used when a video has no captions:
// download audio, split it when it exceeds the upload ceiling, and transcribe.
type TranscriptionService struct {
	audio    AudioSource
	splitter AudioSplitter
	stt      SpeechToText
	archive  AudioArchive
	maxBytes int64
	targetMB float64
	workDir  string
}

// NewTranscriptionService creates the fallback transcriber. archive may be nil.
func NewTranscriptionService(audio AudioSource, splitter AudioSplitter, stt SpeechToText, archive AudioArchive, cfg *TranscriptionConfig) *TranscriptionService {
	maxMB, targetMB := 25.0, 20.0
	var workDir string
	if cfg != nil {
		if cfg.MaxUploadMB > 0 {
			maxMB = cfg.MaxUploadMB
		}
		if cfg.TargetChunkMB > 0 {
			targetMB = cfg.TargetChunkMB
		}
		workDir = cfg.WorkDir
	}
	return &TranscriptionService{
		audio:    audio,
		splitter: splitter,
		stt:      stt,
		archive:  archive,
		maxBytes: int64(maxMB * bytesPerMB),
		targetMB: targetMB,
		workDir:  workDir,
	}
}

// Transcribe produces a transcript for a video from its audio.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - youtubeID: 11-character video identifier.
//
// Returns:
//   - string: non-empty transcript text.
//   - error: wraps ErrTranscriptionFailed on any failure.
func (s *TranscriptionService) Transcribe(ctx context.Context, youtubeID string) (string, error) {
	start := time.Now()
	text, chunks, err := s.transcribe(ctx, youtubeID)
	if err != nil {
		return "", fmt.Errorf("%w for video %s: %w", ErrTranscriptionFailed, youtubeID, err)
	}

	logger.With(logger.Fields{
		logger.FieldChunks:     chunks,
		logger.FieldSize:       len(text),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Speech-to-text transcription complete")
	return text, nil
}

func (s *TranscriptionService) transcribe(ctx context.Context, youtubeID string) (string, int, error) {
	if s.workDir != "" {
		if err := os.MkdirAll(s.workDir, 0o755); err != nil {
			return "", 0, fmt.Errorf("create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.workDir, "audio-"+youtubeID+"-")
	if err != nil {
		return "", 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	audioPath, err := s.fetchAudio(ctx, youtubeID, dir)
	if err != nil {
		return "", 0, err
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", 0, err
	}
	if info.Size() == 0 {
		return "", 0, youtube.ErrNoAudio
	}

	logger.With(logger.Fields{
		logger.FieldSize: info.Size(),
	}).Info(ctx, "Audio ready: %.1f MB", float64(info.Size())/bytesPerMB)

	var text string
	chunks := 1
	if info.Size() <= s.maxBytes {
		text, err = s.stt.TranscribeFile(ctx, audioPath)
	} else {
		text, chunks, err = s.transcribeChunks(ctx, audioPath, dir, info.Size())
	}
	if err != nil {
		return "", chunks, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", chunks, errors.New("speech-to-text returned an empty transcript")
	}
	return text, chunks, nil
}

// fetchAudio prefers the archive and falls back to a fresh download,
// archiving what it downloaded.
func (s *TranscriptionService) fetchAudio(ctx context.Context, youtubeID, dir string) (string, error) {
	if s.archive != nil {
		dst := filepath.Join(dir, youtubeID+".mp3")
		found, err := s.archive.Fetch(ctx, youtubeID, dst)
		switch {
		case err != nil:
			logger.CtxWarn(ctx, "Audio archive lookup failed, downloading instead: %v", err)
		case found:
			logger.CtxInfo(ctx, "Reusing archived audio")
			return dst, nil
		}
	}

	audioPath, err := s.audio.DownloadAudio(ctx, youtubeID, dir)
	if err != nil {
		return "", err
	}

	if s.archive != nil {
		if err := s.archive.Store(ctx, youtubeID, audioPath); err != nil {
			logger.CtxWarn(ctx, "Failed to archive audio: %v", err)
		}
	}
	return audioPath, nil
}

func (s *TranscriptionService) transcribeChunks(ctx context.Context, audioPath, dir string, size int64) (string, int, error) {
	duration, err := s.splitter.Duration(ctx, audioPath)
	if err != nil {
		return "", 0, err
	}

	segments := planSegments(duration, size, s.targetMB)
	logger.With(logger.Fields{
		logger.FieldChunks: len(segments),
		logger.FieldSize:   size,
	}).Info(ctx, "Audio exceeds upload limit, transcribing in %d chunks", len(segments))

	ext := filepath.Ext(audioPath)
	texts := make([]string, 0, len(segments))
	for i, seg := range segments {
		chunkPath := filepath.Join(dir, fmt.Sprintf("chunk_%03d%s", i, ext))
		if err := s.splitter.ExtractSegment(ctx, audioPath, chunkPath, seg.Start, seg.Length); err != nil {
			return "", len(segments), fmt.Errorf("chunk %d/%d: %w", i+1, len(segments), err)
		}
		text, err := s.stt.TranscribeFile(ctx, chunkPath)
		_ = os.Remove(chunkPath)
		if err != nil {
			return "", len(segments), fmt.Errorf("chunk %d/%d: %w", i+1, len(segments), err)
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, " "), len(segments), nil
}

// audioSegment is a [Start, Start+Length) window in seconds.
type audioSegment struct {
	Start  float64
	Length float64
}

// planSegments splits duration into floor(sizeMB/targetMB)+1 equal windows.
// The last window absorbs the rounding remainder so the windows tile
// [0, duration) exactly.
func planSegments(duration float64, sizeBytes int64, targetMB float64) []audioSegment {
	sizeMB := float64(sizeBytes) / bytesPerMB
	n := int(math.Floor(sizeMB/targetMB)) + 1
	if n < 1 {
		n = 1
	}

	step := duration / float64(n)
	segments := make([]audioSegment, n)
	for i := 0; i < n; i++ {
		start := step * float64(i)
		segments[i] = audioSegment{Start: start, Length: step}
	}
	last := &segments[n-1]
	last.Length = duration - last.Start
	return segments
}
