package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSegments(t *testing.T) {
	testCases := []struct {
		name      string
		duration  float64
		sizeMB    float64
		targetMB  float64
		wantCount int
	}{
		{"just over ceiling", 1800, 26, 20, 2},
		{"exact multiple of target", 3600, 40, 20, 3},
		{"large file", 7200, 95, 20, 5},
		{"odd duration", 1234.567, 61, 20, 4},
		{"below target", 60, 5, 20, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			segments := planSegments(tc.duration, int64(tc.sizeMB*bytesPerMB), tc.targetMB)
			require.Len(t, segments, tc.wantCount)

			assert.Equal(t, 0.0, segments[0].Start)
			var total float64
			for i, seg := range segments {
				assert.Greater(t, seg.Length, 0.0)
				total += seg.Length
				if i > 0 {
					prev := segments[i-1]
					assert.InDelta(t, prev.Start+prev.Length, seg.Start, 1e-9, "segment %d must start where %d ends", i, i-1)
				}
			}
			last := segments[len(segments)-1]
			assert.InDelta(t, tc.duration, last.Start+last.Length, 1e-9)
			assert.InDelta(t, tc.duration, total, 1e-9)
		})
	}
}

type fakeAudioSource struct {
	size  int64
	calls int
	err   error
}

func (f *fakeAudioSource) DownloadAudio(ctx context.Context, videoID, dir string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	p := filepath.Join(dir, videoID+".mp3")
	file, err := os.Create(p)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if err := file.Truncate(f.size); err != nil {
		return "", err
	}
	return p, nil
}

type fakeSplitter struct {
	duration float64
	segments []audioSegment
}

func (f *fakeSplitter) Duration(ctx context.Context, path string) (float64, error) {
	return f.duration, nil
}

func (f *fakeSplitter) ExtractSegment(ctx context.Context, src, dst string, start, length float64) error {
	f.segments = append(f.segments, audioSegment{Start: start, Length: length})
	return os.WriteFile(dst, []byte(fmt.Sprintf("part %d", len(f.segments)-1)), 0o644)
}

// fakeSTT returns the chunk file content, or a fixed text for the full file.
type fakeSTT struct {
	mu       sync.Mutex
	full     string
	failOn   int
	calls    int
	uploaded []string
}

func (f *fakeSTT) TranscribeFile(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.uploaded = append(f.uploaded, filepath.Base(path))
	if f.failOn > 0 && f.calls == f.failOn {
		return "", errors.New("provider unavailable")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > 1024 {
		return f.full, nil
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

type fakeArchive struct {
	stored  map[string]bool
	fetched int
}

func (f *fakeArchive) Fetch(ctx context.Context, youtubeID, dst string) (bool, error) {
	f.fetched++
	if !f.stored[youtubeID] {
		return false, nil
	}
	return true, os.WriteFile(dst, []byte("archived audio"), 0o644)
}

func (f *fakeArchive) Store(ctx context.Context, youtubeID, src string) error {
	f.stored[youtubeID] = true
	return nil
}

func (f *fakeArchive) Remove(ctx context.Context, youtubeID string) error {
	delete(f.stored, youtubeID)
	return nil
}

func newTestTranscriber(t *testing.T, audio AudioSource, splitter AudioSplitter, stt SpeechToText, archive AudioArchive) *TranscriptionService {
	t.Helper()
	return NewTranscriptionService(audio, splitter, stt, archive, &TranscriptionConfig{
		MaxUploadMB:   25,
		TargetChunkMB: 20,
		WorkDir:       t.TempDir(),
	})
}

func TestTranscribeSingleUpload(t *testing.T) {
	audio := &fakeAudioSource{size: 2 * bytesPerMB}
	splitter := &fakeSplitter{duration: 300}
	stt := &fakeSTT{full: "  the whole talk  "}

	text, err := newTestTranscriber(t, audio, splitter, stt, nil).Transcribe(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "the whole talk", text)
	assert.Equal(t, 1, stt.calls)
	assert.Empty(t, splitter.segments)
}

func TestTranscribeChunksInOrder(t *testing.T) {
	audio := &fakeAudioSource{size: 50 * bytesPerMB}
	splitter := &fakeSplitter{duration: 3000}
	stt := &fakeSTT{}

	text, err := newTestTranscriber(t, audio, splitter, stt, nil).Transcribe(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "part 0 part 1 part 2", text)
	assert.Equal(t, []string{"chunk_000.mp3", "chunk_001.mp3", "chunk_002.mp3"}, stt.uploaded)
	require.Len(t, splitter.segments, 3)
	assert.Equal(t, 3000.0, splitter.segments[2].Start+splitter.segments[2].Length)
}

func TestTranscribeChunkFailureAborts(t *testing.T) {
	audio := &fakeAudioSource{size: 50 * bytesPerMB}
	splitter := &fakeSplitter{duration: 3000}
	stt := &fakeSTT{failOn: 2}

	text, err := newTestTranscriber(t, audio, splitter, stt, nil).Transcribe(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.Contains(t, err.Error(), "chunk 2/3")
	assert.Empty(t, text)
	assert.Equal(t, 2, stt.calls)
}

func TestTranscribeEmptyResult(t *testing.T) {
	audio := &fakeAudioSource{size: 2 * bytesPerMB}
	stt := &fakeSTT{full: "   "}

	_, err := newTestTranscriber(t, audio, &fakeSplitter{}, stt, nil).Transcribe(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
}

func TestTranscribeDownloadFailure(t *testing.T) {
	audio := &fakeAudioSource{err: errors.New("yt-dlp exploded")}

	_, err := newTestTranscriber(t, audio, &fakeSplitter{}, &fakeSTT{}, nil).Transcribe(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.Contains(t, err.Error(), "yt-dlp exploded")
}

func TestTranscribeUsesArchive(t *testing.T) {
	archive := &fakeArchive{stored: map[string]bool{}}
	audio := &fakeAudioSource{size: 2 * bytesPerMB}
	stt := &fakeSTT{full: "downloaded"}
	svc := newTestTranscriber(t, audio, &fakeSplitter{}, stt, archive)

	_, err := svc.Transcribe(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, 1, audio.calls)
	assert.True(t, archive.stored["dQw4w9WgXcQ"])

	text, err := svc.Transcribe(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "archived audio", text)
	assert.Equal(t, 1, audio.calls, "archived audio must skip the download")
}
