package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoAudio is returned when a download finishes without an mp3 artifact.
var ErrNoAudio = errors.New("audio download produced no mp3 file")

// DownloadAudio extracts the best available audio track of a video as mp3
// into dir and returns the file path.
func (y *Ytdlp) DownloadAudio(ctx context.Context, videoID, dir string) (string, error) {
	template := filepath.Join(dir, "%(id)s.%(ext)s")
	_, err := y.run(ctx, videoID,
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3", "--audio-quality", "128K",
		"--no-playlist", "--no-progress", "--no-warnings", "--quiet",
		"-o", template,
	)
	if err != nil {
		return "", fmt.Errorf("download audio for %s: %w", videoID, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.mp3"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoAudio, videoID)
	}
	if info, err := os.Stat(matches[0]); err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoAudio, videoID)
	}
	return matches[0], nil
}
