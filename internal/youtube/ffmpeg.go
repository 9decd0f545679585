package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFmpeg wraps the ffprobe/ffmpeg binaries used to cut audio into segments.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

// NewFFmpeg creates an FFmpeg wrapper; empty paths fall back to PATH lookup.
func NewFFmpeg(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Timeout: timeout}
}

// Duration returns the length of a media file in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	out, err := f.exec(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: unexpected duration %q", path, strings.TrimSpace(string(out)))
	}
	if secs <= 0 {
		return 0, fmt.Errorf("ffprobe %s: non-positive duration %v", path, secs)
	}
	return secs, nil
}

// ExtractSegment copies [start, start+length) seconds of src into dst
// without re-encoding.
func (f *FFmpeg) ExtractSegment(ctx context.Context, src, dst string, start, length float64) error {
	_, err := f.exec(ctx, f.FFmpegPath,
		"-y", "-v", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", src,
		"-acodec", "copy",
		dst,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg segment %s@%s: %w", src, formatSeconds(start), err)
	}
	return nil
}

func (f *FFmpeg) exec(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrCommandTimeout
		}
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
