package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 10 * time.Minute
)

var (
	// ErrYtdlpNotInstalled is returned when the yt-dlp binary cannot be run.
	ErrYtdlpNotInstalled = errors.New("yt-dlp is not installed or not on PATH")

	// ErrVideoUnavailable is returned for private, removed or region-locked videos.
	ErrVideoUnavailable = errors.New("video unavailable")

	// ErrCommandTimeout is returned when a subprocess exceeds its deadline.
	ErrCommandTimeout = errors.New("command timed out")
)

// Ytdlp drives the yt-dlp executable as a subprocess.
type Ytdlp struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout bounds each invocation. Defaults to 10 minutes.
	Timeout time.Duration

	// ExtraArgs are appended to every invocation (cookies, proxies).
	ExtraArgs []string
}

// NewYtdlp creates a yt-dlp runner.
func NewYtdlp(path string, timeout time.Duration) *Ytdlp {
	return &Ytdlp{Path: path, Timeout: timeout}
}

// videoInfo is the subset of `yt-dlp -J` output this package reads.
type videoInfo struct {
	ID                string                   `json:"id"`
	Title             string                   `json:"title"`
	Thumbnail         string                   `json:"thumbnail"`
	Uploader          string                   `json:"uploader"`
	Channel           string                   `json:"channel"`
	Duration          *float64                 `json:"duration"`
	Subtitles         map[string][]captionFile `json:"subtitles"`
	AutomaticCaptions map[string][]captionFile `json:"automatic_captions"`
}

type captionFile struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// info runs `yt-dlp -J` for one video without downloading media.
func (y *Ytdlp) info(ctx context.Context, videoID string) (*videoInfo, error) {
	out, err := y.run(ctx, videoID, "-J", "--skip-download", "--no-playlist", "--no-warnings")
	if err != nil {
		return nil, err
	}
	var info videoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	return &info, nil
}

// run executes yt-dlp for videoID and returns stdout.
func (y *Ytdlp) run(ctx context.Context, videoID string, args ...string) ([]byte, error) {
	timeout := y.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append([]string{}, args...)
	full = append(full, y.ExtraArgs...)
	full = append(full, WatchURL(videoID))

	cmd := exec.CommandContext(cmdCtx, y.path(), full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("yt-dlp %s: %w", videoID, ErrCommandTimeout)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, ErrYtdlpNotInstalled
		}
		return nil, classifyYtdlpError(videoID, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func classifyYtdlpError(videoID string, err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "private video"),
		strings.Contains(lower, "has been removed"),
		strings.Contains(lower, "not available in your country"):
		return fmt.Errorf("%w: %s: %s", ErrVideoUnavailable, videoID, msg)
	}
	return fmt.Errorf("yt-dlp failed for %s: %w: %s", videoID, err, msg)
}

func (y *Ytdlp) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}
