package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrCaptionsUnavailable signals that the video has no usable caption track.
// Callers fall back to speech-to-text only on this error.
var ErrCaptionsUnavailable = errors.New("captions not available")

// CaptionClient finds caption tracks through yt-dlp and downloads them in
// YouTube's json3 timedtext format.
type CaptionClient struct {
	ytdlp     *Ytdlp
	http      *resty.Client
	languages []string
}

// NewCaptionClient creates a caption client. languages lists preferred
// caption languages in priority order.
func NewCaptionClient(ytdlp *Ytdlp, languages []string) *CaptionClient {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})
	return &CaptionClient{ytdlp: ytdlp, http: client, languages: languages}
}

// FetchCaptions returns the caption text of a video joined with single spaces.
// Returns ErrCaptionsUnavailable when no track exists or the track is empty.
func (c *CaptionClient) FetchCaptions(ctx context.Context, videoID string) (string, error) {
	info, err := c.ytdlp.info(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("list caption tracks for %s: %w", videoID, err)
	}

	trackURL := selectCaptionTrack(info, c.languages)
	if trackURL == "" {
		return "", fmt.Errorf("%w: no caption tracks for %s", ErrCaptionsUnavailable, videoID)
	}

	resp, err := c.http.R().SetContext(ctx).Get(trackURL)
	if err != nil {
		return "", fmt.Errorf("download captions for %s: %w", videoID, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusForbidden:
		return "", fmt.Errorf("%w: caption track returned HTTP %d", ErrCaptionsUnavailable, resp.StatusCode())
	default:
		return "", fmt.Errorf("caption track returned HTTP %d", resp.StatusCode())
	}

	text, err := parseJSON3(resp.Body())
	if err != nil {
		return "", fmt.Errorf("parse captions for %s: %w", videoID, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: transcript is empty for %s", ErrCaptionsUnavailable, videoID)
	}
	return text, nil
}

// selectCaptionTrack prefers manual subtitles over automatic captions, and
// listed languages over any other; returns "" when nothing has a json3 URL.
func selectCaptionTrack(info *videoInfo, languages []string) string {
	for _, tracks := range []map[string][]captionFile{info.Subtitles, info.AutomaticCaptions} {
		if len(tracks) == 0 {
			continue
		}
		for _, lang := range languages {
			if u := json3URL(tracks[lang]); u != "" {
				return u
			}
		}
	}
	// Any manual track, then the original-language automatic track.
	for _, files := range info.Subtitles {
		if u := json3URL(files); u != "" {
			return u
		}
	}
	for lang, files := range info.AutomaticCaptions {
		if strings.HasSuffix(lang, "-orig") {
			if u := json3URL(files); u != "" {
				return u
			}
		}
	}
	return ""
}

func json3URL(files []captionFile) string {
	for _, f := range files {
		if f.Ext == "json3" && f.URL != "" {
			return f.URL
		}
	}
	return ""
}

type timedtextDoc struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// parseJSON3 flattens timedtext events into one line of text.
func parseJSON3(data []byte) (string, error) {
	var doc timedtextDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("unmarshal timedtext JSON: %w", err)
	}
	parts := make([]string, 0, len(doc.Events))
	for _, event := range doc.Events {
		if len(event.Segs) == 0 {
			continue
		}
		var b strings.Builder
		for _, seg := range event.Segs {
			b.WriteString(seg.UTF8)
		}
		if line := strings.Join(strings.Fields(b.String()), " "); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " "), nil
}
