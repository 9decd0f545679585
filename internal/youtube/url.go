package youtube

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned when no supported YouTube URL shape matches.
var ErrInvalidURL = errors.New("could not extract YouTube video ID from URL")

// Patterns are tried in order; the first match wins. Each is anchored at the
// host and requires the ID to end at a delimiter, so foreign hosts and
// over-long IDs are rejected.
var videoURLPatterns = []*regexp.Regexp{
	// youtube.com/watch?...v=ID
	regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?(?:[^#]*&)?v=([a-zA-Z0-9_-]{11})(?:$|[&#])`),
	// youtu.be/ID
	regexp.MustCompile(`^(?:https?://)?youtu\.be/([a-zA-Z0-9_-]{11})(?:$|[?&#/])`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?youtube\.com/(?:embed|shorts|live)/([a-zA-Z0-9_-]{11})(?:$|[?&#/])`),
}

// ExtractVideoID returns the 11-character video ID embedded in a YouTube URL.
// Surrounding whitespace and extra query parameters are tolerated.
func ExtractVideoID(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	for _, pattern := range videoURLPatterns {
		if m := pattern.FindStringSubmatch(trimmed); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidURL, trimmed)
}

// WatchURL builds the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
