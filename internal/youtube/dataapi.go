package youtube

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// MetadataFetcher is anything that can describe a video by ID.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, videoID string) (*Metadata, error)
}

// DataAPIClient fetches metadata through the YouTube Data API v3 and falls
// back to another fetcher (normally yt-dlp) when the API errors or the daily
// quota runs out.
type DataAPIClient struct {
	service *yt.Service

	mu             sync.Mutex
	quotaExhausted bool
	fallback       MetadataFetcher
}

// NewDataAPIClient creates a Data API client. Extra options are passed to
// the generated service (tests use option.WithEndpoint).
func NewDataAPIClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*DataAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &DataAPIClient{service: service}, nil
}

// SetFallback sets the fetcher used when the API cannot answer.
func (c *DataAPIClient) SetFallback(f MetadataFetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = f
}

// FetchMetadata implements MetadataFetcher.
func (c *DataAPIClient) FetchMetadata(ctx context.Context, videoID string) (*Metadata, error) {
	c.mu.Lock()
	exhausted, fallback := c.quotaExhausted, c.fallback
	c.mu.Unlock()

	if exhausted && fallback != nil {
		return fallback.FetchMetadata(ctx, videoID)
	}

	md, err := c.fetch(ctx, videoID)
	if err == nil {
		return md, nil
	}
	if isQuotaError(err) {
		c.mu.Lock()
		c.quotaExhausted = true
		c.mu.Unlock()
	}
	if fallback == nil {
		return nil, err
	}
	logger.CtxWarn(ctx, "YouTube Data API failed for %s, falling back: %v", videoID, err)
	return fallback.FetchMetadata(ctx, videoID)
}

func (c *DataAPIClient) fetch(ctx context.Context, videoID string) (*Metadata, error) {
	resp, err := c.service.Videos.List([]string{"snippet", "contentDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("videos.list %s: %w", videoID, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVideoUnavailable, videoID)
	}

	item := resp.Items[0]
	md := &Metadata{Title: DefaultTitle}
	if s := item.Snippet; s != nil {
		if s.Title != "" {
			md.Title = s.Title
		}
		md.ChannelName = optional(s.ChannelTitle)
		md.ThumbnailURL = bestThumbnail(s.Thumbnails)
	}
	if cd := item.ContentDetails; cd != nil && cd.Duration != "" {
		if secs, err := ParseISODuration(cd.Duration); err == nil {
			md.DurationSeconds = &secs
		}
	}
	return md, nil
}

func bestThumbnail(t *yt.ThumbnailDetails) *string {
	if t == nil {
		return nil
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return optional(th.Url)
		}
	}
	return nil
}

func isQuotaError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != 403 {
		return false
	}
	for _, e := range apiErr.Errors {
		if e.Reason == "quotaExceeded" || e.Reason == "dailyLimitExceeded" {
			return true
		}
	}
	return false
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO 8601 duration such as "PT1H2M3S" to seconds.
func ParseISODuration(s string) (int, error) {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}
	multipliers := []int{86400, 3600, 60, 1}
	total := 0
	for i, mult := range multipliers {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
		}
		total += n * mult
	}
	return total, nil
}
