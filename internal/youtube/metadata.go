package youtube

import (
	"context"
	"fmt"
	"math"
)

// DefaultTitle is used when a provider returns no title.
const DefaultTitle = "Unknown Title"

// Metadata describes a video as reported by a metadata provider.
type Metadata struct {
	Title           string
	ThumbnailURL    *string
	ChannelName     *string
	DurationSeconds *int
}

// FetchMetadata reads title, thumbnail, channel and duration via yt-dlp.
func (y *Ytdlp) FetchMetadata(ctx context.Context, videoID string) (*Metadata, error) {
	info, err := y.info(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", videoID, err)
	}
	return info.metadata(), nil
}

func (info *videoInfo) metadata() *Metadata {
	md := &Metadata{
		Title:        info.Title,
		ThumbnailURL: optional(info.Thumbnail),
		ChannelName:  optional(info.Uploader),
	}
	if md.Title == "" {
		md.Title = DefaultTitle
	}
	if md.ChannelName == nil {
		md.ChannelName = optional(info.Channel)
	}
	if info.Duration != nil {
		d := int(math.Round(*info.Duration))
		md.DurationSeconds = &d
	}
	return md
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
