package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// AudioArchive keeps downloaded audio under <prefix>/<youtube_id>.mp3 so a
// retried job can skip the download.
type AudioArchive struct {
	store  ObjectStorage
	prefix string
}

// NewAudioArchive wraps store; an empty prefix stores keys at the bucket root.
func NewAudioArchive(store ObjectStorage, prefix string) *AudioArchive {
	return &AudioArchive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a video's audio.
func (a *AudioArchive) Key(youtubeID string) string {
	name := youtubeID + ".mp3"
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// Fetch copies archived audio into dst. It reports false when nothing is archived.
func (a *AudioArchive) Fetch(ctx context.Context, youtubeID, dst string) (bool, error) {
	key := a.Key(youtubeID)
	ok, err := a.store.Exists(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	body, err := a.store.Download(ctx, key)
	if err != nil {
		return false, err
	}
	defer body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", dst, err)
	}
	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(dst)
		return false, fmt.Errorf("copy archived audio: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return false, closeErr
	}
	if n == 0 {
		_ = os.Remove(dst)
		return false, nil
	}
	return true, nil
}

// Store uploads the audio file at src.
func (a *AudioArchive) Store(ctx context.Context, youtubeID, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return a.store.Upload(ctx, a.Key(youtubeID), f, info.Size(), "audio/mpeg")
}

// Remove deletes a video's archived audio. Missing objects are not an error.
func (a *AudioArchive) Remove(ctx context.Context, youtubeID string) error {
	return a.store.Delete(ctx, a.Key(youtubeID))
}
