package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRenderDigest(t *testing.T) {
	videos := []domain.Video{
		{
			Title:        "Concurrency <is not> parallelism",
			YouTubeURL:   "https://www.youtube.com/watch?v=oV9rvDllKEg",
			ThumbnailURL: strPtr("https://i.ytimg.com/vi/oV9rvDllKEg/hqdefault.jpg"),
			ChannelName:  strPtr("Gopher Talks"),
			Explanation:  strPtr("## Overview\n\n**Concurrency** is about *structure*."),
			Keywords:     []string{"go", "concurrency", "a", "b", "c", "d", "seventh"},
		},
		{YouTubeURL: "https://youtu.be/aaaaaaaaaaa"},
	}

	html, err := RenderDigest(videos)
	require.NoError(t, err)

	assert.Contains(t, html, `href="https://www.youtube.com/watch?v=oV9rvDllKEg"`)
	assert.Contains(t, html, "Concurrency &lt;is not&gt; parallelism")
	assert.NotContains(t, html, "<is not>")
	assert.Contains(t, html, "Gopher Talks")
	assert.Contains(t, html, "Overview Concurrency is about *structure*.")
	assert.Contains(t, html, ">concurrency</span>")
	assert.NotContains(t, html, "seventh")
	assert.Contains(t, html, "Untitled Video")
	assert.Equal(t, 1, strings.Count(html, "<img "))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", excerpt("  short\n\ntext ", 20))
	assert.Equal(t, "abcde…", excerpt("abcdefgh", 5))
	assert.Equal(t, "héllo…", excerpt("héllo wörld", 5))
}

func TestBuildMessage(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Address: "me@example.com", Recipient: "you@example.com", Subject: "Review"})
	msg := string(n.buildMessage(2, "<p>hi</p>"))

	assert.Contains(t, msg, "From: me@example.com\r\n")
	assert.Contains(t, msg, "To: you@example.com\r\n")
	assert.Contains(t, msg, "Subject: Review - 2 video(s) to revisit\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>hi</p>"))
	assert.Equal(t, "smtp.gmail.com", n.cfg.Host)
	assert.Equal(t, 465, n.cfg.Port)
}

func TestSendDigestRequiresRecipient(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Address: "me@example.com"})
	err := n.SendDigest(context.Background(), []domain.Video{{Title: "x"}})
	assert.ErrorIs(t, err, ErrNoRecipient)

	n = NewEmailNotifier(EmailConfig{Address: "me@example.com", Recipient: "you@example.com"})
	assert.NoError(t, n.SendDigest(context.Background(), nil))
}
