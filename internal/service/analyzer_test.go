package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
}

func newChatServer(t *testing.T, status int, body any, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAnalyzer(url string) *AnalyzerService {
	return NewAnalyzerService(&AnalyzerConfig{
		APIKey:      "sk-test",
		BaseURL:     url,
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		Language:    "Vietnamese",
	})
}

func TestAnalyzeSuccess(t *testing.T) {
	content := `{"explanation":"e","key_knowledge":"k","critical_analysis":"c","real_world_applications":"r","keywords":["go","channels"]}`
	var seen chatRequest
	srv := newChatServer(t, http.StatusOK, chatCompletion(content), &seen)

	analysis, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "the transcript", "Go talk")
	require.NoError(t, err)
	assert.Equal(t, "e", analysis.Explanation)
	assert.Equal(t, []string{"go", "channels"}, analysis.Keywords)

	assert.Equal(t, "gpt-4o-mini", seen.Model)
	assert.InDelta(t, 0.3, seen.Temperature, 1e-9)
	require.Len(t, seen.Messages, 2)
	assert.Contains(t, seen.Messages[0].Content, "Vietnamese")
	assert.Equal(t, "## Video Title\nGo talk\n\n## Transcript\nthe transcript", seen.Messages[1].Content)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_schema", seen.ResponseFormat.Type)
	require.NotNil(t, seen.ResponseFormat.JSONSchema)
	assert.True(t, seen.ResponseFormat.JSONSchema.Strict)
}

func TestAnalyzeFailures(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    any
		wantErr string
	}{
		{
			name:    "http error",
			status:  http.StatusTooManyRequests,
			body:    map[string]any{"error": map[string]any{"message": "rate limited", "type": "requests"}},
			wantErr: "HTTP 429: rate limited",
		},
		{
			name:    "missing fields",
			status:  http.StatusOK,
			body:    chatCompletion(`{"explanation":"e","key_knowledge":"","critical_analysis":"c","real_world_applications":"","keywords":[]}`),
			wantErr: "missing fields: key_knowledge, real_world_applications",
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    chatCompletion("Sure! Here is your analysis"),
			wantErr: "not valid JSON",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    map[string]any{"choices": []any{}},
			wantErr: "no choices",
		},
		{
			name:   "refusal",
			status: http.StatusOK,
			body: map[string]any{"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "refusal": "cannot help"},
			}}},
			wantErr: "refused: cannot help",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newChatServer(t, tc.status, tc.body, nil)
			_, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "transcript", "title")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestAnalyzeRejectsEmptyTranscript(t *testing.T) {
	_, err := newTestAnalyzer("http://127.0.0.1:1").Analyze(context.Background(), "  ", "title")
	assert.EqualError(t, err, "analysis: empty transcript")
}

func TestParseAnalysisDefaultsKeywords(t *testing.T) {
	analysis, err := parseAnalysis(`{"explanation":"e","key_knowledge":"k","critical_analysis":"c","real_world_applications":"r"}`)
	require.NoError(t, err)
	assert.NotNil(t, analysis.Keywords)
	assert.Empty(t, analysis.Keywords)
}

func TestNewProviderLimiter(t *testing.T) {
	assert.Nil(t, NewProviderLimiter(0))
	limiter := NewProviderLimiter(60)
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())
	assert.InDelta(t, 1.0, float64(limiter.Limit()), 1e-9)
}

func TestSpeechTranscribeFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "text", r.FormValue("response_format"))
		_, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			assert.Equal(t, "chunk_000.mp3", header.Filename)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  hello world \n"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "chunk_000.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake mp3"), 0o644))

	stt := NewSpeechService(&SpeechConfig{APIKey: "sk-test", BaseURL: srv.URL})
	text, err := stt.TranscribeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestSpeechTranscribeFileError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":{"message":"file too large","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake mp3"), 0o644))

	stt := NewSpeechService(&SpeechConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := stt.TranscribeFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 413: file too large")

	_, err = stt.TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.ErrorContains(t, err, "open audio")
}
