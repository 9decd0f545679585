package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// SpeechConfig holds configuration for the speech-to-text client.
type SpeechConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Limiter *rate.Limiter
}

// SpeechService uploads audio files to an OpenAI-compatible
// /audio/transcriptions endpoint.
type SpeechService struct {
	client   *resty.Client
	model    string
	endpoint string
	limiter  *rate.Limiter
}

// NewSpeechService creates a speech-to-text client.
func NewSpeechService(cfg *SpeechConfig) *SpeechService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	// Large uploads need the longer timeout.
	client.SetTimeout(timeout)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}

	return &SpeechService{
		client:   client,
		model:    model,
		endpoint: baseURL + "/audio/transcriptions",
		limiter:  cfg.Limiter,
	}
}

// TranscribeFile sends one audio file and returns the plain-text transcript.
func (s *SpeechService) TranscribeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("speech-to-text rate limiter: %w", err)
		}
	}

	var apiErr struct {
		Error *apiError `json:"error"`
	}
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetFileReader("file", filepath.Base(path), f).
		SetFormData(map[string]string{
			"model":           s.model,
			"response_format": "text",
		}).
		SetError(&apiErr).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call speech-to-text API: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return "", fmt.Errorf("speech-to-text API returned error: %s", describeHTTPError(httpResp.StatusCode(), apiErr.Error, httpResp.Body()))
	}

	return strings.TrimSpace(string(httpResp.Body())), nil
}
