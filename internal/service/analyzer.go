package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/prompts"
	"golang.org/x/time/rate"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// Analysis is the structured knowledge extracted from one transcript.
type Analysis struct {
	Explanation           string   `json:"explanation"`
	KeyKnowledge          string   `json:"key_knowledge"`
	CriticalAnalysis      string   `json:"critical_analysis"`
	RealWorldApplications string   `json:"real_world_applications"`
	Keywords              []string `json:"keywords"`
}

// AnalyzerService turns transcripts into an Analysis using an
// OpenAI-compatible chat completions endpoint.
type AnalyzerService struct {
	client      *resty.Client
	model       string
	temperature float64
	language    string
	endpoint    string
	limiter     *rate.Limiter
}

// AnalyzerConfig holds configuration for the analyzer.
type AnalyzerConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Language    string
	Timeout     time.Duration
	Limiter     *rate.Limiter
}

// NewAnalyzerService creates a new analyzer.
// Parameters:
//   - cfg: model, credentials and request settings.
//
// Returns:
//   - *AnalyzerService: initialized client wrapper.
func NewAnalyzerService(cfg *AnalyzerConfig) *AnalyzerService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 3 * time.Minute
	}
	client.SetTimeout(timeout)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return &AnalyzerService{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		language:    cfg.Language,
		endpoint:    baseURL + "/chat/completions",
		limiter:     cfg.Limiter,
	}
}

// GetModel returns the model name being used.
func (s *AnalyzerService) GetModel() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Analyze asks the model for a structured analysis of a transcript.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - transcript: full transcript text.
//   - title: video title, included for context.
//
// Returns:
//   - *Analysis: parsed analysis with all text fields populated.
//   - error: non-nil if the call fails or the response is incomplete.
func (s *AnalyzerService) Analyze(ctx context.Context, transcript, title string) (*Analysis, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("analysis: empty transcript")
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("analysis: rate limiter: %w", err)
		}
	}

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.AnalysisSystemPrompt(s.language)},
			{Role: "user", Content: prompts.AnalysisUserPrompt(title, transcript)},
		},
		Temperature: s.temperature,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   prompts.AnalysisSchemaName,
				Strict: true,
				Schema: prompts.AnalysisSchema,
			},
		},
	}

	start := time.Now()
	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call analysis API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return nil, fmt.Errorf("analysis API returned error: %s", describeHTTPError(httpResp.StatusCode(), resp.Error, httpResp.Body()))
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("analysis API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in analysis response (status: %d)", httpResp.StatusCode())
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("analysis refused: %s", choice.Message.Refusal)
	}

	analysis, err := parseAnalysis(choice.Message.Content)
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldProvider:   "openai",
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      len(analysis.Keywords),
	}).Debug(ctx, "Analysis completed with model %s", s.model)

	return analysis, nil
}

// parseAnalysis decodes the model output and checks every field is present.
func parseAnalysis(content string) (*Analysis, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("analysis response is empty")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("analysis response is not valid JSON: %w", err)
	}

	missing := make([]string, 0, 4)
	if strings.TrimSpace(analysis.Explanation) == "" {
		missing = append(missing, "explanation")
	}
	if strings.TrimSpace(analysis.KeyKnowledge) == "" {
		missing = append(missing, "key_knowledge")
	}
	if strings.TrimSpace(analysis.CriticalAnalysis) == "" {
		missing = append(missing, "critical_analysis")
	}
	if strings.TrimSpace(analysis.RealWorldApplications) == "" {
		missing = append(missing, "real_world_applications")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("analysis response missing fields: %s", strings.Join(missing, ", "))
	}
	if analysis.Keywords == nil {
		analysis.Keywords = []string{}
	}
	return &analysis, nil
}

func describeHTTPError(status int, apiErr *apiError, body []byte) string {
	if apiErr != nil && apiErr.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", status, apiErr.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", status, string(body))
}

// NewProviderLimiter returns a limiter allowing rpm requests per minute,
// or nil when rpm is not positive.
func NewProviderLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}
