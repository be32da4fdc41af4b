package gemini_summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/user/glance/internal/adapter/prompt"
	"github.com/user/glance/internal/repository"
)

// Config holds the Gemini client settings.
type Config struct {
	APIKey string
	// BaseURL overrides the Gemini API endpoint, mainly for tests.
	BaseURL       string
	Timeout       time.Duration
	MaxInputChars int
}

// SummarizerImpl summarizes text with a Gemini model.
type SummarizerImpl struct {
	client   *genai.Client
	maxChars int
	logger   *zap.Logger
}

// NewSummarizer initializes the client.
func NewSummarizer(ctx context.Context, cfg Config, logger *zap.Logger) (*SummarizerImpl, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &SummarizerImpl{
		client:   client,
		maxChars: cfg.MaxInputChars,
		logger:   logger.Named("summarizer.gemini"),
	}, nil
}

// Summarize asks model for a summary of text.
func (s *SummarizerImpl) Summarize(ctx context.Context, text, model string) (string, error) {
	start := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, model,
		genai.Text(prompt.User(text, s.maxChars)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		},
	)
	if err != nil {
		return "", s.classify(err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		reason := ""
		if len(resp.Candidates) > 0 {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("%w: gemini returned empty content (finish reason %q)", repository.ErrSummarizationFailed, reason)
	}

	s.logger.Debug("Summary generated", zap.String("model", model), zap.Duration("duration", time.Since(start)))
	return summary, nil
}

func (s *SummarizerImpl) classify(err error) error {
	wrapped := fmt.Errorf("%w: %w", repository.ErrSummarizationFailed, err)

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	switch code {
	case 0:
		return wrapped
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		// Gemini reports an invalid key as 400 INVALID_ARGUMENT.
		s.logger.Debug("Gemini API returned error status", zap.Int("status", code))
		return repository.Fatal(wrapped)
	default:
		s.logger.Debug("Gemini API returned error status", zap.Int("status", code))
		return wrapped
	}
}
