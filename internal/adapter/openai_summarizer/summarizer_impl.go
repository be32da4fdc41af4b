package openai_summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/user/glance/internal/adapter/prompt"
	"github.com/user/glance/internal/repository"
)

// Config holds the chat-completions client settings.
type Config struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible endpoint. Empty uses api.openai.com.
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// MaxInputChars bounds the page text sent per request.
	MaxInputChars int
}

// SummarizerImpl summarizes text with an OpenAI chat model.
type SummarizerImpl struct {
	client   openai.Client
	maxChars int
	logger   *zap.Logger
}

// NewSummarizer initializes the client.
func NewSummarizer(cfg Config, logger *zap.Logger) (*SummarizerImpl, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &SummarizerImpl{
		client:   openai.NewClient(opts...),
		maxChars: cfg.MaxInputChars,
		logger:   logger.Named("summarizer.openai"),
	}, nil
}

// Summarize asks model for a summary of text.
func (s *SummarizerImpl) Summarize(ctx context.Context, text, model string) (string, error) {
	start := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User(text, s.maxChars)),
		},
	})
	if err != nil {
		return "", s.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", repository.ErrSummarizationFailed)
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("%w: openai returned empty content (finish reason %q)",
			repository.ErrSummarizationFailed, resp.Choices[0].FinishReason)
	}

	s.logger.Debug("Summary generated",
		zap.String("model", model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return summary, nil
}

func (s *SummarizerImpl) classify(err error) error {
	wrapped := fmt.Errorf("%w: %w", repository.ErrSummarizationFailed, err)

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		s.logger.Debug("OpenAI API returned error status", zap.Int("status", apiErr.StatusCode))
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return repository.Fatal(wrapped)
		}
	}
	return wrapped
}
