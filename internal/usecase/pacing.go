package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/glance/internal/repository"
)

type pacedSummarizer struct {
	next    repository.Summarizer
	limiter *rate.Limiter
}

// NewPacedSummarizer limits next to perMinute calls. A non-positive perMinute returns next unchanged.
func NewPacedSummarizer(next repository.Summarizer, perMinute float64) repository.Summarizer {
	if perMinute <= 0 {
		return next
	}
	return &pacedSummarizer{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perMinute/time.Minute.Seconds()), 1),
	}
}

func (p *pacedSummarizer) Summarize(ctx context.Context, text, model string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %w", repository.ErrSummarizationFailed, err)
	}
	return p.next.Summarize(ctx, text, model)
}
