package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/glance/internal/entity"
	"github.com/user/glance/internal/repository"
	"github.com/user/glance/pkg/utils"
)

// StatusReader answers questions about the current run for the HTTP surface.
type StatusReader interface {
	GetStatus(ctx context.Context, url string) (*entity.ProcessedStatus, error)
	ProcessedCount(ctx context.Context) (int, error)
}

type statusUseCase struct {
	processed repository.ProcessedSet
}

// NewStatusReader creates a StatusReader over the run's processed set.
func NewStatusReader(processed repository.ProcessedSet) StatusReader {
	return &statusUseCase{processed: processed}
}

func (uc *statusUseCase) GetStatus(ctx context.Context, url string) (*entity.ProcessedStatus, error) {
	url = strings.TrimSpace(url)
	ok, err := uc.processed.Contains(ctx, entity.Address(url))
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", url, err)
	}
	return &entity.ProcessedStatus{
		URL:       url,
		ID:        utils.HashURL(url),
		Processed: ok,
	}, nil
}

func (uc *statusUseCase) ProcessedCount(ctx context.Context) (int, error) {
	return uc.processed.Len(ctx)
}
