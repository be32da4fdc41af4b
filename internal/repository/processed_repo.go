package repository

import (
	"context"

	"github.com/user/glance/internal/entity"
)

// ProcessedSet defines the interface for tracking addresses summarized during this run.
// Membership is exact string equality; nothing survives a restart.
type ProcessedSet interface {
	// Contains reports whether addr has already been summarized.
	Contains(ctx context.Context, addr entity.Address) (bool, error)
	// Add marks addr as summarized.
	Add(ctx context.Context, addr entity.Address) error
	// Len returns the number of addresses summarized so far.
	Len(ctx context.Context) (int, error)
	// Close discards the set.
	Close(ctx context.Context) error
}
