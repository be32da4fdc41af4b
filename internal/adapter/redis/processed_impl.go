package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/glance/internal/entity"
	"github.com/user/glance/pkg/utils"
)

const processedKeyPrefix = "glance:processed:"

// ProcessedSetImpl keeps the run's ProcessedSet in a Redis SET scoped to one run id.
// The key is deleted on Close and carries a TTL so a killed process leaves nothing behind for long.
type ProcessedSetImpl struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewProcessedSet creates a set for runID. A zero ttl disables expiry.
func NewProcessedSet(client *redis.Client, runID string, ttl time.Duration) *ProcessedSetImpl {
	return &ProcessedSetImpl{
		client: client,
		key:    processedKeyPrefix + runID,
		ttl:    ttl,
	}
}

// Key returns the Redis key holding this run's members.
func (r *ProcessedSetImpl) Key() string {
	return r.key
}

// Contains checks membership of the hashed address.
func (r *ProcessedSetImpl) Contains(ctx context.Context, addr entity.Address) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, utils.HashURL(addr.String())).Result()
	if err != nil {
		return false, fmt.Errorf("redis SISMEMBER %s: %w", r.key, err)
	}
	return ok, nil
}

// Add inserts the hashed address and refreshes the key's expiry in one round trip.
func (r *ProcessedSetImpl) Add(ctx context.Context, addr entity.Address) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.key, utils.HashURL(addr.String()))
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis SADD %s: %w", r.key, err)
	}
	return nil
}

// Len returns the set's cardinality.
func (r *ProcessedSetImpl) Len(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis SCARD %s: %w", r.key, err)
	}
	return int(n), nil
}

// Close deletes the run's key. The client itself is owned by the caller.
func (r *ProcessedSetImpl) Close(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
