package pending

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/copperline/barback/internal/domain"
)

const redisKeyPrefix = "barback:pending:"

// Redis is the registry backend for deployments that restart or run more
// than one instance. Expiry rides on the key TTL, so reads past it see
// redis.Nil and report absent just like the memory backend.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed registry.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Put(ctx context.Context, a *domain.PendingAction) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal pending action: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+a.MessageID, data, TTL).Err(); err != nil {
		return fmt.Errorf("store pending action: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, messageID string) (*domain.PendingAction, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+messageID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending action: %w", err)
	}
	a := &domain.PendingAction{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("unmarshal pending action: %w", err)
	}
	return a, nil
}

func (r *Redis) Delete(ctx context.Context, messageID string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("delete pending action: %w", err)
	}
	return nil
}

func (r *Redis) Size(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("scan pending actions: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
