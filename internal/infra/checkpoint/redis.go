package checkpoint

import (
	"context"
	"time"

	"github.com/vietddude/labeler/internal/core/domain"
	redisclient "github.com/vietddude/labeler/internal/infra/redis"
)

// RedisStore keeps the checkpoint under a single Redis key.
type RedisStore struct {
	client *redisclient.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redisclient.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) (*domain.Checkpoint, error) {
	return s.client.GetCheckpoint(ctx, s.key)
}

func (s *RedisStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	return s.client.SetCheckpoint(ctx, s.key, cp, s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context) error {
	return s.client.DeleteCheckpoint(ctx, s.key)
}
