package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a single-holder lock stored at key. Only the holder's token can release it,
// and it expires on its own if the holder dies.
type RedisLease struct {
	rdb *redis.Client
	key string

	mu    sync.Mutex
	token string
}

func NewRedisLease(rdb *redis.Client, key string) *RedisLease {
	if key == "" {
		key = "lifecycle:sweep"
	}
	return &RedisLease{rdb: rdb, key: key}
}

func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
}
