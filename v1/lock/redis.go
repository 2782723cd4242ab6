package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	spinerrors "github.com/mirkobrombin/go-spin/v1/errors"
	"github.com/mirkobrombin/go-spin/v1/metrics"
	"github.com/mirkobrombin/go-spin/v1/spin"
)

const redisBackend = "redis"

var delScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// Redis implements Locker using SETNX as the test-and-set.
type Redis struct {
	client *redis.Client
	tokens *spin.Mutex[map[string]string]
	opts   options
}

// NewRedis returns a new Redis locker using the provided client.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	return &Redis{
		client: client,
		tokens: spin.New(make(map[string]string)),
		opts:   newOptions(opts),
	}
}

// TryLock attempts to obtain the lock without waiting.
func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	observe(redisBackend, ok, err)
	if err != nil {
		return false, err
	}
	if ok {
		r.tokens.Do(spin.Yield, func(tokens *map[string]string) {
			(*tokens)[key] = token
		})
	}
	return ok, nil
}

// Acquire blocks until the lock is obtained or the context is cancelled.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	return acquire(ctx, key, r.opts.strategy, func() (bool, error) {
		return r.TryLock(ctx, key, ttl)
	})
}

// Release frees the lock for the given key. The key is deleted only if it
// still carries this locker's token.
func (r *Redis) Release(ctx context.Context, key string) error {
	g := r.tokens.YieldLock()
	token, ok := g.Get()[key]
	g.Unlock()
	if !ok {
		return spinerrors.ErrNotHeld
	}
	n, err := delScript.Run(ctx, r.client, []string{key}, token).Int64()
	if err == redis.Nil {
		err = nil
	}
	if err != nil {
		slog.Warn("spin: redis lock release failed", "key", key, "error", err)
		metrics.RemoteErrorCounter.WithLabelValues(redisBackend).Inc()
		return err
	}
	r.tokens.Do(spin.Yield, func(tokens *map[string]string) {
		delete(*tokens, key)
	})
	if n == 0 {
		return spinerrors.ErrNotHeld
	}
	metrics.RemoteReleaseCounter.WithLabelValues(redisBackend).Inc()
	return nil
}
