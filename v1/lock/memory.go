package lock

import (
	"context"
	"log/slog"
	"time"

	uuid "github.com/hashicorp/go-uuid"

	spinerrors "github.com/mirkobrombin/go-spin/v1/errors"
	"github.com/mirkobrombin/go-spin/v1/metrics"
	"github.com/mirkobrombin/go-spin/v1/spin"
)

const memoryBackend = "memory"

type entry struct {
	token     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Registry is the table of held keys shared by InMemory lockers.
type Registry struct {
	entries *spin.Mutex[map[string]entry]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: spin.New(make(map[string]entry))}
}

// Held reports whether key is currently held and not expired.
func (r *Registry) Held(key string) bool {
	g := r.entries.YieldLock()
	defer g.Unlock()
	e, ok := g.Get()[key]
	return ok && !e.expired(time.Now())
}

// InMemory implements Locker on a process-local Registry. Lockers built on
// the same registry exclude each other; each one can only release the keys
// it acquired.
type InMemory struct {
	reg    *Registry
	tokens *spin.Mutex[map[string]string]
	opts   options
}

// NewInMemory returns a new in-memory locker backed by reg. A nil registry
// gives the locker a private one.
func NewInMemory(reg *Registry, opts ...Option) *InMemory {
	if reg == nil {
		reg = NewRegistry()
	}
	return &InMemory{
		reg:    reg,
		tokens: spin.New(make(map[string]string)),
		opts:   newOptions(opts),
	}
}

// TryLock attempts to obtain the lock without waiting. It returns true on success.
func (l *InMemory) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	token, err := uuid.GenerateUUID()
	if err != nil {
		observe(memoryBackend, false, err)
		return false, err
	}

	now := time.Now()
	g := l.reg.entries.YieldLock()
	entries := g.Get()
	if e, ok := entries[key]; ok {
		if !e.expired(now) {
			g.Unlock()
			observe(memoryBackend, false, nil)
			return false, nil
		}
		slog.Debug("spin: in-memory lock expired", "key", key)
	}
	e := entry{token: token}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	entries[key] = e
	g.Unlock()

	l.tokens.Do(spin.Yield, func(tokens *map[string]string) {
		(*tokens)[key] = token
	})
	observe(memoryBackend, true, nil)
	return true, nil
}

// Acquire blocks until the lock is obtained or the context is cancelled.
func (l *InMemory) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	return acquire(ctx, key, l.opts.strategy, func() (bool, error) {
		return l.TryLock(ctx, key, ttl)
	})
}

// Release frees the lock for the given key. It returns ErrNotHeld when this
// locker does not hold key, including when its TTL already lapsed.
func (l *InMemory) Release(ctx context.Context, key string) error {
	var token string
	var ok bool
	l.tokens.Do(spin.Yield, func(tokens *map[string]string) {
		token, ok = (*tokens)[key]
		delete(*tokens, key)
	})
	if !ok {
		return spinerrors.ErrNotHeld
	}

	released := false
	l.reg.entries.Do(spin.Yield, func(entries *map[string]entry) {
		e, found := (*entries)[key]
		if !found || e.token != token {
			return
		}
		delete(*entries, key)
		released = !e.expired(time.Now())
	})
	if !released {
		return spinerrors.ErrNotHeld
	}
	metrics.RemoteReleaseCounter.WithLabelValues(memoryBackend).Inc()
	return nil
}
