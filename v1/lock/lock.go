package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/mirkobrombin/go-spin/v1/metrics"
	"github.com/mirkobrombin/go-spin/v1/spin"
)

// Locker acquires and releases named locks.
type Locker interface {
	// TryLock attempts to obtain the lock without waiting. It returns true on success.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Acquire blocks until the lock is obtained or the context is cancelled.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	// Release frees the lock for the given key.
	Release(ctx context.Context, key string) error
}

var (
	_ Locker = (*InMemory)(nil)
	_ Locker = (*Redis)(nil)
	_ Locker = (*NATS)(nil)
)

// Option configures a Locker.
type Option func(*options)

type options struct {
	strategy spin.Strategy
}

// WithStrategy sets how Acquire waits between failed attempts. The default
// is spin.ExpBackoff; spin.Spin retries a remote backend without pause.
func WithStrategy(s spin.Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

func newOptions(opts []Option) options {
	o := options{strategy: spin.ExpBackoff}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// acquire retries try with the configured strategy until it succeeds, fails
// or ctx is done.
func acquire(ctx context.Context, key string, s spin.Strategy, try func() (bool, error)) error {
	w := spin.NewWaiter(s)
	for {
		ok, err := try()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("spin: lock probe failed", "key", key, "strategy", s.String(), "error", err)
			}
			return err
		}
		if ok {
			return nil
		}
		if err := w.WaitContext(ctx); err != nil {
			return err
		}
	}
}

// observe records the outcome of one probe against backend.
func observe(backend string, ok bool, err error) {
	switch {
	case err != nil:
		metrics.RemoteErrorCounter.WithLabelValues(backend).Inc()
	case ok:
		metrics.RemoteAcquireCounter.WithLabelValues(backend).Inc()
	default:
		metrics.RemoteContendedCounter.WithLabelValues(backend).Inc()
	}
}
