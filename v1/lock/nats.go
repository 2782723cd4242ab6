package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"

	spinerrors "github.com/mirkobrombin/go-spin/v1/errors"
	"github.com/mirkobrombin/go-spin/v1/metrics"
	"github.com/mirkobrombin/go-spin/v1/spin"
)

const natsBackend = "nats"

// NewNATSBucket binds to the JetStream key-value bucket used for locks,
// creating it when missing. ttl becomes the bucket's max age and therefore
// the TTL of every lock stored in it; zero keeps keys until released.
func NewNATSBucket(js nats.JetStreamContext, bucket string, ttl time.Duration) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, err
	}
	return js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket, TTL: ttl})
}

// NATS implements Locker using KeyValue.Create as the test-and-set. The
// per-call ttl is ignored; expiry is governed by the bucket.
type NATS struct {
	kv     nats.KeyValue
	tokens *spin.Mutex[map[string]string]
	opts   options
}

// NewNATS returns a new NATS locker storing locks in kv.
func NewNATS(kv nats.KeyValue, opts ...Option) *NATS {
	return &NATS{
		kv:     kv,
		tokens: spin.New(make(map[string]string)),
		opts:   newOptions(opts),
	}
}

// TryLock attempts to obtain the lock without waiting.
func (n *NATS) TryLock(ctx context.Context, key string, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	token := uuid.NewString()
	_, err := n.kv.Create(key, []byte(token))
	if errors.Is(err, nats.ErrKeyExists) {
		observe(natsBackend, false, nil)
		return false, nil
	}
	observe(natsBackend, err == nil, err)
	if err != nil {
		return false, err
	}
	n.tokens.Do(spin.Yield, func(tokens *map[string]string) {
		(*tokens)[key] = token
	})
	return true, nil
}

// Acquire blocks until the lock is obtained or the context is cancelled.
func (n *NATS) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	return acquire(ctx, key, n.opts.strategy, func() (bool, error) {
		return n.TryLock(ctx, key, ttl)
	})
}

// Release frees the lock for the given key if the stored token is still
// ours. The delete is conditional on the revision that was read. The token
// is kept when the backend fails, so the release can be retried.
func (n *NATS) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g := n.tokens.YieldLock()
	token, ok := g.Get()[key]
	g.Unlock()
	if !ok {
		return spinerrors.ErrNotHeld
	}

	e, err := n.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		n.forget(key)
		return spinerrors.ErrNotHeld
	}
	if err != nil {
		slog.Warn("spin: nats lock release failed", "key", key, "error", err)
		metrics.RemoteErrorCounter.WithLabelValues(natsBackend).Inc()
		return err
	}
	if string(e.Value()) != token {
		n.forget(key)
		return spinerrors.ErrNotHeld
	}
	if err := n.kv.Delete(key, nats.LastRevision(e.Revision())); err != nil {
		slog.Warn("spin: nats lock release failed", "key", key, "error", err)
		metrics.RemoteErrorCounter.WithLabelValues(natsBackend).Inc()
		return err
	}
	n.forget(key)
	metrics.RemoteReleaseCounter.WithLabelValues(natsBackend).Inc()
	return nil
}

func (n *NATS) forget(key string) {
	n.tokens.Do(spin.Yield, func(tokens *map[string]string) {
		delete(*tokens, key)
	})
}
