package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-spin/v1/lock"
	"github.com/mirkobrombin/go-spin/v1/spin"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Contend on a named lock held in memory, Redis or NATS",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, stop, err := telemetry(ctx)
		if err != nil {
			return err
		}
		defer stop()

		s, err := spin.ParseStrategy(v.GetString("strategy"))
		if err != nil {
			return err
		}
		newLocker, closeBackend, err := openBackend(v.GetString("backend"), v.GetString("addr"), v.GetDuration("ttl"), s)
		if err != nil {
			return err
		}
		defer closeBackend()

		return contendKey(ctx, newLocker, v.GetString("key"), v.GetInt("goroutines"), v.GetInt("iterations"), v.GetDuration("ttl"))
	},
}

func init() {
	f := lockCmd.Flags()
	f.String("backend", "memory", "memory, redis or nats")
	f.String("addr", "", "Backend address (redis host:port or nats URL)")
	f.String("key", "spin-bench", "Name of the contended lock")
	f.StringP("strategy", "s", "backoff", "Wait strategy between failed attempts: spin, yield or backoff")
	f.IntP("goroutines", "c", 4, "Number of contending lockers")
	f.IntP("iterations", "n", 100, "Acquisitions per locker")
	f.Duration("ttl", 10*time.Second, "Lock TTL")
}

// openBackend returns a constructor for lockers sharing one backend, so each
// worker owns its own tokens.
func openBackend(backend, addr string, ttl time.Duration, s spin.Strategy) (func() lock.Locker, func(), error) {
	switch backend {
	case "memory":
		reg := lock.NewRegistry()
		return func() lock.Locker { return lock.NewInMemory(reg, lock.WithStrategy(s)) }, func() {}, nil
	case "redis":
		if addr == "" {
			addr = "localhost:6379"
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		return func() lock.Locker { return lock.NewRedis(client, lock.WithStrategy(s)) },
			func() { _ = client.Close() }, nil
	case "nats":
		if addr == "" {
			addr = nats.DefaultURL
		}
		conn, err := nats.Connect(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("jetstream: %w", err)
		}
		kv, err := lock.NewNATSBucket(js, "spin_locks", ttl)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("bucket: %w", err)
		}
		return func() lock.Locker { return lock.NewNATS(kv, lock.WithStrategy(s)) }, conn.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", backend)
}

func contendKey(ctx context.Context, newLocker func() lock.Locker, key string, workers, iterations int, ttl time.Duration) error {
	var inside atomic.Int32
	var acquired atomic.Int64
	start := time.Now()
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		l := newLocker()
		eg.Go(func() error {
			for j := 0; j < iterations; j++ {
				if err := l.Acquire(ctx, key, ttl); err != nil {
					return err
				}
				if n := inside.Add(1); n > 1 {
					return fmt.Errorf("%d holders of %q overlapped", n, key)
				}
				inside.Add(-1)
				acquired.Add(1)
				if err := l.Release(ctx, key); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	slog.Info("lock contention finished", "key", key, "acquired", acquired.Load(), "elapsed", time.Since(start))
	return nil
}
