package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-spin/v1/spin"
)

const tryMode = "try"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Contend on one lock with the selected strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, stop, err := telemetry(ctx)
		if err != nil {
			return err
		}
		defer stop()

		modes, err := parseModes(v.GetString("strategy"))
		if err != nil {
			return err
		}
		cfg := benchConfig{
			Goroutines: v.GetInt("goroutines"),
			Iterations: v.GetInt("iterations"),
			Hold:       v.GetDuration("hold"),
			SlowWait:   v.GetDuration("slow-wait"),
			Trace:      v.GetBool("trace"),
		}
		for _, mode := range modes {
			res, err := contend(ctx, mode, cfg, reg)
			if err != nil {
				return err
			}
			res.log()
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringP("strategy", "s", "all", "spin, yield, backoff, try or all")
	f.IntP("goroutines", "c", 8, "Number of contending goroutines")
	f.IntP("iterations", "n", 10000, "Acquisitions (or probes in try mode) per goroutine")
	f.Duration("hold", 0, "Time spent inside each critical section")
	f.Duration("slow-wait", 0, "Log acquisitions that waited longer than this")
}

type benchConfig struct {
	Goroutines int
	Iterations int
	Hold       time.Duration
	SlowWait   time.Duration
	Trace      bool
}

type benchResult struct {
	Mode     string
	Elapsed  time.Duration
	Acquired int64
	Final    int
}

func (r benchResult) log() {
	throughput := float64(r.Acquired) / r.Elapsed.Seconds()
	slog.Info("contention finished",
		"strategy", r.Mode,
		"elapsed", r.Elapsed,
		"acquired", r.Acquired,
		"final", r.Final,
		"throughput", fmt.Sprintf("%.2f/s", throughput),
	)
}

func parseModes(name string) ([]string, error) {
	if name == "all" {
		return []string{spin.Spin.String(), spin.Yield.String(), spin.ExpBackoff.String(), tryMode}, nil
	}
	if name == tryMode {
		return []string{tryMode}, nil
	}
	s, err := spin.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	return []string{s.String()}, nil
}

// contend runs cfg.Goroutines workers against a single Mutex[int]. Each
// critical section increments the value while an occupancy counter checks
// that no other section overlaps it.
func contend(ctx context.Context, mode string, cfg benchConfig, reg prometheus.Registerer) (benchResult, error) {
	opts := []spin.Option{spin.WithName(mode), spin.WithSlowWait(cfg.SlowWait)}
	if reg != nil {
		opts = append(opts, spin.WithMetrics(reg))
	}
	if cfg.Trace {
		opts = append(opts, spin.WithTracing())
	}
	m := spin.New(0, opts...)

	var strategy spin.Strategy
	if mode != tryMode {
		s, err := spin.ParseStrategy(mode)
		if err != nil {
			return benchResult{}, err
		}
		strategy = s
	}

	var inside atomic.Int32
	var acquired atomic.Int64
	critical := func(v *int) error {
		if n := inside.Add(1); n > 1 {
			return fmt.Errorf("%s: %d critical sections overlapped", mode, n)
		}
		*v++
		if cfg.Hold > 0 {
			time.Sleep(cfg.Hold)
		}
		inside.Add(-1)
		acquired.Add(1)
		return nil
	}

	slog.Debug("starting contention", "strategy", mode, "goroutines", cfg.Goroutines, "iterations", cfg.Iterations)
	start := time.Now()
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Goroutines; i++ {
		eg.Go(func() error {
			for j := 0; j < cfg.Iterations; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				var err error
				if mode == tryMode {
					if g, ok := m.TryLock(); ok {
						err = critical(g.Value())
						g.Unlock()
					}
				} else {
					m.Do(strategy, func(v *int) { err = critical(v) })
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return benchResult{}, err
	}
	res := benchResult{Mode: mode, Elapsed: time.Since(start), Acquired: acquired.Load()}

	g := m.SpinLock()
	res.Final = g.Get()
	g.Unlock()
	if int64(res.Final) != res.Acquired {
		return res, fmt.Errorf("%s: lost updates, value %d after %d acquisitions", mode, res.Final, res.Acquired)
	}
	return res, nil
}
