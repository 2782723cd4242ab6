package spin

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	spinerrors "github.com/mirkobrombin/go-spin/v1/errors"
)

// Poll calls try until it reports success or ctx is done, turning a
// non-blocking probe such as Mutex.TryLock or TryMutex.TryLock into a
// cancellable acquisition:
//
//	g, err := spin.Poll(ctx, time.Millisecond, m.TryLock)
//
// A non-positive interval yields the processor between attempts. When the
// deadline passes the returned error wraps both ErrTimeout and ctx.Err().
func Poll[G any](ctx context.Context, interval time.Duration, try func() (G, bool)) (G, error) {
	var t *time.Timer
	for {
		if g, ok := try(); ok {
			return g, nil
		}
		if interval <= 0 {
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				return pollErr[G](err)
			}
			continue
		}
		if t == nil {
			t = time.NewTimer(interval)
			defer t.Stop()
		} else {
			t.Reset(interval)
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return pollErr[G](ctx.Err())
		}
	}
}

func pollErr[G any](err error) (G, error) {
	var zero G
	if errors.Is(err, context.DeadlineExceeded) {
		return zero, fmt.Errorf("%w: %w", spinerrors.ErrTimeout, err)
	}
	return zero, err
}
