package spin

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"

	spinerrors "github.com/mirkobrombin/go-spin/v1/errors"
)

// Strategy selects what a blocking acquisition does after a failed
// test-and-set.
type Strategy int

const (
	// Spin retries immediately.
	Spin Strategy = iota
	// Yield gives up the processor with runtime.Gosched before retrying.
	Yield
	// ExpBackoff sleeps for an exponentially growing delay before retrying.
	ExpBackoff
)

// String returns the strategy name used in metrics labels and flags.
func (s Strategy) String() string {
	switch s {
	case Spin:
		return "spin"
	case Yield:
		return "yield"
	case ExpBackoff:
		return "backoff"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

func (s Strategy) valid() bool {
	return s >= Spin && s <= ExpBackoff
}

// ParseStrategy maps a strategy name back to its Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "spin":
		return Spin, nil
	case "yield":
		return Yield, nil
	case "backoff", "exp_backoff", "expbackoff":
		return ExpBackoff, nil
	}
	return 0, fmt.Errorf("%w: %q", spinerrors.ErrInvalidStrategy, name)
}

// InitialBackoff is the first delay used by ExpBackoff.
const InitialBackoff = time.Millisecond

// Backoff produces the ExpBackoff delay schedule: InitialBackoff doubled after
// every call, without an upper bound. The zero value is ready to use.
type Backoff struct {
	next time.Duration
}

// Next returns the current delay and doubles the following one. Doubling
// saturates at the largest time.Duration.
func (b *Backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = InitialBackoff
	}
	d := b.next
	if b.next > math.MaxInt64/2 {
		b.next = math.MaxInt64
	} else {
		b.next *= 2
	}
	return d
}

// Reset restarts the schedule at InitialBackoff.
func (b *Backoff) Reset() {
	b.next = 0
}

// Waiter paces the retries of a failing test-and-set loop.
type Waiter struct {
	strategy Strategy
	backoff  Backoff
}

// NewWaiter returns a Waiter for s.
func NewWaiter(s Strategy) *Waiter {
	return &Waiter{strategy: s}
}

// Wait blocks according to the strategy. It cannot be interrupted.
func (w *Waiter) Wait() {
	switch w.strategy {
	case Yield:
		runtime.Gosched()
	case ExpBackoff:
		time.Sleep(w.backoff.Next())
	}
}

// WaitContext is Wait that gives up when ctx is done.
func (w *Waiter) WaitContext(ctx context.Context) error {
	switch w.strategy {
	case Yield:
		runtime.Gosched()
	case ExpBackoff:
		t := time.NewTimer(w.backoff.Next())
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}
