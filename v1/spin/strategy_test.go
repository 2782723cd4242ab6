package spin

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	spinerrors "github.com/mirkobrombin/go-spin/v1/errors"
)

func TestBackoffDoubles(t *testing.T) {
	var b Backoff
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("step %d: expected %v got %v", i, w, got)
		}
	}
	b.Reset()
	if got := b.Next(); got != InitialBackoff {
		t.Fatalf("expected reset to %v got %v", InitialBackoff, got)
	}
}

func TestBackoffHasNoCapButSaturates(t *testing.T) {
	var b Backoff
	var last time.Duration
	for i := 0; i < 80; i++ {
		d := b.Next()
		if d < last {
			t.Fatalf("backoff decreased at step %d: %v < %v", i, d, last)
		}
		last = d
	}
	if last != math.MaxInt64 {
		t.Fatalf("expected saturation at max duration got %v", last)
	}
	if got := b.Next(); got != math.MaxInt64 {
		t.Fatalf("expected to stay saturated got %v", got)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{Spin, Yield, ExpBackoff} {
		got, err := ParseStrategy(s.String())
		if err != nil || got != s {
			t.Fatalf("parse %q: got %v err %v", s.String(), got, err)
		}
	}
	if _, err := ParseStrategy("fifo"); !errors.Is(err, spinerrors.ErrInvalidStrategy) {
		t.Fatalf("expected ErrInvalidStrategy got %v", err)
	}
	if s := Strategy(9).String(); s != "Strategy(9)" {
		t.Fatalf("unexpected name %q", s)
	}
}

func TestWaitContextCancelledBackoff(t *testing.T) {
	w := NewWaiter(ExpBackoff)
	for i := 0; i < 10; i++ {
		w.backoff.Next()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := w.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("wait did not respect context deadline")
	}
}

func TestWaitContextSpinReturnsCtxErr(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWaiter(Spin)
	if err := w.WaitContext(ctx); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	cancel()
	if err := w.WaitContext(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled got %v", err)
	}
}
