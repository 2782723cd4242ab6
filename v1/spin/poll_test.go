package spin

import (
	"context"
	"errors"
	"testing"
	"time"

	spinerrors "github.com/mirkobrombin/go-spin/v1/errors"
)

func TestPollTimeout(t *testing.T) {
	m := New(0)
	g := m.SpinLock()
	defer g.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	got, err := Poll(ctx, time.Millisecond, m.TryLock)
	if got != nil {
		t.Fatal("expected no guard on timeout")
	}
	if !errors.Is(err, spinerrors.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout error got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("poll did not respect context timeout")
	}
}

func TestPollCancelWithYield(t *testing.T) {
	m := NewTry(0)
	g, _ := m.TryLock()
	defer g.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Poll(ctx, 0, m.TryLock)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled got %v", err)
	}
	if errors.Is(err, spinerrors.ErrTimeout) {
		t.Fatal("cancellation must not report a timeout")
	}
}

func TestPollAcquiresAfterRelease(t *testing.T) {
	m := New(5)
	g := m.SpinLock()
	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g2, err := Poll(ctx, time.Millisecond, m.TryLock)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	defer g2.Unlock()
	if g2.Get() != 5 {
		t.Fatalf("expected 5 got %d", g2.Get())
	}
}
