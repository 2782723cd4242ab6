package spin

import (
	"sync"
	"testing"
	"time"
)

func TestTryMutexContention(t *testing.T) {
	m := NewTry(0)
	acquired := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		g, ok := m.TryLock()
		if !ok {
			t.Error("expected first try lock to succeed")
			close(acquired)
			return
		}
		defer g.Unlock()
		close(acquired)
		if v := g.Get(); v != 0 {
			t.Errorf("holder expected 0 got %d", v)
		}
		time.Sleep(500 * time.Millisecond)
	}()

	<-acquired
	time.Sleep(50 * time.Millisecond)
	if _, ok := m.TryLock(); ok {
		t.Fatal("expected try lock to fail while held")
	}
	<-done

	g, ok := m.TryLock()
	if !ok {
		t.Fatal("expected try lock to succeed after release")
	}
	defer g.Unlock()
	if v := g.Get(); v != 0 {
		t.Fatalf("expected 0 got %d", v)
	}
}

func TestTryMutexNoLostUpdates(t *testing.T) {
	const workers, iterations = 8, 200
	m := NewTry(0)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; {
				if m.TryDo(func(v *int) { *v++ }) {
					j++
				}
			}
		}()
	}
	wg.Wait()

	g, ok := m.TryLock()
	if !ok {
		t.Fatal("expected lock free after workers finished")
	}
	defer g.Unlock()
	if got := g.Get(); got != workers*iterations {
		t.Fatalf("expected %d got %d", workers*iterations, got)
	}
}

func TestTryDoReportsContention(t *testing.T) {
	m := NewTry("x")
	g, _ := m.TryLock()
	if m.TryDo(func(*string) { t.Fatal("fn ran while lock held") }) {
		t.Fatal("expected TryDo to report false while held")
	}
	if !m.IsLocked() {
		t.Fatal("expected locked")
	}
	g.Set("y")
	g.Unlock()
	g.Unlock()

	ran := m.TryDo(func(v *string) {
		if *v != "y" {
			t.Errorf("expected y got %s", *v)
		}
	})
	if !ran {
		t.Fatal("expected TryDo to run once free")
	}
	if m.IsLocked() {
		t.Fatal("expected unlocked after TryDo")
	}
}

func TestTryGuardReleasedPanics(t *testing.T) {
	m := NewTry(1)
	g, _ := m.TryLock()
	g.Unlock()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on released guard access")
		}
	}()
	_ = g.Get()
}

func TestAccessorWorksForBothGuards(t *testing.T) {
	full := New(1)
	reduced := NewTry(1)
	fg, _ := full.TryLock()
	rg, _ := reduced.TryLock()
	for _, a := range []Accessor[int]{fg, rg} {
		a.Set(a.Get() + 1)
		*a.Value() *= 10
		a.Unlock()
	}
	full.Do(Spin, func(v *int) {
		if *v != 20 {
			t.Errorf("full: expected 20 got %d", *v)
		}
	})
	reduced.TryDo(func(v *int) {
		if *v != 20 {
			t.Errorf("reduced: expected 20 got %d", *v)
		}
	})
}
