package spin

import (
	"fmt"
	"sync/atomic"
)

const errReleased = "spin: use of released guard"

// noCopy lets go vet report copies of a lock after first use.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Accessor is the access surface shared by Guard and TryGuard.
type Accessor[T any] interface {
	// Get returns a copy of the protected value.
	Get() T
	// Set replaces the protected value.
	Set(v T)
	// Value returns a pointer to the protected value. The pointer must not
	// be used after Unlock.
	Value() *T
	// Unlock releases the lock.
	Unlock()
}

var (
	_ Accessor[int] = (*Guard[int])(nil)
	_ Accessor[int] = (*TryGuard[int])(nil)
)

// Mutex is an exclusive cell guarded by one atomic flag. The zero value is
// an unlocked Mutex holding the zero T. A Mutex must not be copied after
// first use.
type Mutex[T any] struct {
	_      noCopy
	locked atomic.Bool
	obs    *observer
	value  T
}

// New returns an unlocked Mutex that owns value.
func New[T any](value T, opts ...Option) *Mutex[T] {
	return &Mutex[T]{value: value, obs: newObserver(opts)}
}

// SpinLock acquires the lock, retrying the test-and-set without pause.
func (m *Mutex[T]) SpinLock() *Guard[T] {
	return m.acquire(Spin, "Mutex.SpinLock")
}

// YieldLock acquires the lock, yielding the processor between attempts.
func (m *Mutex[T]) YieldLock() *Guard[T] {
	return m.acquire(Yield, "Mutex.YieldLock")
}

// ExpBackoffLock acquires the lock, sleeping between attempts. The first
// sleep lasts InitialBackoff and each following one doubles, without cap.
func (m *Mutex[T]) ExpBackoffLock() *Guard[T] {
	return m.acquire(ExpBackoff, "Mutex.ExpBackoffLock")
}

// Lock acquires the lock with the given strategy. It panics on an unknown
// strategy.
func (m *Mutex[T]) Lock(s Strategy) *Guard[T] {
	switch s {
	case Spin:
		return m.SpinLock()
	case Yield:
		return m.YieldLock()
	case ExpBackoff:
		return m.ExpBackoffLock()
	}
	panic(fmt.Sprintf("spin: unknown strategy %d", int(s)))
}

// TryLock makes a single test-and-set attempt. It returns a guard and true
// if the lock was free, or nil and false if it was already held.
func (m *Mutex[T]) TryLock() (*Guard[T], bool) {
	if m.locked.Swap(true) {
		m.obs.tryFailed()
		return nil, false
	}
	m.obs.tryAcquired()
	return &Guard[T]{m: m}, true
}

// Do runs fn with exclusive access to the value, acquiring with s. The lock
// is released when fn returns or panics.
func (m *Mutex[T]) Do(s Strategy, fn func(v *T)) {
	g := m.Lock(s)
	defer g.Unlock()
	fn(g.Value())
}

// IsLocked reports whether a guard is live. The answer may be stale by the
// time it is returned.
func (m *Mutex[T]) IsLocked() bool {
	return m.locked.Load()
}

func (m *Mutex[T]) acquire(s Strategy, method string) *Guard[T] {
	if m.obs != nil {
		return m.acquireObserved(s, method)
	}
	var w Waiter
	w.strategy = s
	for m.locked.Swap(true) {
		w.Wait()
	}
	return &Guard[T]{m: m}
}

func (m *Mutex[T]) acquireObserved(s Strategy, method string) *Guard[T] {
	span, start := m.obs.begin(method)
	w := Waiter{strategy: s}
	attempts := 1
	for m.locked.Swap(true) {
		w.Wait()
		attempts++
	}
	m.obs.acquired(s, attempts, span, start)
	return &Guard[T]{m: m}
}

// Guard grants access to the value of a locked Mutex until Unlock.
type Guard[T any] struct {
	m        *Mutex[T]
	released bool
}

// Get returns a copy of the protected value.
func (g *Guard[T]) Get() T {
	return *g.Value()
}

// Set replaces the protected value.
func (g *Guard[T]) Set(v T) {
	*g.Value() = v
}

// Value returns a pointer to the protected value, valid until Unlock.
func (g *Guard[T]) Value() *T {
	if g.released {
		panic(errReleased)
	}
	return &g.m.value
}

// Unlock releases the lock. Calling it again on the same guard does nothing.
func (g *Guard[T]) Unlock() {
	if g.released {
		return
	}
	g.released = true
	g.m.obs.released()
	g.m.locked.Store(false)
}
