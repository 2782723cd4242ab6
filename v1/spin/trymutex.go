package spin

import "sync/atomic"

// TryMutex is an exclusive cell that can only be acquired by a non-blocking
// probe. Callers that must never wait use it instead of Mutex.
type TryMutex[T any] struct {
	_      noCopy
	locked atomic.Bool
	obs    *observer
	value  T
}

// NewTry returns an unlocked TryMutex that owns value.
func NewTry[T any](value T, opts ...Option) *TryMutex[T] {
	return &TryMutex[T]{value: value, obs: newObserver(opts)}
}

// TryLock makes a single test-and-set attempt. It returns a guard and true
// if the lock was free, or nil and false if it was already held.
func (m *TryMutex[T]) TryLock() (*TryGuard[T], bool) {
	if m.locked.Swap(true) {
		m.obs.tryFailed()
		return nil, false
	}
	m.obs.tryAcquired()
	return &TryGuard[T]{m: m}, true
}

// TryDo runs fn with exclusive access to the value if the lock is free and
// reports whether it ran.
func (m *TryMutex[T]) TryDo(fn func(v *T)) bool {
	g, ok := m.TryLock()
	if !ok {
		return false
	}
	defer g.Unlock()
	fn(g.Value())
	return true
}

// IsLocked reports whether a guard is live.
func (m *TryMutex[T]) IsLocked() bool {
	return m.locked.Load()
}

// TryGuard grants access to the value of a locked TryMutex until Unlock.
type TryGuard[T any] struct {
	m        *TryMutex[T]
	released bool
}

// Get returns a copy of the protected value.
func (g *TryGuard[T]) Get() T {
	return *g.Value()
}

// Set replaces the protected value.
func (g *TryGuard[T]) Set(v T) {
	*g.Value() = v
}

// Value returns a pointer to the protected value, valid until Unlock.
func (g *TryGuard[T]) Value() *T {
	if g.released {
		panic(errReleased)
	}
	return &g.m.value
}

// Unlock releases the lock. Calling it again on the same guard does nothing.
func (g *TryGuard[T]) Unlock() {
	if g.released {
		return
	}
	g.released = true
	g.m.obs.released()
	g.m.locked.Store(false)
}
