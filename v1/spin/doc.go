// Package spin provides mutual-exclusion cells built on a single atomic flag.
//
// A Mutex owns a value and hands out a Guard to exactly one goroutine at a
// time. The caller picks how to wait while the flag is taken: SpinLock busy
// polls, YieldLock calls runtime.Gosched between attempts, ExpBackoffLock
// sleeps for 1ms, 2ms, 4ms and so on, and TryLock probes once and returns.
// TryMutex is a smaller cell that only offers the non-blocking probe.
//
// The value is reachable only through a live guard and the lock is released
// only by Guard.Unlock, normally deferred right after acquisition:
//
//	g := m.SpinLock()
//	defer g.Unlock()
//	*g.Value()++
//
// There is no fairness among waiters, no reentrancy and no poisoning. A guard
// that is never unlocked keeps the lock held for every later caller, and a
// goroutine that acquires a lock it already holds waits forever.
package spin
