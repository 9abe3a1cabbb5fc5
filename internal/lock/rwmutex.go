// Package lock provides the intra-process locking primitives used by the
// reference cache (SPEC_FULL.md §4.D): a deadlock-detecting RWMutex, and a
// lazily-populated per-key mutex map (SPEC_FULL.md §9 "Per-key mutex via
// lazy map").
package lock

import (
	"sync"

	"github.com/sasha-s/go-deadlock"
)

// RWMutex is a drop-in replacement for sync.RWMutex backed by
// github.com/sasha-s/go-deadlock, which logs (rather than silently
// deadlocking) when a lock is held across a suspicious span of time or a
// lock-ordering cycle is detected. With_mirror bodies can run external git
// commands for minutes, so catching an accidental self-deadlock during
// development is worth the small runtime overhead.
type RWMutex struct {
	mu deadlock.RWMutex
}

func (m *RWMutex) Lock()    { m.mu.Lock() }
func (m *RWMutex) Unlock()  { m.mu.Unlock() }
func (m *RWMutex) RLock()   { m.mu.RLock() }
func (m *RWMutex) RUnlock() { m.mu.RUnlock() }

// TryLock and TryRLock report whether the lock was acquired without
// blocking.
func (m *RWMutex) TryLock() bool  { return m.mu.TryLock() }
func (m *RWMutex) TryRLock() bool { return m.mu.TryRLock() }

// KeyedMutexes is a process-wide map from an arbitrary string key (a cache
// key, see giturl.Key) to a *RWMutex created lazily on first use and kept
// for the process lifetime (spec.md §3 "Per-key mutex map"). It is itself
// guarded by a coarse lock so that two goroutines racing to create the
// mutex for the same brand-new key are guaranteed to observe the same
// instance. Handing out the deadlock-checked RWMutex rather than a plain
// sync.Mutex means the long-held critical sections with_mirror bodies open
// (running external git commands, sometimes for minutes) get the same
// lock-ordering/stuck-holder detection as every other lock in the cache.
type KeyedMutexes struct {
	mu    sync.Mutex
	byKey map[string]*RWMutex
}

// NewKeyedMutexes returns an empty, ready-to-use map.
func NewKeyedMutexes() *KeyedMutexes {
	return &KeyedMutexes{byKey: make(map[string]*RWMutex)}
}

// For returns the mutex for key, creating it if this is the first
// reference. The returned mutex is never removed: entries live for the
// process lifetime (spec.md §3).
func (k *KeyedMutexes) For(key string) *RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.byKey[key]
	if !ok {
		m = &RWMutex{}
		k.byKey[key] = m
	}
	return m
}
