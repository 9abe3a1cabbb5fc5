package lock

import (
	"sync"
	"testing"
)

func TestKeyedMutexes_SameKeyReturnsSameInstance(t *testing.T) {
	km := NewKeyedMutexes()

	a := km.For("git.com-org-proj.git")
	b := km.For("git.com-org-proj.git")
	if a != b {
		t.Fatal("For() returned different mutex instances for the same key")
	}
}

func TestKeyedMutexes_DifferentKeysReturnDifferentInstances(t *testing.T) {
	km := NewKeyedMutexes()

	a := km.For("key-a")
	b := km.For("key-b")
	if a == b {
		t.Fatal("For() returned the same mutex instance for different keys")
	}
}

func TestKeyedMutexes_ConcurrentForConvergesOnOneInstance(t *testing.T) {
	km := NewKeyedMutexes()

	const n = 64
	results := make([]*RWMutex, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = km.For("shared-key")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("For() returned a distinct instance for goroutine %d", i)
		}
	}
}

func TestRWMutex_LockUnlock(t *testing.T) {
	var m RWMutex
	m.Lock()
	m.Unlock()

	m.RLock()
	m.RUnlock()
}
