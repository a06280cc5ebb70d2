package lock

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestMutexMap_LockUnlock(t *testing.T) {
	m := NewMutexMap()

	m.Lock("sess-1")
	m.Unlock("sess-1")

	// Should be able to lock again
	m.Lock("sess-1")
	m.Unlock("sess-1")
}

func TestMutexMap_DifferentKeys(t *testing.T) {
	m := NewMutexMap()

	done := make(chan struct{})

	m.Lock("sess-1")
	go func() {
		// sess-2 should not be blocked by sess-1
		m.Lock("sess-2")
		m.Unlock("sess-2")
		close(done)
	}()

	<-done
	m.Unlock("sess-1")
}

func TestMutexMap_Concurrent(t *testing.T) {
	m := NewMutexMap()
	var counter int64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("shared")
			atomic.AddInt64(&counter, 1)
			m.Unlock("shared")
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected counter=100, got %d", counter)
	}
}
