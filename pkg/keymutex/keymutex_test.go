package keymutex

import (
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	km := New()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("session-1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if km.Len() != 0 {
		t.Fatalf("expected no leftover entries, got %d", km.Len())
	}
}

func TestLockDifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	km := New()
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	t.Parallel()

	km := New()
	unlock := km.Lock("a")
	unlock()
	unlock()

	if km.Len() != 0 {
		t.Fatalf("expected no entries, got %d", km.Len())
	}
	relock := km.Lock("a")
	relock()
}
