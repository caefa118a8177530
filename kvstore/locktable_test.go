package kvstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockTableAcquireRelease(t *testing.T) {
	lt := newLockTable()
	lt.acquire([]uint64{1, 2, 3})
	lt.release([]uint64{1, 2, 3})
	// a second acquire must not block, since release freed everything.
	done := make(chan struct{})
	go func() {
		lt.acquire([]uint64{1, 2, 3})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire blocked after release")
	}
	lt.release([]uint64{1, 2, 3})
}

func TestLockTableSerializesOverlappingSets(t *testing.T) {
	lt := newLockTable()
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(2)
	start := make(chan struct{})
	go func() {
		defer wg.Done()
		<-start
		lt.acquire([]uint64{5})
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		lt.release([]uint64{5})
	}()
	go func() {
		defer wg.Done()
		<-start
		time.Sleep(2 * time.Millisecond)
		lt.acquire([]uint64{5})
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		lt.release([]uint64{5})
	}()
	close(start)
	wg.Wait()
	assert.Equal(t, []int{1, 2}, order)
}
