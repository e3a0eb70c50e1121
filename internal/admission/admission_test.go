package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	c := NewController(2)

	if err := c.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() = %v, want nil", err)
	}
	if err := c.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() = %v, want nil", err)
	}
	if got := c.Occupancy(); got != 2 {
		t.Fatalf("Occupancy() = %d, want 2", got)
	}

	c.Release()
	c.Release()
	if got := c.Occupancy(); got != 0 {
		t.Fatalf("Occupancy() after releases = %d, want 0", got)
	}
}

func TestAcquireBlocksAtCapacity(t *testing.T) {
	ctx := context.Background()
	c := NewController(1)

	if err := c.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() = %v, want nil", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := c.Acquire(ctx); err != nil {
			t.Errorf("blocked Acquire() = %v, want nil", err)
			return
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("second Acquire succeeded while at capacity")
	case <-time.After(50 * time.Millisecond):
	}
	if got := c.Waiting(); got != 1 {
		t.Fatalf("Waiting() = %d, want 1", got)
	}

	c.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("waiter was not admitted after Release")
	}
	if got := c.Occupancy(); got != 1 {
		t.Fatalf("Occupancy() = %d, want 1", got)
	}
}

func TestAcquireFIFOOrder(t *testing.T) {
	ctx := context.Background()
	c := NewController(1)

	if err := c.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() = %v, want nil", err)
	}

	const waiters = 5
	var mu sync.Mutex
	var order []int
	var ready sync.WaitGroup
	var done sync.WaitGroup

	for i := 0; i < waiters; i++ {
		i := i
		ready.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			// Stagger registration so the wait list order is deterministic.
			ready.Done()
			if err := c.Acquire(ctx); err != nil {
				t.Errorf("Acquire() = %v, want nil", err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			c.Release()
		}()
		// Give each goroutine time to enqueue before starting the next.
		for c.Waiting() != i+1 {
			time.Sleep(time.Millisecond)
		}
	}
	ready.Wait()

	c.Release()
	done.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("admission order = %v, want FIFO", order)
		}
	}
}

func TestAcquireCancelledWhileWaiting(t *testing.T) {
	c := NewController(1)
	if err := c.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Acquire(ctx) }()

	for c.Waiting() != 1 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Fatalf("Acquire() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled Acquire did not return")
	}
	if got := c.Waiting(); got != 0 {
		t.Fatalf("Waiting() = %d, want 0 after cancellation", got)
	}

	// The held slot is unaffected and can still be released and reused.
	c.Release()
	if err := c.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() after cancel = %v, want nil", err)
	}
}

func TestNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	ctx := context.Background()
	c := NewController(capacity)

	var active, maxActive int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Acquire(ctx); err != nil {
				t.Errorf("Acquire() = %v, want nil", err)
				return
			}
			defer c.Release()
			n := atomic.AddInt64(&active, 1)
			for {
				cur := atomic.LoadInt64(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt64(&maxActive, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&active, -1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&maxActive); got > capacity {
		t.Fatalf("observed %d concurrent holders, capacity %d", got, capacity)
	}
	if got := c.Occupancy(); got != 0 {
		t.Fatalf("Occupancy() = %d, want 0 after all releases", got)
	}
}
