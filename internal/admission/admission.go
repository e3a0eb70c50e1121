// Package admission bounds the number of concurrently running heavy jobs
// to the configured accelerator capacity. Excess acquirers wait in FIFO
// submission order, so no queued job is ever starved.
package admission

import (
	"container/list"
	"context"
	"sync"
)

// Controller is a counting slot gate. Acquire blocks until a slot frees or
// the context is cancelled; Release returns a slot and hands it to the
// oldest waiter. Callers must pair every successful Acquire with exactly
// one Release, typically via defer, so capacity never leaks even on
// unexpected errors.
type Controller struct {
	mu       sync.Mutex
	capacity int
	occupied int
	waiters  *list.List // of chan struct{}
}

// NewController creates a gate admitting up to capacity jobs at once.
// capacity below 1 is treated as 1.
func NewController(capacity int) *Controller {
	if capacity < 1 {
		capacity = 1
	}
	return &Controller{capacity: capacity, waiters: list.New()}
}

// Capacity returns the configured slot count.
func (c *Controller) Capacity() int { return c.capacity }

// Occupancy returns the number of slots currently held.
func (c *Controller) Occupancy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occupied
}

// Waiting returns the number of acquirers queued for a slot.
func (c *Controller) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters.Len()
}

// Acquire claims a slot, blocking in FIFO order behind earlier acquirers.
// Returns ctx.Err() without holding a slot if the context ends first.
func (c *Controller) Acquire(ctx context.Context) error {
	c.mu.Lock()
	if c.occupied < c.capacity && c.waiters.Len() == 0 {
		c.occupied++
		c.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := c.waiters.PushBack(ready)
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		select {
		case <-ready:
			// Slot was granted while we were giving up; pass it on.
			c.occupied--
			c.grantLocked()
		default:
			c.waiters.Remove(elem)
		}
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Release frees a held slot and admits the oldest waiter, if any.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.occupied == 0 {
		return
	}
	c.occupied--
	c.grantLocked()
}

// grantLocked hands a free slot to the head of the wait list. Caller holds mu.
func (c *Controller) grantLocked() {
	if c.occupied >= c.capacity {
		return
	}
	front := c.waiters.Front()
	if front == nil {
		return
	}
	c.waiters.Remove(front)
	c.occupied++
	close(front.Value.(chan struct{}))
}
