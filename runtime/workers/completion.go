package workers

import (
	"context"
	"getfile-lab/domain"
	"sync"
)

// Completion counts finished download tasks for the boss. It has its own
// lock so waiting on it never contends with the queue.
type Completion struct {
	mu        sync.Mutex
	cond      *sync.Cond
	count     int
	completed int
	failed    int
	bytes     int64
}

func NewCompletion() *Completion {
	c := &Completion{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Done records the outcome of one task and wakes waiters.
func (c *Completion) Done(t domain.Transfer) {
	c.mu.Lock()
	c.count++
	if t.Status == domain.StatusCompleted {
		c.completed++
	} else {
		c.failed++
	}
	c.bytes += t.Received
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *Completion) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Totals returns the completed and failed task counts and the body bytes
// received so far.
func (c *Completion) Totals() (completed, failed int, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed, c.failed, c.bytes
}

// Wait blocks until total tasks are done or ctx is cancelled.
func (c *Completion) Wait(ctx context.Context, total int) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.count < total {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.cond.Wait()
	}
	return nil
}
