package core

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Checkpointer periodically flushes every dirty page in a BufferPool to
// disk on a CRON schedule, so a crash loses at most the interval between
// checkpoints. Grounded on the teacher's job scheduler: a cron.Cron plus
// a mutex-guarded "is one running" guard, trimmed to the one job this
// engine actually needs.
type Checkpointer struct {
	pool *BufferPool
	cron *cron.Cron

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// NewCheckpointer builds a Checkpointer that flushes pool on the schedule
// later passed to Start. Schedules use the 6-field cron form with a
// leading seconds field, e.g. "0 */5 * * * *" for every five minutes.
func NewCheckpointer(pool *BufferPool) *Checkpointer {
	loc, _ := time.LoadLocation("UTC")
	return &Checkpointer{
		pool: pool,
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
	}
}

// Start registers the checkpoint job under cronExpr and begins running it.
func (c *Checkpointer) Start(cronExpr string) error {
	_, err := c.cron.AddFunc(cronExpr, c.runOnce)
	if err != nil {
		return fmt.Errorf("checkpointer: invalid schedule %q: %w", cronExpr, err)
	}
	c.cron.Start()
	return nil
}

// Stop halts the schedule and waits for any in-flight checkpoint to finish.
func (c *Checkpointer) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// runOnce flushes the pool once, skipping the run if a previous one is
// still in flight (checkpoints never overlap).
func (c *Checkpointer) runOnce() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		log.Printf("checkpoint skipped: previous checkpoint still running")
		return
	}
	c.running = true
	c.mu.Unlock()

	start := time.Now()
	err := c.pool.FlushAllPages()

	c.mu.Lock()
	c.running = false
	c.lastRun = start
	c.lastErr = err
	c.mu.Unlock()

	if err != nil {
		log.Printf("checkpoint failed after %s: %v", time.Since(start), err)
		return
	}
	log.Printf("checkpoint completed in %s", time.Since(start))
}

// LastResult reports when the most recent checkpoint ran and whether it
// succeeded.
func (c *Checkpointer) LastResult() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun, c.lastErr
}
