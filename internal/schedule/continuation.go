package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/orbeon/orbeon-forms-sub002/internal/host"
)

// Phase is the lifecycle position of a deferred continuation
type Phase string

const (
	PhasePending   Phase = "pending"   // created, no timer yet
	PhaseScheduled Phase = "scheduled" // timer armed
	PhaseDone      Phase = "done"      // body ran
	PhaseCancelled Phase = "cancelled"
)

// Continuation is the remainder of a batch whose processing was postponed.
// The body runs at most once; Cancel may be called from any goroutine.
type Continuation struct {
	Label string
	body  func()

	mu    sync.Mutex
	phase Phase
	timer host.Timer
}

// NewContinuation wraps the postponed work in phase Pending
func NewContinuation(label string, body func()) *Continuation {
	return &Continuation{Label: label, phase: PhasePending, body: body}
}

// Phase returns the current phase
func (c *Continuation) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Schedule arms the timer; the body runs on firing
func (c *Continuation) Schedule(s host.Scheduler, delay time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhasePending {
		return fmt.Errorf("continuation %s: cannot schedule in phase %s", c.Label, c.phase)
	}
	c.phase = PhaseScheduled
	c.timer = s.AfterFunc(delay, c.fire)
	return nil
}

// Cancel stops a scheduled continuation before it runs
func (c *Continuation) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseScheduled && c.phase != PhasePending {
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.phase = PhaseCancelled
	return true
}

// Flush runs a scheduled continuation now instead of waiting for its timer.
// It returns false if the continuation was not scheduled.
func (c *Continuation) Flush() bool {
	c.mu.Lock()
	if c.phase != PhaseScheduled {
		c.mu.Unlock()
		return false
	}
	c.timer.Stop()
	c.phase = PhaseDone
	c.mu.Unlock()

	c.body()
	return true
}

func (c *Continuation) fire() {
	c.mu.Lock()
	if c.phase != PhaseScheduled {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseDone
	c.mu.Unlock()

	c.body()
}
