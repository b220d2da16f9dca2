package schedule

import (
	"sort"
	"time"

	"github.com/orbeon/orbeon-forms-sub002/internal/host"
)

// Manual is a scheduler driven by an explicit clock, for tests and replays
type Manual struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	m       *Manual
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.m.remove(t)
	return true
}

// NewManual creates a scheduler at time zero
func NewManual() *Manual {
	return &Manual{}
}

// AfterFunc registers fn to run when the clock reaches now+d
func (m *Manual) AfterFunc(d time.Duration, fn func()) host.Timer {
	m.seq++
	t := &manualTimer{m: m, at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock and runs the timers that became due, earliest
// first. It returns how many ran.
func (m *Manual) Advance(d time.Duration) int {
	target := m.now + d
	fired := 0
	for {
		due := m.next(target)
		if due == nil {
			break
		}
		m.remove(due)
		due.stopped = true
		m.now = due.at
		due.fn()
		fired++
	}
	m.now = target
	return fired
}

// Pending returns the number of timers not yet fired
func (m *Manual) Pending() int {
	return len(m.timers)
}

// Now returns the elapsed time on the clock
func (m *Manual) Now() time.Duration {
	return m.now
}

func (m *Manual) next(limit time.Duration) *manualTimer {
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at != m.timers[j].at {
			return m.timers[i].at < m.timers[j].at
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if len(m.timers) == 0 || m.timers[0].at > limit {
		return nil
	}
	return m.timers[0]
}

func (m *Manual) remove(t *manualTimer) {
	for i, candidate := range m.timers {
		if candidate == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}
