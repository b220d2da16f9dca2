package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector counts what the engine does, with no external dependencies
type Collector struct {
	engine         EngineMetrics
	recordCounters map[string]*int64
	mu             sync.RWMutex
	startTime      time.Time
}

// EngineMetrics is a snapshot of the engine counters
type EngineMetrics struct {
	// Sessions
	SessionsOpened        int64 `json:"sessions_opened"`
	SessionsClosed        int64 `json:"sessions_closed"`
	ActiveSessions        int64 `json:"active_sessions"`
	MaxConcurrentSessions int64 `json:"max_concurrent_sessions"`

	// Batches
	BatchesApplied int64 `json:"batches_applied"`
	ParseFailures  int64 `json:"parse_failures"`
	Deferrals      int64 `json:"deferrals"`

	// Records and actions
	RecordsApplied int64 `json:"records_applied"`
	RecordErrors   int64 `json:"record_errors"`
	ActionsRun     int64 `json:"actions_run"`
	ActionErrors   int64 `json:"action_errors"`
	Panics         int64 `json:"panics"`

	// Reconciliation
	ValuesWritten     int64 `json:"values_written"`
	ValuesKept        int64 `json:"values_kept"` // writes skipped to keep a local edit
	ItemsetsRebuilt   int64 `json:"itemsets_rebuilt"`
	IterationsDeleted int64 `json:"iterations_deleted"`
	SubtreesReplaced  int64 `json:"subtrees_replaced"`
	TypeMigrations    int64 `json:"type_migrations"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	now := time.Now()
	return &Collector{
		engine:         EngineMetrics{StartTime: now},
		recordCounters: make(map[string]*int64),
		startTime:      now,
	}
}

// SessionOpened records a new session
func (c *Collector) SessionOpened() {
	atomic.AddInt64(&c.engine.SessionsOpened, 1)
	active := atomic.AddInt64(&c.engine.ActiveSessions, 1)

	for {
		max := atomic.LoadInt64(&c.engine.MaxConcurrentSessions)
		if active <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.engine.MaxConcurrentSessions, max, active) {
			break
		}
	}
}

// SessionClosed records the end of a session
func (c *Collector) SessionClosed() {
	atomic.AddInt64(&c.engine.SessionsClosed, 1)
	atomic.AddInt64(&c.engine.ActiveSessions, -1)
}

func (c *Collector) BatchApplied()    { atomic.AddInt64(&c.engine.BatchesApplied, 1) }
func (c *Collector) ParseFailure()    { atomic.AddInt64(&c.engine.ParseFailures, 1) }
func (c *Collector) Deferral()        { atomic.AddInt64(&c.engine.Deferrals, 1) }
func (c *Collector) RecordError()     { atomic.AddInt64(&c.engine.RecordErrors, 1) }
func (c *Collector) ActionRun()       { atomic.AddInt64(&c.engine.ActionsRun, 1) }
func (c *Collector) ActionError()     { atomic.AddInt64(&c.engine.ActionErrors, 1) }
func (c *Collector) Panic()           { atomic.AddInt64(&c.engine.Panics, 1) }
func (c *Collector) ValueWritten()    { atomic.AddInt64(&c.engine.ValuesWritten, 1) }
func (c *Collector) ValueKept()       { atomic.AddInt64(&c.engine.ValuesKept, 1) }
func (c *Collector) ItemsetRebuilt()  { atomic.AddInt64(&c.engine.ItemsetsRebuilt, 1) }
func (c *Collector) SubtreeReplaced() { atomic.AddInt64(&c.engine.SubtreesReplaced, 1) }
func (c *Collector) TypeMigrated()    { atomic.AddInt64(&c.engine.TypeMigrations, 1) }

// IterationsDeleted adds to the number of repeat iterations removed
func (c *Collector) IterationsDeleted(n int) {
	atomic.AddInt64(&c.engine.IterationsDeleted, int64(n))
}

// RecordApplied counts one applied record, by record kind
func (c *Collector) RecordApplied(kind string) {
	atomic.AddInt64(&c.engine.RecordsApplied, 1)

	c.mu.RLock()
	counter, exists := c.recordCounters[kind]
	c.mu.RUnlock()
	if exists {
		atomic.AddInt64(counter, 1)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if counter, exists := c.recordCounters[kind]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.recordCounters[kind] = &newCounter
	}
}

// GetMetrics returns the current counters
func (c *Collector) GetMetrics() EngineMetrics {
	c.mu.RLock()
	start := c.startTime
	c.mu.RUnlock()

	return EngineMetrics{
		SessionsOpened:        atomic.LoadInt64(&c.engine.SessionsOpened),
		SessionsClosed:        atomic.LoadInt64(&c.engine.SessionsClosed),
		ActiveSessions:        atomic.LoadInt64(&c.engine.ActiveSessions),
		MaxConcurrentSessions: atomic.LoadInt64(&c.engine.MaxConcurrentSessions),
		BatchesApplied:        atomic.LoadInt64(&c.engine.BatchesApplied),
		ParseFailures:         atomic.LoadInt64(&c.engine.ParseFailures),
		Deferrals:             atomic.LoadInt64(&c.engine.Deferrals),
		RecordsApplied:        atomic.LoadInt64(&c.engine.RecordsApplied),
		RecordErrors:          atomic.LoadInt64(&c.engine.RecordErrors),
		ActionsRun:            atomic.LoadInt64(&c.engine.ActionsRun),
		ActionErrors:          atomic.LoadInt64(&c.engine.ActionErrors),
		Panics:                atomic.LoadInt64(&c.engine.Panics),
		ValuesWritten:         atomic.LoadInt64(&c.engine.ValuesWritten),
		ValuesKept:            atomic.LoadInt64(&c.engine.ValuesKept),
		ItemsetsRebuilt:       atomic.LoadInt64(&c.engine.ItemsetsRebuilt),
		IterationsDeleted:     atomic.LoadInt64(&c.engine.IterationsDeleted),
		SubtreesReplaced:      atomic.LoadInt64(&c.engine.SubtreesReplaced),
		TypeMigrations:        atomic.LoadInt64(&c.engine.TypeMigrations),
		StartTime:             start,
		Uptime:                time.Since(start),
	}
}

// GetRecordCounters returns the applied records by kind
func (c *Collector) GetRecordCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.recordCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, counter := range []*int64{
		&c.engine.SessionsOpened, &c.engine.SessionsClosed, &c.engine.ActiveSessions,
		&c.engine.MaxConcurrentSessions, &c.engine.BatchesApplied, &c.engine.ParseFailures,
		&c.engine.Deferrals, &c.engine.RecordsApplied, &c.engine.RecordErrors,
		&c.engine.ActionsRun, &c.engine.ActionErrors, &c.engine.Panics,
		&c.engine.ValuesWritten, &c.engine.ValuesKept, &c.engine.ItemsetsRebuilt,
		&c.engine.IterationsDeleted, &c.engine.SubtreesReplaced, &c.engine.TypeMigrations,
	} {
		atomic.StoreInt64(counter, 0)
	}
	c.recordCounters = make(map[string]*int64)
	c.startTime = time.Now()
}

// GetErrorRate returns the share of records that failed, in percent
func (c *Collector) GetErrorRate() float64 {
	applied := atomic.LoadInt64(&c.engine.RecordsApplied)
	failed := atomic.LoadInt64(&c.engine.RecordErrors)

	if applied+failed == 0 {
		return 0.0
	}
	return float64(failed) / float64(applied+failed) * 100.0
}

// GetKeptValueRate returns the share of value writes skipped to keep a local edit, in percent
func (c *Collector) GetKeptValueRate() float64 {
	written := atomic.LoadInt64(&c.engine.ValuesWritten)
	kept := atomic.LoadInt64(&c.engine.ValuesKept)

	if written+kept == 0 {
		return 0.0
	}
	return float64(kept) / float64(written+kept) * 100.0
}
