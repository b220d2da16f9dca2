package xforms

import (
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/metrics"
	"github.com/orbeon/orbeon-forms-sub002/internal/session"
)

// Form is an open form with the engine reconciling it
type Form struct {
	SessionID string
	FormID    string
	Engine    *Engine
}

// Forms keeps the engines of the forms currently open. A form idle for
// longer than the configured session TTL is dropped.
//
// Thread-safe: safe for concurrent access from multiple goroutines. Each
// engine must still only be used from its own event loop.
type Forms struct {
	cfg      *Config
	host     Host
	options  []Option
	sessions *session.Manager
	metrics  *metrics.Collector

	forms map[string]*Form // sessionID → form
	mu    sync.RWMutex
}

// NewForms creates an empty form store. Engines it opens share one metrics
// collector and the given host and options.
func NewForms(cfg *Config, h Host, options ...Option) (*Forms, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	f := &Forms{
		cfg:      cfg,
		host:     h,
		options:  options,
		sessions: session.NewManager(cfg.SessionTTL),
		metrics:  metrics.NewCollector(),
		forms:    make(map[string]*Form),
	}
	f.sessions.OnExpire(func(s *session.Session) {
		f.drop(s.ID)
	})
	return f, nil
}

// Open starts reconciling a rendered form in a new session
func (f *Forms) Open(formID string, doc *html.Node) (*Form, error) {
	s, err := f.sessions.CreateSession(formID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for form %s: %w", formID, err)
	}

	options := append([]Option{WithMetrics(f.metrics)}, f.options...)
	options = append(options, WithState(s.State))
	engine, err := New(doc, f.cfg, f.host, options...)
	if err != nil {
		f.sessions.DeleteSession(s.ID)
		return nil, err
	}

	form := &Form{SessionID: s.ID, FormID: formID, Engine: engine}
	f.mu.Lock()
	f.forms[s.ID] = form
	f.mu.Unlock()
	f.metrics.SessionOpened()
	return form, nil
}

// Get returns the form of a session and marks it as used
func (f *Forms) Get(sessionID string) (*Form, bool) {
	if _, ok := f.sessions.GetSession(sessionID); !ok {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	form, ok := f.forms[sessionID]
	return form, ok
}

// Close forgets a form. Deferred groups still pending are cancelled.
func (f *Forms) Close(sessionID string) {
	f.sessions.DeleteSession(sessionID)
	f.drop(sessionID)
}

// CleanupExpired drops the forms idle for longer than the session TTL and
// returns how many were dropped
func (f *Forms) CleanupExpired() int {
	return f.sessions.CleanupExpiredSessions()
}

// Count returns the number of open forms
func (f *Forms) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.forms)
}

// Metrics returns the counters shared by every engine of the store
func (f *Forms) Metrics() *metrics.Collector {
	return f.metrics
}

func (f *Forms) drop(sessionID string) {
	f.mu.Lock()
	form, ok := f.forms[sessionID]
	delete(f.forms, sessionID)
	f.mu.Unlock()

	if !ok {
		return
	}
	form.Engine.CancelPending()
	f.metrics.SessionClosed()
}
