package core

import (
	"log"
	"sync"
	"time"
)

// Scheduler coalesces rapid rename triggers per note into a single
// deferred reconciliation pass. The first trigger in a burst schedules
// execution at now+delay; triggers arriving before it fires are dropped,
// so a noisy rename storm yields exactly one pass per quiet period.
type Scheduler struct {
	engine *Engine
	cfg    *Config

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool

	logf func(format string, args ...any)
}

// NewScheduler creates a Scheduler driving the given engine.
func NewScheduler(engine *Engine, cfg *Config) *Scheduler {
	return &Scheduler{
		engine:  engine,
		cfg:     cfg,
		pending: make(map[string]*time.Timer),
		logf:    log.Printf,
	}
}

// SetLogger redirects diagnostic output.
func (s *Scheduler) SetLogger(logf func(format string, args ...any)) {
	s.logf = logf
}

// NoteRenamed handles a rename trigger for a note. Triggers are ignored
// when auto-rename is disabled or the note is out of scope. oldName is
// the note's previous basename without extension.
func (s *Scheduler) NoteRenamed(notePath, oldName string) {
	if !*s.cfg.AutoRename || !InScope(s.cfg, notePath) {
		return
	}
	notePath = NormalizePath(notePath)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.pending[notePath]; ok {
		return // already scheduled; do not push the timer back
	}
	delay := time.Duration(*s.cfg.DebounceDelayMs) * time.Millisecond
	s.pending[notePath] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, notePath)
		s.mu.Unlock()

		if n := s.engine.ProcessNote(notePath, oldName); n > 0 {
			s.logf("vattach: %s: renamed %d attachment(s)", notePath, n)
		}
	})
}

// PendingCount returns the number of notes with a scheduled pass.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every pending timer without invoking it. The scheduler
// accepts no further triggers afterwards.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for path, t := range s.pending {
		t.Stop()
		delete(s.pending, path)
	}
}
