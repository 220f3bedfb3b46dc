package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// renamePairWindow is how long a Rename event waits for its matching
// Create before being treated as a plain removal.
const renamePairWindow = 2 * time.Second

// Watcher turns filesystem events into rename triggers for the scheduler
// and keeps the index fresh as notes are written, created and deleted.
// A note rename arrives from fsnotify as a Rename on the old path followed
// by a Create on the new one; the watcher pairs the two and forwards the
// old basename so stale name fragments can be stripped.
type Watcher struct {
	vaultPath string
	sched     *Scheduler
	fs        *fsnotify.Watcher

	done chan struct{}
	wg   sync.WaitGroup

	mu         sync.Mutex
	running    bool
	pendingOld string
	pendingAt  time.Time

	logf func(format string, args ...any)
}

// NewWatcher creates a Watcher for a vault. Start must be called before
// any events are processed.
func NewWatcher(vaultPath string, sched *Scheduler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		vaultPath: vaultPath,
		sched:     sched,
		fs:        fsw,
		done:      make(chan struct{}),
		logf:      log.Printf,
	}, nil
}

// SetLogger redirects diagnostic output.
func (w *Watcher) SetLogger(logf func(format string, args ...any)) {
	w.logf = logf
}

// Start begins watching every directory under the vault (hidden
// directories excluded) and processing events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.addDirTree(w.vaultPath); err != nil {
		return err
	}
	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops event processing and releases the underlying watcher. It
// blocks until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) addDirTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logf("vattach: watch: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.vaultPath, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || isHidden(rel) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirTree(event.Name); err != nil {
				w.logf("vattach: watch %s: %v", rel, err)
			}
			return
		}
		// Only a markdown Create can claim a pending note rename; an
		// unrelated file appearing inside the window must leave the
		// pending entry (and its decay timer) untouched.
		if isMarkdown(rel) {
			if old, ok := w.takePendingNoteRename(); ok {
				w.refresh(old, rel)
				w.sched.NoteRenamed(rel, baseName(old))
				return
			}
		}
		w.refresh(rel)

	case event.Has(fsnotify.Write):
		w.refresh(rel)

	case event.Has(fsnotify.Rename):
		w.setPendingRename(rel)
		// Drop the old node if no Create claims the rename in time.
		time.AfterFunc(renamePairWindow, func() {
			w.mu.Lock()
			stale := w.pendingOld == rel
			if stale {
				w.pendingOld = ""
			}
			w.mu.Unlock()
			if stale {
				w.refresh(rel)
			}
		})

	case event.Has(fsnotify.Remove):
		w.refresh(rel)
	}
}

func (w *Watcher) setPendingRename(rel string) {
	w.mu.Lock()
	w.pendingOld = rel
	w.pendingAt = time.Now()
	w.mu.Unlock()
}

// takePendingNoteRename consumes the pending rename only when it is a
// fresh note rename; anything else stays pending for the decay timer.
func (w *Watcher) takePendingNoteRename() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pendingOld == "" || !isMarkdown(w.pendingOld) || time.Since(w.pendingAt) > renamePairWindow {
		return "", false
	}
	old := w.pendingOld
	w.pendingOld = ""
	return old, true
}

func (w *Watcher) refresh(files ...string) {
	if err := Refresh(w.vaultPath, files); err != nil {
		w.logf("vattach: refresh %v: %v", files, err)
	}
}
