package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls onChange when the content of a watched file
// changes. Editors often replace files by rename, so the parent
// directory is watched and events are filtered by path. Events
// within one debounce period collapse into a single callback, and
// a save that leaves the bytes unchanged is ignored.
type Watcher struct {
	onChange func(paths []string)
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	sums    map[string]string // content digest, "" when absent
	dirty   map[string]struct{}
	timer   *time.Timer
	started bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher that calls onChange with the
// changed paths once debounce has passed without further events.
func NewWatcher(
	debounce time.Duration, onChange func(paths []string),
) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is nil: %w", os.ErrInvalid)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		onChange: onChange,
		fsw:      fsw,
		debounce: debounce,
		sums:     make(map[string]string),
		dirty:    make(map[string]struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// WatchFile adds path to the watch list and records its current
// content. The file need not exist yet, but its directory must.
func (w *Watcher) WatchFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := w.fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	w.mu.Lock()
	w.sums[abs] = digest(abs)
	w.mu.Unlock()
	return nil
}

// Start begins processing file events in a goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.loop()
}

// Stop stops the watcher and waits for its event loop to exit.
// A pending callback that has not fired yet is dropped.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.mu.Lock()
		started := w.started
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		if started {
			<-w.done
		}
		w.fsw.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

// handleEvent marks a watched file dirty and restarts the
// debounce timer. Chmod-only events are ignored.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|
		fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.sums[path]; !ok {
		return
	}
	w.dirty[path] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

// flush re-reads every dirty file and reports those whose
// content differs from the last recorded digest.
func (w *Watcher) flush() {
	w.mu.Lock()
	var changed []string
	for path := range w.dirty {
		sum := digest(path)
		if sum != w.sums[path] {
			w.sums[path] = sum
			changed = append(changed, path)
		}
	}
	clear(w.dirty)
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	log.Printf("watcher: %d file(s) changed", len(changed))
	w.onChange(changed)
}

// digest returns the hex SHA-256 of the file at path, or "" if it
// cannot be read.
func digest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
