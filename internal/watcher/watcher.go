// Package watcher reports changes to a device definition file.
//
// The parent directory is watched rather than the file itself so that
// editors replacing the file by rename keep being observed. Bursts of
// events are debounced into one Change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when none is given.
const DefaultDebounce = 500 * time.Millisecond

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("watcher: stopped")

// Change describes a settled change of the watched file.
type Change struct {
	File    string
	Removed bool
}

// Watcher monitors one file with fsnotify.
type Watcher struct {
	File    string
	Changes <-chan Change

	changes  chan Change
	done     chan struct{}
	debounce time.Duration
	watcher  *fsnotify.Watcher
	started  bool
	stopped  bool
}

// New creates a watcher for file. A non-positive debounce selects
// DefaultDebounce.
func New(file string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", file, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// One slot: a queued change already covers later ones.
	ch := make(chan Change, 1)
	return &Watcher{
		File:     abs,
		Changes:  ch,
		changes:  ch,
		done:     make(chan struct{}),
		debounce: debounce,
		watcher:  fw,
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if w.stopped {
		return ErrStopped
	}
	if err := w.watcher.Add(filepath.Dir(w.File)); err != nil {
		return fmt.Errorf("watching %s: %w", w.File, err)
	}
	w.started = true
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel. It waits for the
// event loop to exit.
func (w *Watcher) Stop() {
	if w.stopped {
		return
	}
	w.stopped = true
	w.watcher.Close()
	if w.started {
		<-w.done
	}
	close(w.changes)
}

// Run starts the watcher and calls onChange for every settled change
// until ctx is done.
func (w *Watcher) Run(ctx context.Context, onChange func(Change)) error {
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-w.Changes:
			onChange(c)
		}
	}
}

func (w *Watcher) loop() {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.File {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending = true
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			if pending {
				pending = false
				w.emit()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.
		}
	}
}

func (w *Watcher) emit() {
	_, err := os.Stat(w.File)
	c := Change{File: w.File, Removed: errors.Is(err, os.ErrNotExist)}
	select {
	case w.changes <- c:
	default:
	}
}
