// Package watch adapts OS file-watch notifications into the tracker's
// change-feed interface.
//
// The tracker itself never touches a platform notification API; this
// package is the edge adapter that turns fsnotify events into
// OnFileSystemEvent calls.
package watch

import (
	"context"
	"fmt"
	"log"

	"github.com/fsnotify/fsnotify"
)

// Sink receives change-feed notifications. *ingest.Tracker satisfies it.
type Sink interface {
	OnFileSystemEvent(path string) (bool, error)
}

// Watcher forwards file creation and write events under the watched
// directories to a Sink.
type Watcher struct {
	fw   *fsnotify.Watcher
	sink Sink

	// Logf receives diagnostics. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// New creates a watcher feeding the given sink.
func New(sink Sink) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{fw: fw, sink: sink, Logf: log.Printf}, nil
}

// Add registers a directory for watching. fsnotify does not recurse, so
// callers add each type folder individually.
func (w *Watcher) Add(dir string) error {
	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}

// Run forwards events until the context is cancelled or the underlying
// watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, err := w.sink.OnFileSystemEvent(ev.Name); err != nil {
				w.Logf("watch: forward %s: %v", ev.Name, err)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.Logf("watch: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
