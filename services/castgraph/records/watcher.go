// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package records

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileOp is the kind of change seen on the dataset file.
type FileOp int

const (
	// FileOpCreate indicates the file appeared (including rename-into-place).
	FileOpCreate FileOp = iota

	// FileOpWrite indicates the file contents changed.
	FileOpWrite

	// FileOpRemove indicates the file was deleted.
	FileOpRemove

	// FileOpRename indicates the file was renamed away.
	FileOpRename
)

// String returns the string representation of the operation.
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "create"
	case FileOpWrite:
		return "write"
	case FileOpRemove:
		return "remove"
	case FileOpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileChange is one observed change to the dataset file.
type FileChange struct {
	Path string
	Op   FileOp
	Time time.Time
}

// FileChangeHandler receives the last change of a debounced burst.
type FileChangeHandler func(ctx context.Context, change FileChange)

// WatcherOptions configures the FileWatcher.
type WatcherOptions struct {
	// DebounceWindow is how long the file must stay quiet before the handler
	// runs. Default: 250ms
	DebounceWindow time.Duration

	// BufferSize is the size of the change channel. Default: 64
	BufferSize int

	// Logger receives watcher errors. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 250 * time.Millisecond,
		BufferSize:     64,
	}
}

// FileWatcher watches a single dataset file and reports debounced changes.
//
// # Description
//
// The parent directory is watched rather than the file itself so that
// editors and tools which replace the file by rename keep being observed.
// Events for other files in the directory are ignored. A burst of events is
// collapsed into one handler call carrying the most recent change.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  FileChangeHandler
	debounce time.Duration
	logger   *slog.Logger

	changes  chan FileChange
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewFileWatcher creates a watcher for the dataset file at path.
//
// # Inputs
//
//   - path: The dataset file. Its directory must exist.
//   - handler: Called after each debounced burst of changes.
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//
//   - *FileWatcher: Ready-to-use watcher (call Start to begin watching).
//   - error: Non-nil if the underlying watcher could not be created.
func NewFileWatcher(path string, handler FileChangeHandler, opts *WatcherOptions) (*FileWatcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultWatcherOptions().DebounceWindow
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultWatcherOptions().BufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		path:     abs,
		watcher:  watcher,
		handler:  handler,
		debounce: opts.DebounceWindow,
		logger:   logger.With("component", "dataset_watcher", "path", abs),
		changes:  make(chan FileChange, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Both worker goroutines exit on Stop or when ctx
// is cancelled.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *FileWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

func (w *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			change := FileChange{Path: w.path, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				// The debouncer only needs the latest change; a full buffer
				// already guarantees a pending flush.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func convertOp(op fsnotify.Op) FileOp {
	switch {
	case op.Has(fsnotify.Create):
		return FileOpCreate
	case op.Has(fsnotify.Write):
		return FileOpWrite
	case op.Has(fsnotify.Remove):
		return FileOpRemove
	case op.Has(fsnotify.Rename):
		return FileOpRename
	default:
		return FileOpWrite
	}
}

// debounceLoop waits for a quiet window then hands the latest change to the
// handler.
func (w *FileWatcher) debounceLoop(ctx context.Context) {
	var (
		pending *FileChange
		timer   *time.Timer
		timerC  <-chan time.Time
	)

	flush := func() {
		if pending != nil && w.handler != nil {
			w.handler(ctx, *pending)
		}
		pending = nil
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case change := <-w.changes:
			c := change
			pending = &c
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}
