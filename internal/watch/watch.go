// Package watch turns fsnotify notifications for a project tree into
// events.FileEvent values.
package watch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codeindex/internal/events"
	"codeindex/internal/walker"
)

// DefaultRenameWindow is how long a Rename waits for the Create carrying the
// new name before it is reported as a delete.
const DefaultRenameWindow = 100 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Excluder *walker.Excluder
	// PrivateDir is a directory name under the root that is never watched.
	PrivateDir   string
	RenameWindow time.Duration
}

// Watcher watches a directory tree recursively. New directories are added as
// they appear; hidden, excluded and private directories are never watched.
type Watcher struct {
	fsw    *fsnotify.Watcher
	root   string
	opts   Options
	logger *slog.Logger

	out       chan events.FileEvent
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts watching root.
func New(root string, opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RenameWindow <= 0 {
		opts.RenameWindow = DefaultRenameWindow
	}
	if opts.Excluder == nil {
		opts.Excluder = walker.NewExcluder(walker.DefaultExcludes)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fsw:    fsw,
		root:   abs,
		opts:   opts,
		logger: logger,
		out:    make(chan events.FileEvent, 64),
		done:   make(chan struct{}),
	}
	if err := w.addTree(abs, nil); err != nil {
		fsw.Close()
		return nil, err
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Events returns the change stream. It is closed after Close.
func (w *Watcher) Events() <-chan events.FileEvent { return w.out }

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) skipDir(path string) bool {
	if path == w.root {
		return false
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || (w.opts.PrivateDir != "" && name == w.opts.PrivateDir) {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	return w.opts.Excluder.Excluded(filepath.ToSlash(rel))
}

// addTree watches dir and every eligible directory below it. When files is
// non-nil the regular files found are appended to it.
func (w *Watcher) addTree(dir string, files *[]string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			if files != nil && d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
				*files = append(*files, path)
			}
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watch directory", "path", path, "err", err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	defer close(w.out)

	var (
		pendingOld string
		renameC    <-chan time.Time
		timer      *time.Timer
	)
	flushRename := func() bool {
		if pendingOld == "" {
			return true
		}
		old := pendingOld
		pendingOld = ""
		renameC = nil
		return w.emit(events.FileEvent{Op: events.FileDeleted, Path: old})
	}

	for {
		select {
		case <-w.done:
			return
		case <-renameC:
			if !flushRename() {
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "err", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) && pendingOld != "" {
				old := pendingOld
				pendingOld = ""
				renameC = nil
				if timer != nil {
					timer.Stop()
				}
				if !w.created(ev.Name, old) {
					return
				}
				continue
			}
			if !flushRename() {
				return
			}
			switch {
			case ev.Has(fsnotify.Rename):
				pendingOld = ev.Name
				timer = time.NewTimer(w.opts.RenameWindow)
				renameC = timer.C
			case ev.Has(fsnotify.Create):
				if !w.created(ev.Name, "") {
					return
				}
			case ev.Has(fsnotify.Write):
				if !w.emit(events.FileEvent{Op: events.FileModified, Path: ev.Name}) {
					return
				}
			case ev.Has(fsnotify.Remove):
				if !w.emit(events.FileEvent{Op: events.FileDeleted, Path: ev.Name}) {
					return
				}
			}
		}
	}
}

// created reports a new path. A new directory is watched and each file in it
// is reported, since files moved in with it produce no events of their own.
func (w *Watcher) created(path, oldPath string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && oldPath != "" {
			return w.emit(events.FileEvent{Op: events.FileDeleted, Path: oldPath})
		}
		return true
	}
	if !info.IsDir() {
		if oldPath != "" {
			return w.emit(events.FileEvent{Op: events.FileRenamed, Path: path, OldPath: oldPath})
		}
		return w.emit(events.FileEvent{Op: events.FileCreated, Path: path})
	}
	if oldPath != "" && !w.emit(events.FileEvent{Op: events.FileDeleted, Path: oldPath}) {
		return false
	}
	if w.skipDir(path) {
		return true
	}
	var files []string
	if err := w.addTree(path, &files); err != nil {
		w.logger.Warn("watch new directory", "path", path, "err", err)
	}
	for _, f := range files {
		if !w.emit(events.FileEvent{Op: events.FileCreated, Path: f}) {
			return false
		}
	}
	return true
}

func (w *Watcher) emit(ev events.FileEvent) bool {
	select {
	case w.out <- ev:
		return true
	case <-w.done:
		return false
	}
}
