package index

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"codeindex/internal/events"
	"codeindex/internal/store"
	"codeindex/internal/walker"
)

// ErrStopped is returned by Coordinator methods after Stop.
var ErrStopped = errors.New("coordinator stopped")

// Defaults for CoordinatorOptions.
const (
	DefaultDebounce      = 500 * time.Millisecond
	DefaultBulkThreshold = 40
	DefaultBulkWindow    = 2 * time.Second
)

// CoordinatorOptions tunes event handling and project walks.
type CoordinatorOptions struct {
	// Debounce is the quiet interval before a changed file is re-indexed.
	Debounce time.Duration
	// BulkThreshold is how many distinct paths may change within BulkWindow
	// before single-file indexing gives way to one full reindex.
	BulkThreshold int
	// BulkWindow is both the sliding window for counting changes and the
	// delay before the coalesced reindex starts.
	BulkWindow time.Duration
	// ExcludeFile is the per-project exclude file; empty uses defaults only.
	ExcludeFile string
	// PrivateDir is the index directory name under the root.
	PrivateDir  string
	Extensions  map[string]bool
	MaxFileSize int64
}

func (o *CoordinatorOptions) withDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.BulkThreshold <= 0 {
		o.BulkThreshold = DefaultBulkThreshold
	}
	if o.BulkWindow <= 0 {
		o.BulkWindow = DefaultBulkWindow
	}
	if o.Extensions == nil {
		o.Extensions = walker.DefaultExtensions
	}
}

// Coordinator turns file-change notifications and reindex requests into
// indexing work. All of its mutable state is owned by one loop goroutine;
// public methods hand closures to that loop.
type Coordinator struct {
	indexer *Indexer
	store   Store
	sink    events.Sink
	logger  *slog.Logger
	opts    CoordinatorOptions

	// generation is only incremented on the loop; tasks compare against it.
	generation atomic.Uint64
	enabled    atomic.Bool
	excluder   atomic.Pointer[walker.Excluder]

	cmds chan func()
	quit chan struct{}
	done chan struct{}
	stop sync.Once

	base       context.Context
	cancelBase context.CancelFunc
	tasks      sync.WaitGroup

	// Loop-owned.
	cancelReindex context.CancelFunc
	pending       map[string]*time.Timer
	recent        map[string]time.Time
	bulkTimer     *time.Timer
	sources       []events.Source
}

// NewCoordinator creates a coordinator and starts its loop. Indexing is
// enabled from the start.
func NewCoordinator(ix *Indexer, s Store, sink events.Sink, logger *slog.Logger, opts CoordinatorOptions) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sink == nil {
		sink = events.Discard
	}
	opts.withDefaults()
	base, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		indexer:    ix,
		store:      s,
		sink:       sink,
		logger:     logger,
		opts:       opts,
		cmds:       make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		base:       base,
		cancelBase: cancel,
		pending:    make(map[string]*time.Timer),
		recent:     make(map[string]time.Time),
	}
	c.enabled.Store(true)
	c.excluder.Store(walker.NewExcluder(walker.DefaultExcludes))
	c.reloadExcludes()
	go c.loop()
	return c
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.quit:
			return
		}
	}
}

// call runs fn on the loop and waits for it.
func (c *Coordinator) call(fn func()) error {
	ran := make(chan struct{})
	select {
	case c.cmds <- func() { defer close(ran); fn() }:
		<-ran
		return nil
	case <-c.quit:
		return ErrStopped
	}
}

// post queues fn on the loop without waiting. It is used by timers.
func (c *Coordinator) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.quit:
	}
}

func (c *Coordinator) spawn(fn func()) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		fn()
	}()
}

// live returns the check a task runs before every step: its generation must
// still be current and indexing enabled.
func (c *Coordinator) live(ctx context.Context, gen uint64) func() bool {
	return func() bool {
		return ctx.Err() == nil && c.enabled.Load() && c.generation.Load() == gen
	}
}

func (c *Coordinator) reloadExcludes() {
	if c.opts.ExcludeFile == "" {
		return
	}
	patterns, err := walker.LoadExcludes(c.opts.ExcludeFile)
	if err != nil {
		c.logger.Warn("load excludes", "path", c.opts.ExcludeFile, "err", err)
	}
	c.excluder.Store(walker.NewExcluder(patterns))
}

// ReindexProject supersedes any running reindex and starts a full one. The
// returned channel is closed when this reindex finishes, fails or is
// superseded.
func (c *Coordinator) ReindexProject(root string) (<-chan struct{}, error) {
	var finished <-chan struct{}
	err := c.call(func() {
		finished = c.startReindex(root)
	})
	return finished, err
}

func (c *Coordinator) startReindex(root string) <-chan struct{} {
	finished := make(chan struct{})
	gen := c.generation.Add(1)
	if c.cancelReindex != nil {
		c.cancelReindex()
	}
	ctx, cancel := context.WithCancel(c.base)
	c.cancelReindex = cancel
	c.spawn(func() {
		defer close(finished)
		c.runReindex(ctx, gen, root)
	})
	return finished
}

func (c *Coordinator) runReindex(ctx context.Context, gen uint64, root string) {
	live := c.live(ctx, gen)
	if !live() {
		return
	}
	started := time.Now()
	root, err := filepath.Abs(root)
	if err != nil {
		c.logger.Error("resolve root", "root", root, "err", err)
		return
	}
	c.sink.Publish(events.Event{Kind: events.IndexingStarted, CurrentFile: root})

	if n, err := c.store.PruneOutside(ctx, root); err != nil {
		c.logger.Warn("prune outside root", "root", root, "err", err)
	} else if n > 0 {
		c.logger.Info("pruned resources outside root", "root", root, "count", n)
	}
	if err := c.store.SetMeta(ctx, "root_path", root); err != nil {
		c.logger.Warn("record root", "err", err)
	}

	c.reloadExcludes()
	files, err := walker.Walk(ctx, root, walker.Options{
		Excluder:    c.excluder.Load(),
		Extensions:  c.opts.Extensions,
		PrivateDir:  c.opts.PrivateDir,
		MaxFileSize: c.opts.MaxFileSize,
	})
	if err != nil {
		if live() {
			c.logger.Error("walk project", "root", root, "err", err)
		}
		return
	}

	total := len(files)
	processed := 0
	seen := make(map[string]bool, total)
	for _, path := range files {
		if !live() {
			c.logger.Debug("reindex superseded", "generation", gen, "processed", processed)
			return
		}
		seen[path] = true
		c.sink.Publish(events.Event{Kind: events.IndexingProgress, Processed: processed, Total: total, CurrentFile: path})
		_, err := c.indexer.IndexFile(ctx, path, live)
		if errors.Is(err, store.ErrSuperseded) || !live() {
			c.logger.Debug("reindex superseded", "generation", gen, "processed", processed)
			return
		}
		if err != nil {
			c.logger.Warn("index file", "path", path, "err", err)
		}
		processed++
		c.sink.Publish(events.Event{Kind: events.IndexingProgress, Processed: processed, Total: total, CurrentFile: path})
	}

	indexed, err := c.store.IndexedPathsUnder(ctx, root)
	if err != nil {
		c.logger.Warn("list indexed paths", "root", root, "err", err)
	}
	for _, path := range indexed {
		if seen[path] {
			continue
		}
		if !live() {
			return
		}
		if err := c.store.DeleteResourceByPath(ctx, path); err != nil {
			c.logger.Warn("remove vanished file", "path", path, "err", err)
		}
	}
	if !live() {
		return
	}

	elapsed := time.Since(started)
	c.logger.Info("reindex complete", "root", root, "files", processed, "duration", elapsed)
	c.sink.Publish(events.Event{Kind: events.IndexingCompleted, Count: processed, Duration: elapsed})
	c.sink.Publish(events.Event{Kind: events.ProjectReindexCompleted, Count: processed, Duration: elapsed})
}

// HandleEvent feeds one file-system change into the coordinator.
func (c *Coordinator) HandleEvent(ev events.FileEvent) error {
	return c.call(func() { c.handle(ev, time.Now()) })
}

func (c *Coordinator) handle(ev events.FileEvent, now time.Time) {
	if !c.enabled.Load() {
		return
	}
	root := c.indexer.Root()
	path, inRoot := c.withinRoot(root, ev.Path)
	var oldPath string
	var oldInRoot bool
	if ev.Op == events.FileRenamed && ev.OldPath != "" {
		oldPath, oldInRoot = c.withinRoot(root, ev.OldPath)
	}
	if !inRoot && !oldInRoot {
		c.logger.Debug("dropping event outside root", "path", ev.Path)
		return
	}

	if inRoot {
		c.noteChange(path, now)
	}
	if oldInRoot {
		c.noteChange(oldPath, now)
	}
	if c.bulkTimer != nil {
		return
	}

	switch ev.Op {
	case events.FileDeleted:
		c.remove(path)
	case events.FileRenamed:
		if oldInRoot {
			c.remove(oldPath)
		}
		if inRoot {
			c.schedule(path)
		}
	default:
		c.schedule(path)
	}
}

func (c *Coordinator) withinRoot(root, path string) (string, bool) {
	if !filepath.IsAbs(path) {
		return "", false
	}
	path = filepath.Clean(path)
	return path, path != root && store.Within(root, path)
}

// accepts reports whether a single-file index should be attempted for path.
func (c *Coordinator) accepts(path string) bool {
	rel, err := filepath.Rel(c.indexer.Root(), path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") || part == c.opts.PrivateDir {
			return false
		}
	}
	if !c.opts.Extensions[walker.Extension(path)] {
		return false
	}
	return !c.excluder.Load().Excluded(rel)
}

// indexable applies the walker's file checks to one path: symlinks, other
// non-regular files and files over the size limit are rejected. A missing
// file is left to the indexer.
func (c *Coordinator) indexable(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	maxSize := c.opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = walker.DefaultMaxFileSize
	}
	return info.Mode().IsRegular() && info.Size() <= maxSize
}

// noteChange records a raw change and switches to a coalesced full reindex
// once too many distinct paths changed within the bulk window.
func (c *Coordinator) noteChange(path string, now time.Time) {
	c.recent[path] = now
	for p, at := range c.recent {
		if now.Sub(at) > c.opts.BulkWindow {
			delete(c.recent, p)
		}
	}
	if len(c.recent) <= c.opts.BulkThreshold {
		return
	}
	for p, t := range c.pending {
		t.Stop()
		delete(c.pending, p)
	}
	if c.bulkTimer != nil {
		c.bulkTimer.Stop()
	} else {
		c.logger.Info("bulk change detected, coalescing into one reindex", "changes", len(c.recent))
	}
	var timer *time.Timer
	timer = time.AfterFunc(c.opts.BulkWindow, func() {
		c.post(func() {
			if c.bulkTimer != timer {
				return
			}
			c.bulkTimer = nil
			clear(c.recent)
			if c.enabled.Load() {
				c.startReindex(c.indexer.Root())
			}
		})
	})
	c.bulkTimer = timer
}

func (c *Coordinator) schedule(path string) {
	if !c.accepts(path) {
		return
	}
	if t, ok := c.pending[path]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(c.opts.Debounce, func() {
		c.post(func() {
			if c.pending[path] != timer {
				return
			}
			delete(c.pending, path)
			if !c.enabled.Load() {
				return
			}
			gen := c.generation.Load()
			c.spawn(func() { c.indexOne(gen, path) })
		})
	})
	c.pending[path] = timer
}

func (c *Coordinator) indexOne(gen uint64, path string) {
	live := c.live(c.base, gen)
	if !live() {
		return
	}
	if !c.indexable(path) {
		// A full walk would skip it, so drop anything indexed earlier.
		if err := c.indexer.RemoveFile(c.base, path); err != nil {
			c.logger.Warn("remove rejected file", "path", path, "err", err)
		}
		return
	}
	res, err := c.indexer.IndexFile(c.base, path, live)
	switch {
	case errors.Is(err, store.ErrSuperseded):
		return
	case err != nil:
		c.logger.Warn("index changed file", "path", path, "err", err)
		return
	}
	if !res.Skipped {
		c.sink.Publish(events.Event{Kind: events.FileIndexed, CurrentFile: path, Count: res.Symbols})
	}
}

func (c *Coordinator) remove(path string) {
	if t, ok := c.pending[path]; ok {
		t.Stop()
		delete(c.pending, path)
	}
	c.spawn(func() {
		if err := c.indexer.RemoveFile(c.base, path); err != nil {
			c.logger.Warn("remove file", "path", path, "err", err)
			return
		}
		c.sink.Publish(events.Event{Kind: events.FileRemoved, CurrentFile: path})
	})
}

// Subscribe consumes src until it closes or the coordinator stops. Stop
// closes every subscribed source.
func (c *Coordinator) Subscribe(src events.Source) error {
	err := c.call(func() {
		c.sources = append(c.sources, src)
		c.spawn(func() {
			for ev := range src.Events() {
				if err := c.HandleEvent(ev); err != nil {
					return
				}
			}
		})
	})
	if err != nil {
		src.Close()
	}
	return err
}

// SetEnabled toggles acceptance of new events. Disabling also makes running
// tasks exit at their next check and drops pending debounced work.
func (c *Coordinator) SetEnabled(enabled bool) error {
	return c.call(func() {
		c.enabled.Store(enabled)
		if enabled {
			return
		}
		c.clearTimers()
	})
}

func (c *Coordinator) clearTimers() {
	for p, t := range c.pending {
		t.Stop()
		delete(c.pending, p)
	}
	if c.bulkTimer != nil {
		c.bulkTimer.Stop()
		c.bulkTimer = nil
	}
	clear(c.recent)
}

// Stop invalidates all outstanding work, cancels running tasks and closes
// subscribed sources. It is safe to call more than once.
func (c *Coordinator) Stop() {
	c.stop.Do(func() {
		c.call(func() {
			c.generation.Add(1)
			c.enabled.Store(false)
			c.clearTimers()
			if c.cancelReindex != nil {
				c.cancelReindex()
			}
			c.cancelBase()
			for _, src := range c.sources {
				if err := src.Close(); err != nil {
					c.logger.Warn("close event source", "err", err)
				}
			}
			c.sources = nil
			close(c.quit)
		})
	})
}

// Wait blocks until Stop has been called and every task has returned.
func (c *Coordinator) Wait() {
	<-c.done
	c.tasks.Wait()
}
