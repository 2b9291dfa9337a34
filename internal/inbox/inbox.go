// Package inbox watches a directory for saved model responses and hands
// each settled file to a pool of workers.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrQueueFull is returned by Submit when the queue has no room.
var ErrQueueFull = errors.New("inbox queue full")

// Handler processes one file. Errors are logged and counted; they do not
// stop the watcher.
type Handler func(ctx context.Context, path string) error

// Config configures a Watcher.
type Config struct {
	Dir          string
	Pattern      string        // Glob matched against the base name (default: *.txt)
	Workers      int           // Worker goroutines (default: 1)
	QueueSize    int           // Queue size (default: 100)
	Settle       time.Duration // Quiet period after the last write before a file is queued (default: 500ms)
	PollExisting bool          // Queue matching files already in Dir at start
	Logger       *slog.Logger
}

// Status is a snapshot of watcher counters.
type Status struct {
	Dir        string `json:"dir"`
	Workers    int    `json:"workers"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`
	Pending    int    `json:"pending"`
	Processed  int64  `json:"processed"`
	Failed     int64  `json:"failed"`
}

// Watcher watches Dir and runs Handler for every matching file once its
// writes settle. All workers share a single queue.
type Watcher struct {
	dir          string
	pattern      string
	workerCount  int
	settle       time.Duration
	pollExisting bool
	handler      Handler
	logger       *slog.Logger

	queue chan string

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event

	inFlight  atomic.Int32
	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a Watcher. Dir and handler are required.
func New(cfg Config, handler Handler) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("inbox handler is required")
	}
	if cfg.Pattern == "" {
		cfg.Pattern = "*.txt"
	}
	if _, err := filepath.Match(cfg.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", cfg.Pattern, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watcher{
		dir:          cfg.Dir,
		pattern:      cfg.Pattern,
		workerCount:  cfg.Workers,
		settle:       cfg.Settle,
		pollExisting: cfg.PollExisting,
		handler:      handler,
		logger:       cfg.Logger.With("inbox", cfg.Dir, "workers", cfg.Workers),
		queue:        make(chan string, cfg.QueueSize),
		pending:      make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is cancelled. Files already queued when ctx ends
// are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.worker(ctx, id)
		}(i)
	}
	defer wg.Wait()

	if w.pollExisting {
		if err := w.queueExisting(); err != nil {
			w.logger.Warn("failed to list existing files", "error", err)
		}
	}

	w.logger.Info("watching inbox", "pattern", w.pattern)
	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox watcher stopping")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.touch(ev.Name, time.Now())
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

// Submit queues path for processing without waiting for it to settle.
func (w *Watcher) Submit(path string) error {
	select {
	case w.queue <- path:
		w.logger.Debug("queued file", "path", path, "queue_len", len(w.queue))
		return nil
	default:
		w.logger.Warn("inbox queue full", "path", path)
		return fmt.Errorf("%w: %s", ErrQueueFull, path)
	}
}

// Status returns current watcher counters.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	pending := len(w.pending)
	w.mu.Unlock()
	return Status{
		Dir:        w.dir,
		Workers:    w.workerCount,
		InFlight:   int(w.inFlight.Load()),
		QueueDepth: len(w.queue),
		Pending:    pending,
		Processed:  w.processed.Load(),
		Failed:     w.failed.Load(),
	}
}

func (w *Watcher) matches(path string) bool {
	ok, _ := filepath.Match(w.pattern, filepath.Base(path))
	return ok
}

// touch records an event for path, restarting its settle period.
func (w *Watcher) touch(path string, at time.Time) {
	if !w.matches(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

// flush queues every pending file whose last event is older than the
// settle period.
func (w *Watcher) flush(now time.Time) {
	var ready []string
	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		// A full queue drops the file; the next write to it queues it again.
		_ = w.Submit(path)
	}
}

func (w *Watcher) queueExisting() error {
	matches, err := filepath.Glob(filepath.Join(w.dir, w.pattern))
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, path := range matches {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			_ = w.Submit(path)
		}
	}
	return nil
}

func (w *Watcher) worker(ctx context.Context, id int) {
	w.logger.Debug("inbox worker started", "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return

		case path := <-w.queue:
			w.inFlight.Add(1)
			start := time.Now()
			err := w.handler(ctx, path)
			w.inFlight.Add(-1)

			if err != nil {
				w.failed.Add(1)
				w.logger.Error("failed to process file", "worker_id", id, "path", path, "error", err)
				continue
			}
			w.processed.Add(1)
			w.logger.Debug("processed file", "worker_id", id, "path", path, "duration", time.Since(start))
		}
	}
}
