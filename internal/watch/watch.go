// Package watch reruns the batch whenever PDFs in the input directory change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/a3tai/syllabus-extractor/internal/pdf"
	"github.com/a3tai/syllabus-extractor/internal/pipeline"
)

// DefaultDebounce is how long the directory must stay quiet before a rerun.
const DefaultDebounce = 2 * time.Second

// Runner runs one batch over a directory.
type Runner interface {
	Run(ctx context.Context, inputDir string, force bool) (*pipeline.BatchReport, error)
}

// Watcher reruns a batch when PDFs in a directory are created, written,
// removed or renamed. Bursts of events collapse into a single run.
type Watcher struct {
	dir      string
	runner   Runner
	debounce time.Duration
	logger   *zap.Logger
	onRun    func(*pipeline.BatchReport, error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// OnRun registers a callback invoked after every run.
func OnRun(fn func(*pipeline.BatchReport, error)) Option {
	return func(w *Watcher) { w.onRun = fn }
}

// New creates a watcher for dir.
func New(dir string, runner Runner, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		runner:   runner,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes the directory once and then again after every settled
// change until ctx is cancelled. Batch errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.logger.Info("Watching for changes", zap.String("input", w.dir), zap.Duration("debounce", w.debounce))
	w.runOnce(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watcher stopped", zap.String("input", w.dir))
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !Relevant(event) {
				continue
			}
			w.logger.Debug("Change detected", zap.String("file", filepath.Base(event.Name)), zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		case <-timer.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	report, err := w.runner.Run(ctx, w.dir, false)
	if err != nil {
		w.logger.Error("Batch run failed", zap.String("input", w.dir), zap.Error(err))
	}
	if w.onRun != nil {
		w.onRun(report, err)
	}
}

// Relevant reports whether event can change the batch output.
func Relevant(event fsnotify.Event) bool {
	if !pdf.IsPDFName(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
