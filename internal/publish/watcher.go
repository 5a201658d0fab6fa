// Package publish republishes new CSV rows into the front-end dataset file
// and keeps a backup copy of it.
package publish

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/i474232898/solar-data-pipeline/internal/common"
	"github.com/i474232898/solar-data-pipeline/internal/csvstore"
	"github.com/i474232898/solar-data-pipeline/internal/dataset"
	"github.com/i474232898/solar-data-pipeline/internal/store"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultMaxBackoff   = 2 * time.Minute
	DefaultDebounce     = 500 * time.Millisecond
)

// Options configures a Watcher.
type Options struct {
	CSVPath    string
	OutputPath string
	BackupPath string
	VarName    string

	// PollInterval is the base delay used when backing off after a failure.
	PollInterval time.Duration
	MaxBackoff   time.Duration
	// Debounce coalesces bursts of file events in Watch.
	Debounce time.Duration

	Logger *zap.Logger
}

// Status is a snapshot of the watcher's progress.
type Status struct {
	Published           int       `json:"published"`
	LastCSVCount        int       `json:"lastCsvCount"`
	LastPublish         time.Time `json:"lastPublish,omitempty"`
	LastBackup          time.Time `json:"lastBackup,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	NextAttempt         time.Time `json:"nextAttempt,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
}

// Watcher mirrors CSV growth into the published dataset file. Poll and
// Backup are serialized.
type Watcher struct {
	mu sync.Mutex

	opts   Options
	prefix string
	data   *store.DatasetStore
	logger *zap.Logger
	now    func() time.Time

	loaded    bool
	lastCount int

	failures    int
	nextAttempt time.Time
	lastErr     error
	lastPublish time.Time
	lastBackup  time.Time
}

// NewWatcher creates a Watcher that keeps its published rows in data.
func NewWatcher(data *store.DatasetStore, opts Options) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{
		opts:   opts,
		prefix: dataset.Prefix(opts.VarName),
		data:   data,
		logger: opts.Logger,
		now:    time.Now,
	}
}

// Init loads the previously published dataset. Rows already published are
// not published again: the observed CSV row count starts at their number.
// Poll calls Init on first use.
func (w *Watcher) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.initLocked()
}

func (w *Watcher) initLocked() error {
	if w.loaded {
		return nil
	}
	records, err := dataset.LoadFile(w.opts.OutputPath, w.prefix)
	if err != nil {
		return fmt.Errorf("load published dataset: %w", err)
	}
	w.data.Replace(records)
	w.lastCount = len(records)
	w.loaded = true

	w.logger.Info("loaded published dataset",
		zap.String("path", w.opts.OutputPath),
		zap.Int("records", len(records)))
	return nil
}

// Poll re-reads the CSV and, if it has more rows than last observed,
// publishes the new rows (by index) and rewrites the output file. It returns
// the number of rows published.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := w.initLocked(); err != nil {
		return 0, err
	}

	header, rows, err := csvstore.ReadRecords(w.opts.CSVPath)
	if err != nil {
		return 0, fmt.Errorf("read csv: %w", err)
	}

	n := len(rows)
	if n < w.lastCount {
		w.logger.Warn("csv has fewer rows than already published; waiting for growth",
			zap.Int("csv_rows", n),
			zap.Int("observed", w.lastCount))
		return 0, nil
	}
	if n == w.lastCount {
		return 0, nil
	}

	fresh := dataset.FromCSV(header, rows[w.lastCount:])
	all := append(w.data.All(), fresh...)

	err = common.WriteFileAtomic(w.opts.OutputPath, func(out io.Writer) error {
		return dataset.Encode(out, w.prefix, all)
	})
	if err != nil {
		return 0, fmt.Errorf("write published dataset: %w", err)
	}

	w.data.Append(fresh...)
	w.lastCount = n
	w.lastPublish = w.now()

	w.logger.Info("new records added",
		zap.Int("new", len(fresh)),
		zap.Int("total", len(all)),
		zap.String("path", w.opts.OutputPath))
	return len(fresh), nil
}

// Backup copies the output file verbatim to the backup path. A missing
// output file is not an error.
func (w *Watcher) Backup(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	ok, err := common.Exists(w.opts.OutputPath)
	if err != nil {
		return err
	}
	if !ok || w.opts.BackupPath == "" {
		return nil
	}

	n, err := common.CopyFile(w.opts.OutputPath, w.opts.BackupPath)
	if err != nil {
		return fmt.Errorf("backup %s: %w", w.opts.OutputPath, err)
	}
	w.lastBackup = w.now()

	w.logger.Debug("copied published dataset",
		zap.String("from", w.opts.OutputPath),
		zap.String("to", w.opts.BackupPath),
		zap.Int64("bytes", n))
	return nil
}

// Tick runs one supervised Poll. Failures are logged and push the next
// attempt out by an exponential backoff capped at MaxBackoff; ticks that
// arrive before then are skipped.
func (w *Watcher) Tick(ctx context.Context) {
	if w.backingOff() {
		return
	}

	_, err := w.Poll(ctx)
	if ctx.Err() != nil {
		return
	}
	w.observe("poll", err)
}

// BackupTick runs one supervised Backup.
func (w *Watcher) BackupTick(ctx context.Context) {
	err := w.Backup(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		w.logger.Error("backup failed", zap.Error(err))
	}
}

func (w *Watcher) backingOff() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.nextAttempt.IsZero() && w.now().Before(w.nextAttempt)
}

func (w *Watcher) observe(op string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err == nil {
		if w.failures > 0 {
			w.logger.Info("recovered", zap.String("op", op), zap.Int("after_failures", w.failures))
		}
		w.failures = 0
		w.nextAttempt = time.Time{}
		w.lastErr = nil
		return
	}

	w.failures++
	w.lastErr = err
	delay := backoff(w.opts.PollInterval, w.opts.MaxBackoff, w.failures)
	w.nextAttempt = w.now().Add(delay)

	w.logger.Error("publish failed, backing off",
		zap.String("op", op),
		zap.Int("consecutive_failures", w.failures),
		zap.Duration("backoff", delay),
		zap.Error(err))
}

// backoff returns base * 2^failures, capped at max.
func backoff(base, max time.Duration, failures int) time.Duration {
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// Status returns a snapshot of the watcher state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := Status{
		Published:           w.data.Len(),
		LastCSVCount:        w.lastCount,
		LastPublish:         w.lastPublish,
		LastBackup:          w.lastBackup,
		ConsecutiveFailures: w.failures,
		NextAttempt:         w.nextAttempt,
	}
	if w.lastErr != nil {
		st.LastError = w.lastErr.Error()
	}
	return st
}

// Watch triggers a Tick shortly after the CSV file is written or created.
// It blocks until ctx is done. The timed poll keeps running either way, so a
// watch that cannot start is logged and Watch returns nil.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("file events unavailable, relying on polling", zap.Error(err))
		return nil
	}
	defer fw.Close()

	target := filepath.Clean(w.opts.CSVPath)
	dir := filepath.Dir(target)
	if err := fw.Add(dir); err != nil {
		w.logger.Warn("cannot watch csv directory, relying on polling",
			zap.String("dir", dir), zap.Error(err))
		return nil
	}
	w.logger.Info("watching csv for changes", zap.String("path", target))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(w.opts.Debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))

		case <-debounce:
			debounce = nil
			w.Tick(ctx)
		}
	}
}
