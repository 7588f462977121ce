package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/oshokin/oneshot-layer/internal/logger"
	"github.com/oshokin/oneshot-layer/internal/metrics"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// errWatcherClosed is returned when fsnotify closes its channels.
var errWatcherClosed = errors.New("file watcher closed")

// Watcher reloads a settings file when it changes on disk.
type Watcher struct {
	// path is the absolute settings file path.
	path string
	// onChange receives every valid reloaded configuration.
	onChange func(*Config)
	// clock drives the debounce timer.
	clock clockwork.Clock
	// debounce is the quiet period before reloading.
	debounce time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherClock sets the clock that drives debouncing.
func WithWatcherClock(clock clockwork.Clock) WatcherOption {
	return func(w *Watcher) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// NewWatcher creates a watcher for path. onChange is called from the Run goroutine.
func NewWatcher(path string, onChange func(*Config), opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}

	w := &Watcher{
		path:     abs,
		onChange: onChange,
		clock:    clockwork.NewRealClock(),
		debounce: DefaultDebounce,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Run watches the settings directory until ctx is done.
// Editors often replace files instead of writing them, so the directory is
// watched rather than the file.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "config-watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	logger.InfoKV(ctx, "Watching settings", "path", w.path)

	var (
		fire    = make(chan struct{}, 1)
		pending clockwork.Timer
	)

	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return errWatcherClosed
			}

			if filepath.Clean(ev.Name) != w.path || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
				continue
			}

			if pending != nil {
				pending.Stop()
			}

			pending = w.clock.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return errWatcherClosed
			}

			logger.WarnKV(ctx, "File watcher error", "error", err)
		case <-fire:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		metrics.ConfigReloadsTotal.WithLabelValues("error").Inc()
		logger.WarnKV(ctx, "Ignoring invalid settings", "path", w.path, "error", err)

		return
	}

	metrics.ConfigReloadsTotal.WithLabelValues("success").Inc()
	logger.InfoKV(ctx, "Settings reloaded", "path", w.path)

	if w.onChange != nil {
		w.onChange(cfg)
	}
}
