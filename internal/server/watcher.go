package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// ChangeHandler is called with the changed dataset paths after each burst
// of writes.
type ChangeHandler func(ctx context.Context, changed []string)

// Watcher reports changes to a fixed set of dataset files. It watches their
// parent directories so that editors replacing a file by rename are seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	handler  ChangeHandler
	debounce time.Duration
	log      *zap.Logger
}

// NewWatcher watches files. A zero debounce uses DefaultDebounce.
func NewWatcher(files []string, handler ChangeHandler, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]struct{}, len(files)),
		handler:  handler,
		debounce: debounce,
		log:      log,
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolving %s: %w", f, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run delivers batched changes until ctx is canceled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, tracked := w.files[name]; !tracked {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			w.log.Info("dataset files changed", zap.Strings("files", changed))
			if w.handler != nil {
				w.handler(ctx, changed)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// RebuildOnChange returns a handler that rebuilds the holder's result.
func (s *Server) RebuildOnChange() ChangeHandler {
	return func(ctx context.Context, changed []string) {
		if _, err := s.holder.Rebuild(ctx); err != nil {
			s.log.Warn("rebuild after change failed", zap.Strings("files", changed), zap.Error(err))
			return
		}
		s.log.Info("rebuilt after change", zap.Strings("files", changed))
	}
}
