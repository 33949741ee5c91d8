package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hurttlocker/holdings/internal/assemble"
)

// ErrNoBuild is returned while no build has succeeded yet.
var ErrNoBuild = errors.New("no build available")

// Builder produces a fresh Result.
type Builder func(ctx context.Context) (*Result, error)

// Holder keeps the latest successful build and the current selection for
// the servers. Readers never see a partially built Result.
type Holder struct {
	build Builder
	log   *zap.Logger

	mu        sync.RWMutex
	current   *Result
	lastErr   error
	selection *assemble.Selection

	rebuild sync.Mutex
}

// NewHolder returns a Holder that rebuilds with build.
func NewHolder(build Builder, log *zap.Logger) *Holder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Holder{build: build, log: log, selection: assemble.NewSelection()}
}

// Rebuild runs the builder and swaps in the result. On failure the previous
// result stays current and the error is returned.
func (h *Holder) Rebuild(ctx context.Context) (*Result, error) {
	h.rebuild.Lock()
	defer h.rebuild.Unlock()

	res, err := h.build(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err
	if err != nil {
		h.log.Warn("rebuild failed, keeping previous build", zap.Error(err))
		return nil, err
	}
	h.current = res
	return res, nil
}

// Current returns the latest result, or ErrNoBuild (wrapping the last build
// error, if any) when nothing has been built.
func (h *Holder) Current() (*Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		if h.lastErr != nil {
			return nil, errors.Join(ErrNoBuild, h.lastErr)
		}
		return nil, ErrNoBuild
	}
	return h.current, nil
}

// LastError returns the error of the most recent rebuild, nil if it succeeded.
func (h *Holder) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// Selection returns a copy of the current selection.
func (h *Holder) Selection() *assemble.Selection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return assemble.NewSelection(h.selection.IDs()...)
}

// Select replaces the selection with ids.
func (h *Holder) Select(ids []string) *assemble.Selection {
	next := assemble.NewSelection(ids...)
	h.mu.Lock()
	h.selection = next
	h.mu.Unlock()
	return assemble.NewSelection(next.IDs()...)
}

// Toggle flips one title in the selection and reports whether it is now
// selected.
func (h *Holder) Toggle(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selection.Toggle(id)
}
