package bridge

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Interp is one interpreter instance: a global namespace plus whatever
// state commands evaluated against it have created.
//
// Implementations are not expected to be safe for concurrent use. The
// bridge never issues two commands against the same Interp at once.
type Interp interface {
	// Eval evaluates script at global level and returns the interpreter
	// result. Interpreter errors should be reported as *EvalError.
	Eval(ctx context.Context, script string) (string, error)

	// SplitList parses value as a Tcl list using the interpreter's own
	// list rules.
	SplitList(ctx context.Context, value string) ([]string, error)

	// Close releases the instance. Calls after Close must fail.
	Close() error
}

// Factory creates interpreter instances in their default initial state.
type Factory interface {
	NewInterp(ctx context.Context) (Interp, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Interp, error)

// NewInterp calls f(ctx).
func (f FactoryFunc) NewInterp(ctx context.Context) (Interp, error) {
	return f(ctx)
}

// handle serialises access to an Interp and remembers whether it has been
// closed, so results can refuse conversions on a dead instance. Waiting
// for the instance honours the caller's context.
type handle struct {
	interp Interp
	sem    *semaphore.Weighted
	closed atomic.Bool
}

func newHandle(in Interp) *handle {
	return &handle{interp: in, sem: semaphore.NewWeighted(1)}
}

func (h *handle) eval(ctx context.Context, script string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	if h.closed.Load() {
		return "", ErrInterpClosed
	}
	return h.interp.Eval(ctx, script)
}

func (h *handle) splitList(ctx context.Context, value string) ([]string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.sem.Release(1)

	if h.closed.Load() {
		return nil, ErrInterpClosed
	}
	return h.interp.SplitList(ctx, value)
}

func (h *handle) isClosed() bool {
	return h.closed.Load()
}

// close waits for the running command, if any, then releases the
// instance.
func (h *handle) close() error {
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.interp.Close()
}
