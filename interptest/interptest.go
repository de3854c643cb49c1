// Package interptest provides an in-memory interpreter double for testing
// code built on the bridge package without a real Tcl runtime.
//
// The double understands a small command subset (set, unset, incr, append,
// expr, list, llength, info, error, return) with Tcl word rules for
// braces, quotes, variable and command substitution. It is deliberately
// not a Tcl implementation.
//
//	f := interptest.NewFactory()
//	b, _ := bridge.New(f)
//	b.CmdSync(ctx, "set x 5")
//	f.Evals("set x 5") // 1
package interptest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/caffeineduck/tclbridge/bridge"
)

const (
	DefaultVersion    = "8.6"
	DefaultPatchlevel = "8.6.13"
)

// ErrClosed is returned by an Interp after Close.
var ErrClosed = errors.New("interptest: interpreter closed")

// Option configures a Factory.
type Option func(*config)

type config struct {
	version    string
	patchlevel string
	failures   map[string]string
	factoryErr error
	delay      time.Duration
}

// WithVersion sets the value of "info tclversion".
func WithVersion(v string) Option {
	return func(c *config) {
		c.version = v
		c.patchlevel = v + ".0"
	}
}

// WithFailure makes every evaluation of exactly script fail with message.
func WithFailure(script, message string) Option {
	return func(c *config) {
		c.failures[script] = message
	}
}

// WithFactoryError makes NewInterp fail after the first instance, so a
// bridge can still create its shared instance.
func WithFactoryError(err error) Option {
	return func(c *config) {
		c.factoryErr = err
	}
}

// WithDelay makes every evaluation take at least d, or until its context
// is done.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// Factory creates in-memory interpreters and records what happens to them.
type Factory struct {
	cfg config

	mu      sync.Mutex
	created int
	open    int
	evals   map[string]int
}

// NewFactory returns a Factory.
func NewFactory(opts ...Option) *Factory {
	cfg := config{
		version:    DefaultVersion,
		patchlevel: DefaultPatchlevel,
		failures:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Factory{cfg: cfg, evals: make(map[string]int)}
}

// NewInterp implements bridge.Factory.
func (f *Factory) NewInterp(ctx context.Context) (bridge.Interp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cfg.factoryErr != nil && f.created > 0 {
		return nil, f.cfg.factoryErr
	}
	f.created++
	f.open++
	return &Interp{factory: f, vars: make(map[string]string)}, nil
}

// Created is the number of instances created so far.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Open is the number of instances created and not yet closed.
func (f *Factory) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Evals is the number of times script was passed to Eval on any instance.
func (f *Factory) Evals(script string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evals[script]
}

func (f *Factory) record(script string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals[script]++
	msg, fail := f.cfg.failures[script]
	return msg, fail
}

// Interp is one in-memory interpreter instance.
type Interp struct {
	factory *Factory
	vars    map[string]string
	closed  bool
}

// Eval implements bridge.Interp.
func (in *Interp) Eval(ctx context.Context, script string) (string, error) {
	if in.closed {
		return "", ErrClosed
	}

	msg, fail := in.factory.record(script)

	if d := in.factory.cfg.delay; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if fail {
		return "", &bridge.EvalError{Message: msg, Code: "NONE", Info: msg}
	}

	return in.eval(script)
}

// SplitList implements bridge.Interp.
func (in *Interp) SplitList(ctx context.Context, value string) ([]string, error) {
	if in.closed {
		return nil, ErrClosed
	}
	return splitList(value)
}

// Close implements bridge.Interp.
func (in *Interp) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true

	in.factory.mu.Lock()
	in.factory.open--
	in.factory.mu.Unlock()
	return nil
}
