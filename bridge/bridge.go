package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// VersionCommand is the introspection command Version evaluates.
const VersionCommand = "info tclversion"

// Outcome is what an asynchronous command delivers. Exactly one of Result
// and Err is set.
type Outcome struct {
	Result *Result
	Err    error
}

// Bridge executes Tcl commands either on one shared, long-lived
// interpreter instance (CmdSync) or on a fresh isolated instance per call
// (Cmd).
type Bridge struct {
	factory Factory
	shared  *handle
	logger  zerolog.Logger

	versionMu     sync.Mutex
	version       string
	versionCached bool

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// Option configures a Bridge.
type Option func(*config)

type config struct {
	logger       zerolog.Logger
	versionCheck bool
}

func defaultConfig() config {
	return config{logger: log.Logger}
}

// WithLogger sets the logger used for execution events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithVersionCheck makes New query the interpreter version and fail if
// the query fails.
func WithVersionCheck() Option {
	return func(c *config) {
		c.versionCheck = true
	}
}

// New creates a Bridge and its shared interpreter instance.
func New(factory Factory, opts ...Option) (*Bridge, error) {
	if factory == nil {
		return nil, errors.New("bridge: nil factory")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	in, err := factory.NewInterp(context.Background())
	if err != nil {
		return nil, fmt.Errorf("create shared interpreter: %w", err)
	}

	b := &Bridge{
		factory: factory,
		shared:  newHandle(in),
		logger:  cfg.logger.With().Str("component", "bridge").Logger(),
	}

	if cfg.versionCheck {
		v, err := b.Version(context.Background())
		if err != nil {
			b.shared.close()
			return nil, fmt.Errorf("query interpreter version: %w", err)
		}
		b.logger.Info().Str("version", v).Msg("interpreter ready")
	}

	return b, nil
}

// CmdSync evaluates script on the shared interpreter instance and blocks
// until it completes. Variables, procedures and loaded packages created by
// the command stay visible to later CmdSync calls.
//
// CmdSync never panics: interpreter failures, capability failures and
// panics raised by the capability are all returned as *EvalError.
func (b *Bridge) CmdSync(ctx context.Context, script string) (res *Result, err error) {
	b.mu.RLock()
	closed := b.closed
	if !closed {
		b.inflight.Add(1)
	}
	b.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	defer b.inflight.Done()

	return b.exec(ctx, b.shared, "sync", script)
}

// EvalSync is an alias for CmdSync.
func (b *Bridge) EvalSync(ctx context.Context, script string) (*Result, error) {
	return b.CmdSync(ctx, script)
}

// Cmd evaluates script on a brand-new interpreter instance in its own
// goroutine. The instance is closed as soon as the command completes, so
// nothing the command defines is visible to any other call.
//
// The returned channel receives exactly one Outcome and is then closed.
func (b *Bridge) Cmd(ctx context.Context, script string) <-chan Outcome {
	out := make(chan Outcome, 1)
	b.async(ctx, script, func(o Outcome) {
		out <- o
		close(out)
	})
	return out
}

// CmdFunc is Cmd with a completion callback. fn runs on the goroutine
// that executed the command and may be nil. Close waits for fn to return,
// so fn must not call Close.
func (b *Bridge) CmdFunc(ctx context.Context, script string, fn func(*Result, error)) {
	b.async(ctx, script, func(o Outcome) {
		if fn != nil {
			fn(o.Result, o.Err)
		}
	})
}

// async runs script on an isolated instance in a new goroutine and hands
// the outcome to done on that goroutine. The goroutine counts as in flight
// until done returns.
func (b *Bridge) async(ctx context.Context, script string, done func(Outcome)) {
	b.mu.RLock()
	closed := b.closed
	if !closed {
		b.inflight.Add(1)
	}
	b.mu.RUnlock()
	if closed {
		go done(Outcome{Err: ErrClosed})
		return
	}

	go func() {
		defer b.inflight.Done()

		res, err := b.isolated(ctx, script)
		if err != nil {
			done(Outcome{Err: err})
			return
		}
		done(Outcome{Result: res})
	}()
}

// Eval is an alias for CmdFunc.
func (b *Bridge) Eval(ctx context.Context, script string, fn func(*Result, error)) {
	b.CmdFunc(ctx, script, fn)
}

func (b *Bridge) isolated(ctx context.Context, script string) (res *Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			res, err = nil, panicError(script, v)
		}
	}()

	in, err := b.factory.NewInterp(ctx)
	if err != nil {
		return nil, newEvalError(script, fmt.Errorf("create interpreter: %w", err))
	}

	h := newHandle(in)
	defer func() {
		if cerr := h.close(); cerr != nil {
			b.logger.Warn().Err(cerr).Msg("close isolated interpreter")
		}
	}()

	return b.exec(ctx, h, "async", script)
}

func (b *Bridge) exec(ctx context.Context, h *handle, mode, script string) (res *Result, err error) {
	id := uuid.NewString()
	start := time.Now()

	defer func() {
		if v := recover(); v != nil {
			res, err = nil, panicError(script, v)
		}

		ev := b.logger.Debug()
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Str("exec_id", id).
			Str("mode", mode).
			Dur("duration", time.Since(start)).
			Bool("ok", err == nil).
			Msg("command executed")
	}()

	if err := ctx.Err(); err != nil {
		return nil, newEvalError(script, err)
	}

	raw, err := h.eval(ctx, script)
	if err != nil {
		return nil, newEvalError(script, err)
	}
	return newResult(raw, script, time.Since(start), h), nil
}

// Version returns the interpreter's Tcl version. The first successful
// query is cached; later calls do not touch the interpreter. A failed
// query is returned and retried on the next call.
func (b *Bridge) Version(ctx context.Context) (string, error) {
	b.versionMu.Lock()
	defer b.versionMu.Unlock()

	if b.versionCached {
		return b.version, nil
	}

	res, err := b.CmdSync(ctx, VersionCommand)
	if err != nil {
		return "", err
	}
	b.version = res.String()
	b.versionCached = true
	return b.version, nil
}

// Close waits for in-flight commands and releases the shared interpreter
// instance. Every call made after Close fails with ErrClosed.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.inflight.Wait()
	return b.shared.close()
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying b.
func NewContext(ctx context.Context, b *Bridge) context.Context {
	return context.WithValue(ctx, ctxKey{}, b)
}

// FromContext returns the Bridge stored in ctx by NewContext.
func FromContext(ctx context.Context) (*Bridge, bool) {
	b, ok := ctx.Value(ctxKey{}).(*Bridge)
	return b, ok && b != nil
}
