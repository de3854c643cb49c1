package executor

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
)

//go:embed driver.tcl
var driverFS embed.FS

const (
	driverDir  = "/tclbridge"
	driverPath = driverDir + "/driver.tcl"
	libraryDir = "/usr/lib/tcl"

	closeGrace = 2 * time.Second
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSessionExited = errors.New("interpreter exited")
	ErrProtocol      = errors.New("interpreter protocol error")
)

// Session is one running interpreter instance. State created by Eval
// persists until the session is closed. Requests are serialised.
type Session struct {
	exec   *Executor
	mod    Module
	cfg    sessionConfig
	logger zerolog.Logger

	stdin      *io.PipeWriter
	stdout     *io.PipeReader
	stderr     *sessionOutput
	cancel     context.CancelFunc
	responses  chan response
	exited     chan struct{}
	exitErr    error
	broken     chan struct{}
	brokenErr  error
	brokenOnce sync.Once
	patchlevel string

	mu        sync.Mutex
	execMu    sync.Mutex
	closed    bool
	abandoned int
}

// NewSession starts a fresh interpreter instance running mod and waits
// until it is ready to accept commands.
func (e *Executor) NewSession(ctx context.Context, mod Module, opts ...SessionOption) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	compiled, err := e.getCompiled(ctx, mod)
	if err != nil {
		return nil, err
	}

	s := &Session{
		exec:      e,
		mod:       mod,
		cfg:       cfg,
		logger:    e.logger.With().Str("module", mod.Name()).Logger(),
		stderr:    newSessionOutput(),
		responses: make(chan response),
		exited:    make(chan struct{}),
		broken:    make(chan struct{}),
	}

	if err := s.start(ctx, compiled); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) start(ctx context.Context, compiled wazero.CompiledModule) error {
	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()
	s.stdin = stdinWriter
	s.stdout = stdoutReader

	fsConfig := wazero.NewFSConfig().WithFSMount(driverFS, driverDir)
	if s.cfg.library != "" {
		fsConfig = fsConfig.WithReadOnlyDirMount(s.cfg.library, libraryDir)
		s.cfg.env["TCL_LIBRARY"] = libraryDir
	}
	for _, m := range s.cfg.mounts {
		fsConfig = fsConfig.WithReadOnlyDirMount(m.hostPath, m.guestPath)
	}

	moduleConfig := wazero.NewModuleConfig().
		WithStdin(stdinReader).
		WithStdout(stdoutWriter).
		WithStderr(s.stderr).
		WithFSConfig(fsConfig).
		WithArgs(s.mod.Args(driverPath)...).
		WithName("")

	for k, v := range s.cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	// The instance outlives the caller's context; Close cancels it.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		_, err := s.exec.runtime.InstantiateModule(runCtx, compiled, moduleConfig)
		if err == nil {
			err = ErrSessionExited
		} else {
			err = fmt.Errorf("%w: %w", ErrSessionExited, err)
		}
		if tail := strings.TrimSpace(s.stderr.String()); tail != "" {
			err = fmt.Errorf("%w: %s", err, tail)
		}
		s.exitErr = err
		close(s.exited)
		stdoutWriter.Close()
		stdinReader.Close()
	}()

	go s.readLoop(bufio.NewReader(stdoutReader))

	timer := time.NewTimer(s.cfg.startTimeout)
	defer timer.Stop()

	select {
	case resp := <-s.responses:
		if !resp.ready {
			s.Close()
			return errors.New("start session: interpreter did not report ready")
		}
		s.patchlevel = resp.value
		s.logger.Debug().Str("patchlevel", resp.value).Msg("session started")
		return nil
	case <-s.exited:
		s.cancel()
		return fmt.Errorf("start session: %w", s.exitErr)
	case <-s.broken:
		s.Close()
		return fmt.Errorf("start session: %w", s.brokenErr)
	case <-timer.C:
		s.Close()
		return errors.New("session start timeout")
	case <-ctx.Done():
		s.Close()
		return fmt.Errorf("start session: %w", ctx.Err())
	}
}

// readLoop hands complete responses to roundTrip. Once the stream can no
// longer be parsed the session is unusable: every pending and later
// request fails with the recorded error.
func (s *Session) readLoop(r *bufio.Reader) {
	for {
		resp, err := readResponse(r)
		if err != nil {
			select {
			case <-s.exited:
				s.fail(s.exitErr)
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				s.fail(ErrSessionExited)
				return
			}
			s.logger.Warn().Err(err).Msg("read response")
			s.fail(fmt.Errorf("%w: %w", ErrProtocol, err))
			s.cancel()
			return
		}

		if resp.output != "" {
			io.WriteString(s.cfg.output, resp.output)
		}

		select {
		case s.responses <- resp:
		case <-s.exited:
			return
		}
	}
}

func (s *Session) fail(err error) {
	s.brokenOnce.Do(func() {
		s.brokenErr = err
		close(s.broken)
	})
}

// terminalErr is the error reported once the instance has exited or its
// output stream broke. A protocol failure takes precedence over the exit
// it causes.
func (s *Session) terminalErr() error {
	select {
	case <-s.broken:
		return s.brokenErr
	default:
		return s.exitErr
	}
}

// Patchlevel is the interpreter's patch level as reported at startup.
func (s *Session) Patchlevel() string {
	return s.patchlevel
}

// Eval evaluates script at global level. Tcl errors are returned as
// *bridge.EvalError.
func (s *Session) Eval(ctx context.Context, script string) (string, error) {
	resp, err := s.roundTrip(ctx, opEval, script)
	if err != nil {
		return "", err
	}
	if resp.err != nil {
		return "", resp.err
	}
	return resp.value, nil
}

// SplitList parses value with the interpreter's list rules.
func (s *Session) SplitList(ctx context.Context, value string) ([]string, error) {
	resp, err := s.roundTrip(ctx, opSplit, value)
	if err != nil {
		return nil, err
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return resp.items, nil
}

func (s *Session) roundTrip(ctx context.Context, op, payload string) (response, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return response{}, ErrSessionClosed
	}

	// Responses to requests whose callers gave up still arrive in order.
	for s.abandoned > 0 {
		select {
		case <-s.responses:
			s.abandoned--
		case <-s.exited:
			return response{}, s.terminalErr()
		case <-s.broken:
			return response{}, s.terminalErr()
		case <-ctx.Done():
			return response{}, ctx.Err()
		}
	}

	select {
	case <-s.exited:
		return response{}, s.terminalErr()
	case <-s.broken:
		return response{}, s.terminalErr()
	default:
	}

	if err := writeFrame(s.stdin, op, payload); err != nil {
		return response{}, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-s.responses:
		return resp, nil
	case <-s.exited:
		return response{}, s.terminalErr()
	case <-s.broken:
		return response{}, s.terminalErr()
	case <-ctx.Done():
		s.abandoned++
		return response{}, ctx.Err()
	}
}

// Close ends the session. The driver exits on end of input; an instance
// still busy after a grace period is terminated.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.stdin.Close()

	select {
	case <-s.exited:
	case <-time.After(closeGrace):
		s.logger.Warn().Msg("interpreter busy at close, terminating")
		s.cancel()
		<-s.exited
	}
	s.cancel()
	s.stdout.Close()

	return nil
}

type sessionOutput struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func newSessionOutput() *sessionOutput {
	return &sessionOutput{}
}

func (o *sessionOutput) Write(data []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(data)
}

func (o *sessionOutput) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}
