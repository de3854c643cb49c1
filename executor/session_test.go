package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/tclbridge/bridge"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestSession(t *testing.T, extra ...SessionOption) *Session {
	t.Helper()

	mod, opts := testModule(t)
	exec, err := GetTestExecutor()
	require.NoError(t, err)

	s, err := exec.NewSession(context.Background(), mod, append(opts, extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionPatchlevel(t *testing.T) {
	s := newTestSession(t)
	assert.NotEmpty(t, s.Patchlevel())
}

func TestSessionStatePersists(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	v, err := s.Eval(ctx, "set x 5")
	require.NoError(t, err)
	assert.Equal(t, "5", v)

	v, err = s.Eval(ctx, "set x")
	require.NoError(t, err)
	assert.Equal(t, "5", v)
}

func TestSessionsAreIsolated(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	ctx := context.Background()

	_, err := a.Eval(ctx, "set only_a 1")
	require.NoError(t, err)

	_, err = b.Eval(ctx, "set only_a")
	var evalErr *bridge.EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, evalErr.Message, "no such variable")
}

func TestSessionError(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Eval(context.Background(), "error boom")
	var evalErr *bridge.EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "boom", evalErr.Message)
	assert.Equal(t, "NONE", evalErr.Code)
	assert.Contains(t, evalErr.Info, "while executing")

	// The session survives a failed command.
	v, err := s.Eval(context.Background(), "set y 1")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestSessionSplitList(t *testing.T) {
	s := newTestSession(t)

	items, err := s.SplitList(context.Background(), "a b c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)

	items, err = s.SplitList(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSessionOutput(t *testing.T) {
	var out syncBuffer
	s := newTestSession(t, WithOutput(&out))

	v, err := s.Eval(context.Background(), "puts hello")
	require.NoError(t, err)
	assert.Equal(t, "", v)
	assert.Equal(t, "hello\n", out.String())
}

func TestSessionTimeout(t *testing.T) {
	s := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Eval(ctx, "while 1 {}")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSessionClose(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	_, err := s.Eval(context.Background(), "set x 1")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionCloseWhileBusy(t *testing.T) {
	s := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _ = s.Eval(ctx, "while 1 {}")

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(closeGrace + 5*time.Second):
		t.Fatal("close did not terminate a busy interpreter")
	}
}

func TestSessionConcurrentCallsSerialise(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := string(rune('a' + i))
			v, err := s.Eval(ctx, "set v"+want+" "+want)
			if err == nil && v != want {
				err = errors.New("got " + v + ", want " + want)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestSessionStartTimeout(t *testing.T) {
	mod, opts := testModule(t)
	exec, err := GetTestExecutor()
	require.NoError(t, err)

	s, err := exec.NewSession(context.Background(), mod, append(opts, WithStartTimeout(time.Nanosecond))...)
	if err == nil {
		// The instance won the race against the timer.
		s.Close()
		return
	}
	assert.Contains(t, err.Error(), "timeout")
}

func TestSessionAbandonedResponseDrained(t *testing.T) {
	s := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Eval(ctx, "after 300")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	v, err := s.Eval(context.Background(), "set late 1")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestSessionMalformedOutput(t *testing.T) {
	mod, opts := testModule(t)
	requireMock(t, mod)
	exec, err := GetTestExecutor()
	require.NoError(t, err)

	s, err := exec.NewSession(context.Background(), mod, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	err = evalWithin(t, s, "garble", 5*time.Second)
	assert.ErrorIs(t, err, ErrProtocol)

	err = evalWithin(t, s, "set x 1", 5*time.Second)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestSessionDirectStdoutWrite(t *testing.T) {
	mod, opts := testModule(t)
	if mod.Name() == "mock" {
		t.Skip("needs a real tclsh")
	}
	exec, err := GetTestExecutor()
	require.NoError(t, err)

	var out syncBuffer
	s, err := exec.NewSession(context.Background(), mod, append(opts, WithOutput(&out))...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	v, err := s.Eval(context.Background(), "chan puts stdout hi; set y 2")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	assert.Equal(t, "hi\n", out.String())

	v, err = s.Eval(context.Background(), "set y")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

// evalWithin fails the test if Eval does not return within d.
func evalWithin(t *testing.T, s *Session, script string, d time.Duration) error {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		_, err := s.Eval(context.Background(), script)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatalf("Eval(%q) still blocked after %s", script, d)
		return nil
	}
}

// streamSession is a Session whose output stream is fed by the test
// instead of a running instance.
func streamSession(t *testing.T) (*Session, *io.PipeWriter) {
	t.Helper()

	stdinR, stdinW := io.Pipe()
	go io.Copy(io.Discard, stdinR)
	stdoutR, stdoutW := io.Pipe()

	s := &Session{
		cfg:       defaultSessionConfig(),
		logger:    zerolog.Nop(),
		stdin:     stdinW,
		stdout:    stdoutR,
		stderr:    newSessionOutput(),
		responses: make(chan response),
		exited:    make(chan struct{}),
		broken:    make(chan struct{}),
	}
	var once sync.Once
	s.cancel = func() {
		once.Do(func() {
			s.exitErr = ErrSessionExited
			close(s.exited)
		})
	}
	t.Cleanup(func() {
		stdoutW.Close()
		s.cancel()
		s.Close()
	})

	go s.readLoop(bufio.NewReader(stdoutR))
	return s, stdoutW
}

func TestSessionStreamBreaksPendingAndLaterCalls(t *testing.T) {
	s, stdout := streamSession(t)

	pending := make(chan error, 1)
	go func() {
		_, err := s.Eval(context.Background(), "set x 1")
		pending <- err
	}()

	_, err := io.WriteString(stdout, "bogus 3\nabc")
	require.NoError(t, err)

	select {
	case err := <-pending:
		assert.ErrorIs(t, err, ErrProtocol)
	case <-time.After(5 * time.Second):
		t.Fatal("pending Eval not released after a malformed frame")
	}

	err = evalWithin(t, s, "set x 2", 5*time.Second)
	assert.ErrorIs(t, err, ErrProtocol)

	_, err = s.SplitList(context.Background(), "a b")
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestSessionStreamAnswersInOrder(t *testing.T) {
	s, stdout := streamSession(t)

	go io.WriteString(stdout, "output 3\nhi\nok 1\n7")

	v, err := s.Eval(context.Background(), "set x 7")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
}

var _ bridge.Interp = (*Session)(nil)
