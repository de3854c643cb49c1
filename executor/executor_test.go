package executor

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileModule is a Module loaded from disk for tests.
type fileModule struct {
	name   string
	binary []byte
	args   func(scriptPath string) []string
}

func (m *fileModule) Name() string                    { return m.name }
func (m *fileModule) Binary() []byte                  { return m.binary }
func (m *fileModule) Args(scriptPath string) []string { return m.args(scriptPath) }

// testModule returns a real tclsh when TCLBRIDGE_TCLSH is set, otherwise
// the mock built by TestMain. The test is skipped when neither is
// available.
func testModule(t *testing.T) (Module, []SessionOption) {
	t.Helper()

	if path := os.Getenv("TCLBRIDGE_TCLSH"); path != "" {
		bin, err := os.ReadFile(path)
		require.NoError(t, err)

		var opts []SessionOption
		if lib := os.Getenv("TCLBRIDGE_TCL_LIBRARY"); lib != "" {
			opts = append(opts, WithLibrary(lib))
		}
		return &fileModule{
			name:   "tclsh",
			binary: bin,
			args:   func(scriptPath string) []string { return []string{"tclsh", scriptPath} },
		}, opts
	}

	if mockWasm == "" {
		t.Skip("no interpreter module: set TCLBRIDGE_TCLSH or install the go toolchain")
	}
	bin, err := os.ReadFile(mockWasm)
	require.NoError(t, err)
	return &fileModule{
		name:   "mock",
		binary: bin,
		args:   func(string) []string { return []string{"mock"} },
	}, nil
}

// requireMock skips tests that rely on mock-only commands.
func requireMock(t *testing.T, mod Module) {
	t.Helper()
	if mod.Name() != "mock" {
		t.Skip("needs the mock interpreter")
	}
}

func TestNewExecutor(t *testing.T) {
	exec, err := New()
	require.NoError(t, err)
	assert.NoError(t, exec.Close())
}

func TestExecutorCloseIdempotent(t *testing.T) {
	exec, err := New()
	require.NoError(t, err)

	require.NoError(t, exec.Close())
	assert.NoError(t, exec.Close())
}

func TestNewSessionAfterClose(t *testing.T) {
	exec, err := New()
	require.NoError(t, err)
	require.NoError(t, exec.Close())

	mod := &fileModule{name: "closed", binary: []byte("unused"), args: func(string) []string { return nil }}
	_, err = exec.NewSession(context.Background(), mod)
	assert.ErrorIs(t, err, ErrExecutorClosed)
}

func TestCompileInvalidModule(t *testing.T) {
	exec, err := New()
	require.NoError(t, err)
	defer exec.Close()

	mod := &fileModule{name: "garbage", binary: []byte("not wasm"), args: func(string) []string { return nil }}
	_, err = exec.NewSession(context.Background(), mod)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile garbage")
}

func TestPrecompileInvalidModule(t *testing.T) {
	mod := &fileModule{name: "garbage", binary: []byte("not wasm"), args: func(string) []string { return nil }}
	_, err := New(WithPrecompile(mod))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precompile garbage")
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()

	exec, err := New(WithDiskCache(dir))
	require.NoError(t, err)
	assert.NoError(t, exec.Close())
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/tclbridge", defaultCacheDir())
}

func TestFactoryPropagatesError(t *testing.T) {
	exec, err := New()
	require.NoError(t, err)
	require.NoError(t, exec.Close())

	mod := &fileModule{name: "closed", binary: []byte("unused"), args: func(string) []string { return nil }}
	interp, err := exec.Factory(mod).NewInterp(context.Background())
	assert.ErrorIs(t, err, ErrExecutorClosed)
	assert.Nil(t, interp)
}

func TestSharedTestExecutor(t *testing.T) {
	a, err := GetTestExecutor()
	require.NoError(t, err)
	b, err := GetTestExecutor()
	require.NoError(t, err)
	assert.Same(t, a, b)

	CloseTestExecutor()
	c, err := GetTestExecutor()
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}
