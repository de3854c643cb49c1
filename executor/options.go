package executor

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Module // Modules to precompile at startup
	memoryLimitPages uint32   // Max memory pages (each page = 64KB), 0 = default (4GB)
	logger           zerolog.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		diskCache:        false,
		memoryLimitPages: 0, // 0 means use wazero default (65536 pages = 4GB)
		logger:           log.Logger,
	}
}

// WithDiskCache enables persistent compilation cache for faster CLI startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/tclbridge or XDG_CACHE_HOME/tclbridge.
//
// Examples:
//
//	executor.New(executor.WithDiskCache())            // default dir
//	executor.New(executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the specified modules at Executor creation time.
// This moves the compilation cost to startup rather than first session.
func WithPrecompile(mods ...Module) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = mods
	}
}

// WithMemoryLimit sets the maximum memory available to each interpreter instance.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//   - WithMemoryLimit(4096) = 256MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithLogger sets the logger for runtime and session events.
func WithLogger(l zerolog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = l
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	startTimeout time.Duration
	library      string
	mounts       []mount
	env          map[string]string
	output       io.Writer
}

type mount struct {
	hostPath  string
	guestPath string
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		startTimeout: 30 * time.Second,
		env:          make(map[string]string),
		output:       io.Discard,
	}
}

// WithStartTimeout bounds how long NewSession waits for the interpreter
// to report ready.
func WithStartTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.startTimeout = d
	}
}

// WithLibrary mounts the Tcl script library read-only at /usr/lib/tcl and
// points TCL_LIBRARY at it. Most WASI tclsh builds need this to find
// init.tcl.
func WithLibrary(hostDir string) SessionOption {
	return func(c *sessionConfig) {
		c.library = hostDir
	}
}

// WithMount exposes a host directory read-only inside the interpreter,
// e.g. for source or package require.
//
//	executor.WithMount("./lib/mypkg", "/pkg/mypkg")
func WithMount(hostDir, guestDir string) SessionOption {
	return func(c *sessionConfig) {
		c.mounts = append(c.mounts, mount{hostPath: hostDir, guestPath: guestDir})
	}
}

// WithEnv sets an environment variable visible to the interpreter.
func WithEnv(key, value string) SessionOption {
	return func(c *sessionConfig) {
		c.env[key] = value
	}
}

// WithOutput receives whatever scripts write to stdout with puts.
func WithOutput(w io.Writer) SessionOption {
	return func(c *sessionConfig) {
		c.output = w
	}
}
