package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caffeineduck/tclbridge/bridge"
	"github.com/caffeineduck/tclbridge/executor"
	"github.com/caffeineduck/tclbridge/internal/config"
	"github.com/caffeineduck/tclbridge/internal/logging"
	"github.com/caffeineduck/tclbridge/tclsh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tclbridge",
	Short: "Run Tcl commands from Go",
	Long: `tclbridge - Evaluate Tcl scripts in a WebAssembly-hosted tclsh.

Commands run either on one shared interpreter whose state persists between
commands (exec, repl, serve S requests) or on a fresh isolated interpreter
per command (run, serve A requests).

The interpreter is a WASI build of tclsh, given with --module or the
interpreter.module config key.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./tclbridge.yaml, ~/.tclbridge/tclbridge.yaml)")
	rootCmd.PersistentFlags().String("module", "", "Path to WASI tclsh module")
	rootCmd.PersistentFlags().String("library", "", "Host directory holding the Tcl script library")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: human, json")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("module") {
		c.Interpreter.Module, _ = flags.GetString("module")
	}
	if flags.Changed("library") {
		c.Interpreter.Library, _ = flags.GetString("library")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		c.Interpreter.DiskCache = false
	}
	if flags.Changed("log-level") {
		c.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		c.Log.Format, _ = flags.GetString("log-format")
	}

	if err := logging.InitLogger(c.Log.Level, c.Log.Format); err != nil {
		return err
	}

	cfg = c
	return nil
}

// interpFactory builds the interpreter factory the commands run on. The
// returned cleanup releases it. Tests replace it.
var interpFactory = newExecutorFactory

func newExecutorFactory(c *config.Config, output io.Writer) (bridge.Factory, func() error, error) {
	if c.Interpreter.Module == "" {
		return nil, nil, errors.New("no interpreter module: use --module or set interpreter.module")
	}

	mod, err := tclsh.Open(c.Interpreter.Module)
	if err != nil {
		return nil, nil, err
	}

	mounts, err := c.ParseMounts()
	if err != nil {
		return nil, nil, err
	}

	execOpts := []executor.ExecutorOption{
		executor.WithPrecompile(mod),
		executor.WithLogger(log.Logger),
	}
	if c.Interpreter.DiskCache {
		execOpts = append(execOpts, executor.WithDiskCache(c.Interpreter.CacheDir))
	}
	if c.Interpreter.MemoryLimitPages > 0 {
		execOpts = append(execOpts, executor.WithMemoryLimit(c.Interpreter.MemoryLimitPages))
	}

	exec, err := executor.New(execOpts...)
	if err != nil {
		return nil, nil, err
	}

	sessionOpts := []executor.SessionOption{executor.WithOutput(output)}
	if c.Interpreter.StartTimeout > 0 {
		sessionOpts = append(sessionOpts, executor.WithStartTimeout(c.Interpreter.StartTimeout))
	}
	if c.Interpreter.Library != "" {
		sessionOpts = append(sessionOpts, executor.WithLibrary(c.Interpreter.Library))
	}
	for _, m := range mounts {
		sessionOpts = append(sessionOpts, executor.WithMount(m.Host, m.Guest))
	}

	return exec.Factory(mod, sessionOpts...), exec.Close, nil
}

// openBridge creates the bridge for one command invocation. Script output
// written with puts goes to the command's stdout.
func openBridge(cmd *cobra.Command) (*bridge.Bridge, func(), error) {
	factory, release, err := interpFactory(cfg, cmd.OutOrStdout())
	if err != nil {
		return nil, nil, err
	}

	b, err := bridge.New(factory, bridge.WithLogger(log.Logger))
	if err != nil {
		release()
		return nil, nil, err
	}

	return b, func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("close bridge")
		}
		if err := release(); err != nil {
			log.Warn().Err(err).Msg("close executor")
		}
	}, nil
}

// commandContext applies the exec timeout, from --timeout or exec.timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout := cfg.Exec.Timeout
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		timeout, _ = cmd.Flags().GetDuration("timeout")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// readSource returns the script from -c, a file argument or stdin.
func readSource(cmd *cobra.Command, args []string) (string, error) {
	if code, _ := cmd.Flags().GetString("code"); code != "" {
		return code, nil
	}
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("no script: use -c, a file argument or stdin")
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no script: use -c, a file argument or stdin")
	}
	return string(data), nil
}
