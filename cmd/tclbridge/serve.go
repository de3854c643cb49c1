package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/caffeineduck/tclbridge/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start TCP server for remote commands",
	Long: `Start a TCP server that evaluates Tcl scripts for remote callers.

Each request is one mode byte followed by the script:
  S   evaluate on the shared interpreter (state persists)
  A   evaluate on a fresh isolated interpreter
  V   report the interpreter's Tcl version

Each response is K followed by the result, or E followed by the error
message.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "Host to listen on (default: server.host)")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: server.port)")
	serveCmd.Flags().Duration("timeout", 0, "Per-request timeout (default: exec.timeout)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Exec.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	b, closeBridge, err := openBridge(cmd)
	if err != nil {
		return err
	}
	defer closeBridge()

	srv, err := server.NewServer(cfg.Address(), b, server.Options{ExecTimeout: cfg.Exec.Timeout})
	if err != nil {
		return err
	}

	// Ensure the stop channel is closed only once.
	var stopOnce sync.Once
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		sig := <-stopChan
		log.Info().Msgf("signal %v received, shutting down server", sig)

		stopOnce.Do(func() {
			if err := srv.Stop(); err != nil {
				log.Error().Err(err).Msg("failed to stop server")
			}
			close(done)
		})
	}()

	if err := srv.Start(); err != nil {
		return err
	}

	<-done
	log.Info().Msg("server stopped gracefully")
	return nil
}
