package server

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	anetserver "github.com/andrei-cloud/anet/server"
	"github.com/caffeineduck/tclbridge/bridge"
	"github.com/caffeineduck/tclbridge/internal/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Request mode bytes.
const (
	ModeSync    = 'S'
	ModeAsync   = 'A'
	ModeVersion = 'V'
)

// Response status bytes.
const (
	StatusOK    = 'K'
	StatusError = 'E'
)

// logAdapter implements the anet logger using zerolog.
type logAdapter struct{}

func (l logAdapter) Print(v ...any) {
	log.Info().Msg(fmt.Sprint(v...))
}

func (l logAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Infof(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Warnf(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

func (l logAdapter) Errorf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}

// Options tunes a Server.
type Options struct {
	// ExecTimeout bounds each request. Zero means no limit.
	ExecTimeout time.Duration
	MaxConns    int
}

// Server exposes a Bridge over TCP. Each request is one mode byte followed
// by the script; each response is a status byte followed by the result or
// the error message.
type Server struct {
	address     string
	srv         *anetserver.Server
	bridge      *bridge.Bridge
	opts        Options
	activeConns int32
}

// NewServer configures and returns the server instance.
func NewServer(address string, b *bridge.Bridge, opts Options) (*Server, error) {
	if b == nil {
		return nil, errors.New("server setup failed: nil bridge")
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 100
	}

	cfg := &anetserver.ServerConfig{
		MaxConns:        opts.MaxConns,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     0 * time.Second, // disable idle connection closure.
		ShutdownTimeout: 5 * time.Second,
		Logger:          logAdapter{},
	}

	s := &Server{
		address: address,
		bridge:  b,
		opts:    opts,
	}
	srv, err := anetserver.NewServer(address, anetserver.HandlerFunc(s.handle), cfg)
	if err != nil {
		return nil, fmt.Errorf("server setup failed: %w", err)
	}
	s.srv = srv

	return s, nil
}

// Start begins listening for connections.
func (s *Server) Start() error {
	log.Info().Str("address", s.address).Msg("server started")
	return s.srv.Start()
}

// Stop gracefully shuts down the server. The bridge is left open.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

func (s *Server) handle(conn *anetserver.ServerConn, data []byte) ([]byte, error) {
	client := conn.Conn.RemoteAddr().String()
	atomic.AddInt32(&s.activeConns, 1)
	defer atomic.AddInt32(&s.activeConns, -1)

	if len(data) < 1 {
		log.Error().Str("client_ip", client).Msg("malformed request")
		return nil, errors.New("malformed request")
	}

	id := uuid.NewString()
	mode, script := data[0], string(data[1:])
	logging.LogRequest(id, client, modeName(mode), script)

	start := time.Now()
	value, err := s.Execute(context.Background(), mode, script)

	logging.LogResponse(id, client, modeName(mode), err == nil, time.Since(start))
	log.Debug().
		Str("event", "handle_done").
		Str("request_id", id).
		Int("active_connections", int(atomic.LoadInt32(&s.activeConns))).
		Msg("completed request handling")

	if err != nil {
		return append([]byte{StatusError}, err.Error()...), nil
	}
	return append([]byte{StatusOK}, value...), nil
}

// Execute runs one request against the bridge.
func (s *Server) Execute(ctx context.Context, mode byte, script string) (string, error) {
	if s.opts.ExecTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ExecTimeout)
		defer cancel()
	}

	switch mode {
	case ModeSync:
		res, err := s.bridge.CmdSync(ctx, script)
		if err != nil {
			return "", err
		}
		return res.String(), nil

	case ModeAsync:
		o := <-s.bridge.Cmd(ctx, script)
		if o.Err != nil {
			return "", o.Err
		}
		return o.Result.String(), nil

	case ModeVersion:
		return s.bridge.Version(ctx)
	}

	return "", fmt.Errorf("unknown mode %q", mode)
}

func modeName(mode byte) string {
	switch mode {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	case ModeVersion:
		return "version"
	}
	return "unknown"
}
