package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats accepted by InitLogger.
const (
	FormatJSON  = "json"
	FormatHuman = "human"
)

// InitLogger initializes the global zerolog logger with the given level
// and output format. Logs go to stderr so command results on stdout stay
// clean.
func InitLogger(level, format string) error {
	return initLogger(os.Stderr, level, format)
}

func initLogger(out io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(out).With().Timestamp().Logger()

	switch strings.ToLower(format) {
	case FormatHuman, "console", "":
		log.Logger = base.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
		})
	case FormatJSON:
		log.Logger = base
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	zerolog.SetGlobalLevel(lvl)
	return nil
}

// ParseLevel maps a level name to a zerolog level. An empty name is info.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// LogRequest logs a script received by the server.
func LogRequest(requestID, clientIP, mode, script string) {
	log.Info().
		Str("event", "request_received").
		Str("request_id", requestID).
		Str("client_ip", clientIP).
		Str("mode", mode).
		Int("script_bytes", len(script)).
		Msg("received script")
}

// LogResponse logs the outcome of a server request.
func LogResponse(requestID, clientIP, mode string, ok bool, duration time.Duration) {
	ev := log.Info()
	if !ok {
		ev = log.Warn()
	}
	ev.Str("event", "response_sent").
		Str("request_id", requestID).
		Str("client_ip", clientIP).
		Str("mode", mode).
		Bool("ok", ok).
		Dur("duration", duration).
		Msg("sent response")
}
