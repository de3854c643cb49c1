package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	t.Helper()

	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestInitLoggerJSON(t *testing.T) {
	restoreLogger(t)

	var buf bytes.Buffer
	require.NoError(t, initLogger(&buf, "debug", FormatJSON))

	LogRequest("req-1", "127.0.0.1", "sync", "set x 5")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request_received", entry["event"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "sync", entry["mode"])
	assert.EqualValues(t, 7, entry["script_bytes"])
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestInitLoggerHuman(t *testing.T) {
	restoreLogger(t)

	var buf bytes.Buffer
	require.NoError(t, initLogger(&buf, "info", FormatHuman))

	LogResponse("req-2", "127.0.0.1", "async", false, time.Millisecond)
	assert.Contains(t, buf.String(), "sent response")
	assert.Contains(t, buf.String(), "req-2")
}

func TestInitLoggerLevelFilters(t *testing.T) {
	restoreLogger(t)

	var buf bytes.Buffer
	require.NoError(t, initLogger(&buf, "warn", FormatJSON))

	LogResponse("req-3", "127.0.0.1", "sync", true, time.Millisecond)
	assert.Empty(t, buf.String())

	LogResponse("req-4", "127.0.0.1", "sync", false, time.Millisecond)
	assert.Contains(t, buf.String(), "req-4")
}

func TestInitLoggerErrors(t *testing.T) {
	restoreLogger(t)

	var buf bytes.Buffer
	assert.Error(t, initLogger(&buf, "loud", FormatJSON))
	assert.Error(t, initLogger(&buf, "info", "xml"))
}
