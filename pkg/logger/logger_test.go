package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			require.NotNil(t, l)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.input), "input=%q", tt.input)
	}
}

func TestLoggerMethods(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	tests := []struct {
		name      string
		log       func()
		wantMsg   string
		wantLevel string
	}{
		{"debug", func() { l.Debug("debug message") }, "debug message", "debug"},
		{"info", func() { l.Info("info message") }, "info message", "info"},
		{"warn", func() { l.Warn("warn message") }, "warn message", "warn"},
		{"error", func() { l.Error("error message") }, "error message", "error"},
		{"infof", func() { l.Infof("skus: %d", 42) }, "skus: 42", "info"},
		{"errorf", func() { l.Errorf("failed: %s", "timeout") }, "failed: timeout", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()
			entry := decode(t, &buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.wantMsg, entry["message"])
		})
	}
}

func TestWithFieldsAndComponent(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	l := NewWithWriter(&buf).
		WithComponent("portfolio.optimizer").
		WithField("scenario_id", "sc-1").
		WithFields(map[string]interface{}{"skus": 3})
	l.Info("Scenario optimized")

	entry := decode(t, &buf)
	assert.Equal(t, "portfolio.optimizer", entry["component"])
	assert.Equal(t, "sc-1", entry["scenario_id"])
	assert.Equal(t, float64(3), entry["skus"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf).WithError(errors.New("database connection failed")).Error("operation failed")

	entry := decode(t, &buf)
	assert.Equal(t, "database connection failed", entry["error"])
	assert.Equal(t, "operation failed", entry["message"])
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.WithComponent("x").Info("discarded")
	})
}
