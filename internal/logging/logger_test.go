package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json format", config: &Config{Level: LevelInfo, Format: "json", Output: &bytes.Buffer{}}},
		{name: "text format", config: &Config{Level: LevelDebug, Format: "text", Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			assert.NotNil(t, logger)
		})
	}
}

func TestLoggerWithNodeAndTopic(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true, NoColor: true}
	logger := NewLogger(config)

	nodeLogger := logger.WithNode("node_00")
	nodeLogger.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "node=node_00")

	buf.Reset()
	topicLogger := nodeLogger.WithTopic("app.devices.node_00.state")
	topicLogger.Info("topic message")

	output = buf.String()
	assert.Contains(t, output, "node=node_00")
	assert.Contains(t, output, "topic=app.devices.node_00.state")
}

func TestLoggerWithRequest(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true, NoColor: true}
	logger := NewLogger(config)

	requestLogger := logger.WithRequest("req-123", "read")
	requestLogger.Debug("processing request")

	output := buf.String()
	assert.Contains(t, output, "request_id=req-123")
	assert.Contains(t, output, "op=read")
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true, NoColor: true}
	logger := NewLogger(config)

	errorLogger := logger.WithError(errors.New("test error"))
	errorLogger.Error("operation failed")

	output := buf.String()
	assert.Contains(t, output, "test error")
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "text", Output: &buf, Sync: true, NoColor: true}
	SetDefault(NewLogger(config))

	Debug("debug message", "key", "value")
	output := buf.String()
	assert.True(t, strings.Contains(output, "debug message"))
	assert.Contains(t, output, "key=value")

	buf.Reset()
	Info("info message")
	assert.Contains(t, buf.String(), "info message")

	buf.Reset()
	Warn("warning message")
	assert.Contains(t, buf.String(), "warning message")

	buf.Reset()
	Error("error message")
	assert.Contains(t, buf.String(), "error message")
}
