package utils

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("agent@example.com"))
	assert.Error(t, ValidateEmail("agent@"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateBaseURL(t *testing.T) {
	assert.NoError(t, ValidateBaseURL("https://acme.zendesk.com"))
	assert.NoError(t, ValidateBaseURL("http://localhost:8081"))
	assert.Error(t, ValidateBaseURL("acme.zendesk.com"))
	assert.Error(t, ValidateBaseURL("ftp://acme.zendesk.com"))
	assert.Error(t, ValidateBaseURL("https://acme.zendesk.com?x=1"))
}

func TestFields(t *testing.T) {
	fields := Fields("request_id", "1001", 42, "dropped", "error", errors.New("boom"), "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "request_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
	assert.Equal(t, zapcore.ErrorType, fields[1].Type)
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewKVLogger(zap.New(core))

	l.Debug("hidden")
	l.Info("Request loaded", "request_id", "1001")
	l.Warn("Rules unavailable", "error", errors.New("locked"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Request loaded", entries[0].Message)
	assert.Equal(t, "1001", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, err := NewLogger(LoggerConfig{Level: "bogus", OutputPath: path, Format: "json"})
	require.NoError(t, err)
	logger.Info("started")
	require.NoError(t, logger.Sync())
	assert.FileExists(t, path)
}
