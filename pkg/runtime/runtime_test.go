package runtime

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-project/agentic/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestSetupLoggingToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentic.log")
	file, err := setupLogging(config.ObservabilityConfig{LogLevel: "debug", LogFile: path})
	require.NoError(t, err)
	require.NotNil(t, file)
	defer func() { _ = file.Close() }()

	slog.Debug("logging wired", "check", true)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "logging wired")
}

func TestSetupLoggingBadFile(t *testing.T) {
	_, err := setupLogging(config.ObservabilityConfig{
		LogFile: filepath.Join(t.TempDir(), "missing", "nested", "agentic.log"),
	})
	require.Error(t, err)
}

func TestNewRuntimeWithoutStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workspace.DefaultPath = t.TempDir()

	rt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.LLM)
	assert.NotNil(t, rt.Orchestrator)
	assert.Nil(t, rt.Store)
}
