package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestIsValidLevel(t *testing.T) {
	assert.True(t, IsValidLevel("DEBUG"))
	assert.True(t, IsValidLevel("info"))
	assert.True(t, IsValidLevel("Warning"))
	assert.True(t, IsValidLevel("ERROR"))
	assert.False(t, IsValidLevel("TRACE"))
	assert.False(t, IsValidLevel(""))
}

func TestSetLevel_ConcurrentSafe(t *testing.T) {
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			SetLevel(slog.LevelDebug)
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		_ = Current()
	}
	<-done
	assert.NotNil(t, Current())
}

func TestSetOutputFile_WritesToFile(t *testing.T) {
	defer func() { require.NoError(t, SetOutputFile("")) }()

	path := filepath.Join(t.TempDir(), "smtp_agent.log")
	require.NoError(t, SetOutputFile(path))

	Current().Info("hello from test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestSetOutputFile_EmptyPathRestoresStdout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smtp_agent.log")
	require.NoError(t, SetOutputFile(path))
	require.NoError(t, SetOutputFile(""))

	mu.RLock()
	w := output
	mu.RUnlock()
	assert.Equal(t, os.Stdout, w)
}
