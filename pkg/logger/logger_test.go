package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draino.log")

	l, err := New(Config{Level: "debug", Format: "json", OutputFile: path})
	require.NoError(t, err)

	l.Debug("hello")
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "DEBUG", line["level"])
	require.Equal(t, ServiceName, line["service"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draino.log")

	l, err := New(Config{Level: "chatty", OutputFile: path})
	require.NoError(t, err)

	l.Debug("dropped")
	l.Info("kept")
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "dropped")
	require.Contains(t, string(raw), "kept")
}

func TestNew_RefusesStdout(t *testing.T) {
	_, err := New(Config{OutputFile: "stdout"})
	require.Error(t, err)
}

func TestNew_Discard(t *testing.T) {
	l, err := New(Config{OutputFile: "discard", Format: "console"})
	require.NoError(t, err)
	l.Info("nowhere")
}
