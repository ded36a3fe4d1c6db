package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rpggio/caseload/internal/domain/tier"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel(""))
	require.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestLogFileWriter_KeepsNewestBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "caseload.log")
	w, file, err := newLogFileWriter(path)
	require.NoError(t, err)
	defer file.Close()
	w.maxSize = 16
	w.keepSize = 8

	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = w.Write([]byte("abcdefghij"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cdefghij", string(data))

	_, err = w.Write([]byte("XY"))
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cdefghijXY", string(data))
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	printCatalog(&buf, tier.Default())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "TIER")
	require.Contains(t, lines[1], "beta")
	require.Contains(t, lines[1], "$49.00")
	require.Contains(t, lines[1], "$490.00")
	require.Contains(t, lines[3], "theta")
}

func TestNewAPIKey(t *testing.T) {
	a, b := newAPIKey(), newAPIKey()
	require.True(t, strings.HasPrefix(a, "ck_"))
	require.Len(t, a, 35)
	require.NotEqual(t, a, b)
}

func TestEnsureDBDir(t *testing.T) {
	require.NoError(t, ensureDBDir(":memory:"))
	path := filepath.Join(t.TempDir(), "nested", "caseload.db")
	require.NoError(t, ensureDBDir(path))
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
