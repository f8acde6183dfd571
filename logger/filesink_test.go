package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileSinkNoSentinelIsNoop(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "diag.log")
	sentinel := filepath.Join(dir, "ENABLE_DIAG")

	sink := NewFileSink(logPath, sentinel)
	sink.Info("should not be written")

	_, err := os.Stat(logPath)
	require.True(os.IsNotExist(err))
}

func TestFileSinkWritesWhenSentinelPresent(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "diag.log")
	sentinel := filepath.Join(dir, "ENABLE_DIAG")

	require.NoError(os.WriteFile(sentinel, nil, 0o644))

	sink := NewFileSink(logPath, sentinel)
	sink.clock = func() time.Time { return time.Unix(0, 0) }
	sink.Info("hello", "seq", 42)

	data, err := os.ReadFile(logPath)
	require.NoError(err)
	require.Contains(string(data), "[INFO] hello")
	require.Contains(string(data), "seq=42")
}

func TestFileSinkStopsWritingWhenSentinelRemoved(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "diag.log")
	sentinel := filepath.Join(dir, "ENABLE_DIAG")
	require.NoError(os.WriteFile(sentinel, nil, 0o644))

	sink := NewFileSink(logPath, sentinel)
	sink.Info("first")

	require.NoError(os.Remove(sentinel))
	sink.Info("second")

	data, err := os.ReadFile(logPath)
	require.NoError(err)
	require.Contains(string(data), "first")
	require.NotContains(string(data), "second")
}

func TestFileSinkLogFrameWritesHexBytes(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "diag.log")
	sentinel := filepath.Join(dir, "ENABLE_DIAG")
	require.NoError(os.WriteFile(sentinel, nil, 0o644))

	sink := NewFileSink(logPath, sentinel)
	sink.LogFrame("recv", []byte("GET1payload"), 4)

	data, err := os.ReadFile(logPath)
	require.NoError(err)
	require.Contains(string(data), "tag=recv")
	require.Contains(string(data), fmt.Sprintf("bytes=%x", []byte("GET1")))
	require.NotContains(string(data), "payload")
}

func TestFileSinkWithAddsFields(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "diag.log")
	sentinel := filepath.Join(dir, "ENABLE_DIAG")
	require.NoError(os.WriteFile(sentinel, nil, 0o644))

	sink := NewFileSink(logPath, sentinel).With("component", "transport")
	sink.Warn("reconnect scheduled")

	data, err := os.ReadFile(logPath)
	require.NoError(err)
	require.Contains(string(data), "component=transport")
}
