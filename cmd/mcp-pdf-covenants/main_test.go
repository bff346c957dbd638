package main

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/config"
)

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	t.Cleanup(func() { version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit })

	version = "1.2.3"
	buildTime = "2026-01-15_10:30:00"
	gitCommit = "abc123"

	var buf bytes.Buffer
	printVersion(&buf)
	output := buf.String()

	for _, expected := range []string{
		"MCP PDF Covenants",
		"Version: 1.2.3",
		"Build Time: 2026-01-15_10:30:00",
		"Git Commit: abc123",
		"Built with: " + runtime.Version(),
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing %q\nActual output:\n%s", expected, output)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		level      string
		wantStdout bool
		wantStderr bool
	}{
		{name: "stdio keeps protocol stream clean", mode: config.ModeStdio, level: "info", wantStderr: false},
		{name: "stdio debug logs to stderr", mode: config.ModeStdio, level: "debug", wantStderr: true},
		{name: "server logs json to stdout", mode: config.ModeServer, level: "info", wantStdout: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Mode = tt.mode
			cfg.LogLevel = tt.level

			var stdout, stderr bytes.Buffer
			newLogger(cfg, &stdout, &stderr).Info("hello", "k", "v")

			assert.Equal(t, tt.wantStdout, stdout.Len() > 0, stdout.String())
			assert.Equal(t, tt.wantStderr, stderr.Len() > 0, stderr.String())
			if tt.wantStdout {
				assert.Contains(t, stdout.String(), `"msg":"hello"`)
			}
		})
	}
}

func TestRunServerModeStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeServer
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.PDFDirectory = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, slog.New(slog.DiscardHandler)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestRunRejectsBadClassification(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	cfg.Classification = "lease"

	err := run(context.Background(), cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
