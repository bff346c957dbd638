package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/a3tai/mcp-pdf-covenants/internal/api"
	"github.com/a3tai/mcp-pdf-covenants/internal/config"
	"github.com/a3tai/mcp-pdf-covenants/internal/mcp"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// newLogger configures logging based on the server mode. In stdio mode
// stdout carries the protocol, so logs go to stderr and only warnings
// are kept unless debug is enabled.
func newLogger(cfg *config.Config, stdout, stderr io.Writer) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	if cfg.IsStdioMode() {
		if !cfg.IsDebug() && level < slog.LevelWarn {
			level = slog.LevelWarn
		}
		return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level, AddSource: cfg.IsDebug()}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// run builds the pipeline and serves until ctx is done. Server mode serves
// the REST API and the MCP endpoint over HTTP; stdio mode serves MCP only.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	pdfService, err := pdf.NewService(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create PDF service: %w", err)
	}
	defer pdfService.Close()

	server, err := mcp.NewServer(cfg, pdfService, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if cfg.IsServerMode() {
		return api.NewServer(pdfService, server.HTTPHandler(), log, cfg).Run(ctx)
	}
	return server.Run(ctx)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	log := newLogger(cfg, os.Stdout, os.Stderr)
	log.Debug("starting", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		stop()
		os.Exit(1)
	}
	log.Info("server stopped")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Covenants\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
