package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort             = 8080
	DefaultHost             = "127.0.0.1"
	DefaultLogLevel         = "info"
	DefaultMaxFileSize      = 100 * 1024 * 1024 // 100MB
	DefaultExtractorTimeout = 30 * time.Second

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix prefixes every environment variable
	EnvPrefix = "MCP_COVENANTS"
)

// Config holds all configuration for the covenant MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes

	// Extraction configuration
	Workers          int           // extraction pool size, 0 for one per CPU
	ExtractorTimeout time.Duration // deadline of a single extractor run
	Classification   string        // extractor set tag, or "auto" to classify
	RulesFile        string        // extra classification rules (JSON)

	// Persistence
	DatabaseURL          string // Postgres DSN of the bundle archive, empty disables it
	PersistBookmarkState bool   // write bookmark flags back into the PDF
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:             ModeStdio, // Default to stdio mode for MCP compatibility
		Host:             DefaultHost,
		Port:             DefaultPort,
		PDFDirectory:     currentDir,
		Version:          "1.0.0",
		ServerName:       "mcp-pdf-covenants",
		LogLevel:         DefaultLogLevel,
		MaxFileSize:      DefaultMaxFileSize,
		ExtractorTimeout: DefaultExtractorTimeout,
		Classification:   string(extract.ClassAuto),
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagNames lists every flag bound into viper
var flagNames = []string{
	"mode", "host", "port", "dir", "loglevel", "maxfilesize",
	"workers", "timeout", "classification", "rules", "database-url", "persist-bookmarks",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("timeout", cfg.ExtractorTimeout)
	viper.SetDefault("classification", cfg.Classification)
	viper.SetDefault("rules", cfg.RulesFile)
	viper.SetDefault("database-url", cfg.DatabaseURL)
	viper.SetDefault("persist-bookmarks", cfg.PersistBookmarkState)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("workers", cfg.Workers, "Concurrent extractors (0 = one per CPU)")
	pflag.Duration("timeout", cfg.ExtractorTimeout, "Deadline of a single extractor")
	pflag.String("classification", cfg.Classification,
		"Extractor set: auto, credit_agreement, indenture, loan_agreement or unknown")
	pflag.String("rules", cfg.RulesFile, "JSON file with additional classification rules")
	pflag.String("database-url", cfg.DatabaseURL, "Postgres DSN for archiving bundles (optional)")
	pflag.Bool("persist-bookmarks", cfg.PersistBookmarkState, "Write bookmark flags into the PDF metadata")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range flagNames {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Covenants - A Model Context Protocol server that structures loan "+
			"agreements and extracts covenant clauses\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/agreements               "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/agreements # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --classification=indenture --timeout=10s # fixed extractor set\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, name := range flagNames {
			fmt.Fprintf(os.Stderr, "  %s\n", EnvName(name))
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.Workers = viper.GetInt("workers")
	cfg.ExtractorTimeout = viper.GetDuration("timeout")
	cfg.Classification = viper.GetString("classification")
	cfg.RulesFile = viper.GetString("rules")
	cfg.DatabaseURL = viper.GetString("database-url")
	cfg.PersistBookmarkState = viper.GetBool("persist-bookmarks")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate PDF directory
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	if c.ExtractorTimeout <= 0 {
		return errors.New("extractor timeout must be positive")
	}
	if _, err := extract.ParseClassification(c.Classification); err != nil {
		return fmt.Errorf("invalid classification: %w", err)
	}
	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); err != nil {
			return fmt.Errorf("cannot access rules file %s: %w", c.RulesFile, err)
		}
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// ArchiveEnabled reports whether bundles are archived in Postgres
func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseURL != ""
}

// String returns a string representation of the configuration. The
// database URL is left out.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Workers: %d, ExtractorTimeout: %s, Classification: %s, Archive: %t}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.Workers, c.ExtractorTimeout, c.Classification, c.ArchiveEnabled())
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

var envKeyReplacer = strings.NewReplacer("-", "_")

// EnvName returns the environment variable read for a flag.
func EnvName(flag string) string {
	return EnvPrefix + "_" + strings.ToUpper(envKeyReplacer.Replace(flag))
}
