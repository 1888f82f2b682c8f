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
)

const (
	// Mode constants
	ModeBatch  = "batch"
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Cache key constants
	CacheKeyMtime   = "mtime"
	CacheKeyContent = "content"

	// Default values
	DefaultPort          = 8080
	DefaultHost          = "127.0.0.1"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultMaxFileSize   = 100 * 1024 * 1024 // 100MB
	DefaultInputDir      = "syllabuses"
	DefaultOutputDir     = "output"
	DefaultManifestName  = "manifest.db"
	DefaultWatchDebounce = 2 * time.Second

	// EnvPrefix prefixes every environment variable, e.g. SYLLABUS_INPUT.
	EnvPrefix = "SYLLABUS"
)

// ErrVersionRequested is returned by LoadFromFlags when --version is given.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the syllabus extractor
type Config struct {
	// Run mode and server configuration
	Mode string // "batch", "stdio" or "server"
	Host string
	Port int

	// Pipeline configuration
	InputDir      string
	OutputDir     string
	ManifestPath  string // empty selects DefaultManifestName inside OutputDir
	Workers       int    // zero selects runtime.NumCPU()
	Force         bool
	CacheKey      string
	Watch         bool
	WatchDebounce time.Duration
	MaxFileSize   int64 // Maximum PDF file size in bytes

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	LogFormat  string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:          ModeBatch,
		Host:          DefaultHost,
		Port:          DefaultPort,
		InputDir:      DefaultInputDir,
		OutputDir:     DefaultOutputDir,
		CacheKey:      CacheKeyMtime,
		WatchDebounce: DefaultWatchDebounce,
		MaxFileSize:   DefaultMaxFileSize,
		Version:       "1.0.0",
		ServerName:    "syllabus-extractor",
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
	}
}

// LoadFromFlags parses command line flags and environment variables and
// returns a validated configuration.
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
	for _, p := range []*string{&cfg.InputDir, &cfg.OutputDir, &cfg.ManifestPath} {
		if *p != "" {
			if expanded, err := filepath.Abs(*p); err == nil {
				*p = expanded
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagNames lists every flag bound to viper.
var flagNames = []string{
	"mode", "host", "port", "input", "output", "manifest", "workers", "force",
	"cache-key", "watch", "debounce", "maxfilesize", "loglevel", "logformat",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("input", cfg.InputDir)
	viper.SetDefault("output", cfg.OutputDir)
	viper.SetDefault("manifest", cfg.ManifestPath)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("force", cfg.Force)
	viper.SetDefault("cache-key", cfg.CacheKey)
	viper.SetDefault("watch", cfg.Watch)
	viper.SetDefault("debounce", cfg.WatchDebounce)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("logformat", cfg.LogFormat)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'batch' to process the input directory, 'stdio' for MCP standard I/O, "+
		"'server' for HTTP + MCP SSE")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("input", cfg.InputDir, "Directory containing syllabus PDF files")
	pflag.String("output", cfg.OutputDir, "Directory receiving the JSON artifacts")
	pflag.String("manifest", cfg.ManifestPath, "Processing manifest database (default <output>/"+DefaultManifestName+")")
	pflag.Int("workers", cfg.Workers, "Documents parsed concurrently (0 = number of CPUs)")
	pflag.Bool("force", cfg.Force, "Reprocess documents even when their artifact is up to date")
	pflag.String("cache-key", cfg.CacheKey, "Incremental cache key: 'mtime' or 'content'")
	pflag.Bool("watch", cfg.Watch, "Keep running and reprocess when PDFs change (batch mode only)")
	pflag.Duration("debounce", cfg.WatchDebounce, "Quiet period before a watched change triggers a run")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("logformat", cfg.LogFormat, "Log format (json, text)")
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
		fmt.Fprintf(os.Stderr, "\nSyllabus Extractor - turns tabular syllabus PDFs into learning objective records\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input=./syllabuses --output=./output   # one batch run\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --watch --cache-key=content               # reprocess on change\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio                              # MCP over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081  # HTTP API + MCP SSE\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every option can be set as %s_<OPTION>, e.g. %s_INPUT, %s_CACHE_KEY\n",
			EnvPrefix, EnvPrefix, EnvPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.InputDir = viper.GetString("input")
	cfg.OutputDir = viper.GetString("output")
	cfg.ManifestPath = viper.GetString("manifest")
	cfg.Workers = viper.GetInt("workers")
	cfg.Force = viper.GetBool("force")
	cfg.CacheKey = viper.GetString("cache-key")
	cfg.Watch = viper.GetBool("watch")
	cfg.WatchDebounce = viper.GetDuration("debounce")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.LogFormat = viper.GetString("logformat")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeBatch, ModeStdio, ModeServer:
	default:
		return errors.New("mode must be one of 'batch', 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.InputDir == "" {
		return errors.New("input directory cannot be empty")
	}
	if c.OutputDir == "" {
		return errors.New("output directory cannot be empty")
	}

	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}

	if c.CacheKey != CacheKeyMtime && c.CacheKey != CacheKeyContent {
		return fmt.Errorf("invalid cache key: %s (must be one of: mtime, content)", c.CacheKey)
	}

	if c.Watch {
		if c.Mode != ModeBatch {
			return errors.New("watch is only supported in batch mode")
		}
		if c.WatchDebounce <= 0 {
			return errors.New("watch debounce must be positive")
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log format: %s (must be one of: json, text)", c.LogFormat)
	}

	return nil
}

// ManifestFile returns the manifest database path.
func (c *Config) ManifestFile() string {
	if c.ManifestPath != "" {
		return c.ManifestPath
	}
	return filepath.Join(c.OutputDir, DefaultManifestName)
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BaseURL returns the URL clients use to reach server mode.
func (c *Config) BaseURL() string {
	return "http://" + c.Address()
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Input: %s, Output: %s, Manifest: %s, Workers: %d, Force: %t, CacheKey: %s, "+
		"Watch: %t, Host: %s, Port: %d, LogLevel: %s, LogFormat: %s, MaxFileSize: %d}",
		c.Mode, c.InputDir, c.OutputDir, c.ManifestFile(), c.Workers, c.Force, c.CacheKey,
		c.Watch, c.Host, c.Port, c.LogLevel, c.LogFormat, c.MaxFileSize)
}

// IsBatchMode returns true if the tool runs the batch pipeline directly
func (c *Config) IsBatchMode() bool {
	return c.Mode == ModeBatch
}

// IsServerMode returns true if the tool serves HTTP and MCP over SSE
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the tool serves MCP over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
