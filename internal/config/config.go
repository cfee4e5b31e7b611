package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/omofolarin/fill-pdf/internal/cache"
	"github.com/omofolarin/fill-pdf/internal/fetch"
	"github.com/omofolarin/fill-pdf/internal/fill"
	"github.com/omofolarin/fill-pdf/internal/merge"
	"github.com/omofolarin/fill-pdf/internal/model"
)

const (
	// Commands
	CommandFill       = "fill"
	CommandCacheClear = "cache clear"
	CommandServe      = "serve"
	CommandInfo       = "info"

	// Cache stores
	StoreDisk  = "disk"
	StoreRedis = "redis"

	// Default values
	DefaultCacheTTL  = 3600 // seconds
	DefaultLogLevel  = "info"
	DefaultRedisAddr = "localhost:6379"
	DefaultVersion   = "1.0.0"
	DefaultName      = "fill-pdf"

	envPrefix = "FILL_PDF"
)

var (
	// ErrVersionRequested is returned when --version appears on the command line.
	ErrVersionRequested = errors.New("version requested")
	// ErrHelpRequested is returned after usage was printed for --help.
	ErrHelpRequested = errors.New("help requested")
)

// Config holds the settings of one fill-pdf invocation
type Config struct {
	Command string

	// Fill job
	Template     string
	Data         string
	Output       string
	Metadata     string
	KeepFields   bool
	TextOverflow string

	// Template cache
	Cache         bool
	CacheDir      string
	CacheTTL      int // seconds
	CacheRefresh  bool
	CacheStore    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Merge
	MergeBackend string
	BunScript    string
	AssumeYes    bool

	FetchTimeout time.Duration
	MergeTimeout time.Duration

	// MCP server
	WorkingDir string
	ServerName string

	Version  string
	LogLevel string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Command:      CommandFill,
		TextOverflow: string(model.OverflowVisible),
		CacheDir:     cache.DefaultDir(),
		CacheTTL:     DefaultCacheTTL,
		CacheStore:   StoreDisk,
		RedisAddr:    DefaultRedisAddr,
		MergeBackend: merge.BackendPython,
		FetchTimeout: fetch.DefaultTimeout,
		MergeTimeout: fill.DefaultMergeTimeout,
		WorkingDir:   currentDir,
		ServerName:   DefaultName,
		Version:      DefaultVersion,
		LogLevel:     DefaultLogLevel,
	}
}

// Load parses the command line (without the program name) and the
// FILL_PDF_* environment into a validated configuration.
func Load(args []string, stderr io.Writer) (*Config, error) {
	if checkVersionFlag(args) {
		return nil, ErrVersionRequested
	}

	command, rest, err := splitCommand(args)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Command = command

	v := viper.New()
	setupViperEnvironment(v, cfg)

	fs := pflag.NewFlagSet(command, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	defineCommandLineFlags(fs, cfg)
	setupUsageMessage(fs, stderr, command)

	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, ErrHelpRequested
		}
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	populateConfigFromViper(v, cfg)

	if cfg.WorkingDir != "" {
		if abs, err := filepath.Abs(cfg.WorkingDir); err == nil {
			cfg.WorkingDir = abs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func splitCommand(args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, errors.New("a command is required: fill, cache clear, serve or info")
	}

	switch args[0] {
	case CommandFill, CommandServe, CommandInfo:
		return args[0], args[1:], nil
	case "cache":
		if len(args) < 2 || args[1] != "clear" {
			return "", nil, errors.New("unknown cache command, expected 'cache clear'")
		}
		return CommandCacheClear, args[2:], nil
	case "-h", "--help", "help":
		return CommandFill, []string{"--help"}, nil
	}
	return "", nil, fmt.Errorf("unknown command: %s", args[0])
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("template", cfg.Template)
	v.SetDefault("cache-dir", cfg.CacheDir)
	v.SetDefault("cache-ttl", cfg.CacheTTL)
	v.SetDefault("cache-store", cfg.CacheStore)
	v.SetDefault("redis-addr", cfg.RedisAddr)
	v.SetDefault("merge-backend", cfg.MergeBackend)
	v.SetDefault("text-overflow", cfg.TextOverflow)
	v.SetDefault("fetch-timeout", cfg.FetchTimeout)
	v.SetDefault("merge-timeout", cfg.MergeTimeout)
	v.SetDefault("dir", cfg.WorkingDir)
	v.SetDefault("loglevel", cfg.LogLevel)
}

// defineCommandLineFlags registers the flags that make sense for cfg.Command
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")

	if cfg.Command == CommandFill || cfg.Command == CommandInfo || cfg.Command == CommandServe {
		fs.Bool("cache", false, "Cache remote templates")
		fs.Bool("cache-refresh", false, "Fetch the template even when a cached copy exists")
		fs.Int("cache-ttl", cfg.CacheTTL, "Template cache lifetime in seconds")
		fs.Duration("fetch-timeout", cfg.FetchTimeout, "Timeout for template and image downloads")
	}
	defineCacheStoreFlags(fs, cfg)

	switch cfg.Command {
	case CommandFill:
		fs.StringP("template", "t", cfg.Template, "Template PDF: path, URL or JSON request descriptor")
		fs.StringP("data", "d", cfg.Data, "Field data file (JSON or YAML)")
		fs.StringP("output", "o", cfg.Output, "Output PDF path")
		fs.StringP("metadata", "m", cfg.Metadata, "Write processing metadata JSON to this path")
		fs.Bool("keep-fields", false, "Keep form fields interactive instead of flattening")
		fs.String("text-overflow", cfg.TextOverflow, "Default text overflow: overflow or cutoff")
		defineMergeFlags(fs, cfg)
	case CommandInfo:
		fs.StringP("template", "t", cfg.Template, "Template PDF: path, URL or JSON request descriptor")
	case CommandServe:
		fs.String("dir", cfg.WorkingDir, "Directory tool requests may read from and write to")
		fs.String("text-overflow", cfg.TextOverflow, "Default text overflow: overflow or cutoff")
		defineMergeFlags(fs, cfg)
	}
}

func defineCacheStoreFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("cache-dir", cfg.CacheDir, "Directory of the disk template cache")
	fs.String("cache-store", cfg.CacheStore, "Template cache store: disk or redis")
	fs.String("redis-addr", cfg.RedisAddr, "Redis address for --cache-store=redis")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database number")
}

func defineMergeFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("merge-backend", cfg.MergeBackend, "Merge backend: python, bun or pdfcpu")
	fs.String("bun-script", "", "Custom pdf-lib merge script for the bun backend")
	fs.Duration("merge-timeout", cfg.MergeTimeout, "Timeout for the merge step")
	fs.BoolP("yes", "y", false, "Answer yes to dependency install prompts")
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, w io.Writer, command string) {
	fs.Usage = func() {
		fmt.Fprintf(w, "Usage: fill-pdf %s [options]\n", command)
		fmt.Fprintf(w, "\nfill-pdf - Render field values onto a PDF template\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  fill-pdf fill -t form.pdf -d fields.json -o out.pdf\n")
		fmt.Fprintf(w, "  fill-pdf fill -t https://example.com/form.pdf -d fields.yaml -o out.pdf --cache\n")
		fmt.Fprintf(w, "  fill-pdf info -t form.pdf\n")
		fmt.Fprintf(w, "  fill-pdf cache clear\n")
		fmt.Fprintf(w, "  fill-pdf serve --dir=/path/to/forms\n")
		fmt.Fprintf(w, "\nEnvironment Variables:\n")
		fmt.Fprintf(w, "  FILL_PDF_<FLAG>     Any flag, upper-cased with '-' as '_' (e.g. FILL_PDF_CACHE_DIR)\n")
	}
}

// checkVersionFlag reports whether the version flag was requested
func checkVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Template = v.GetString("template")
	cfg.Data = v.GetString("data")
	cfg.Output = v.GetString("output")
	cfg.Metadata = v.GetString("metadata")
	cfg.KeepFields = v.GetBool("keep-fields")
	cfg.TextOverflow = v.GetString("text-overflow")

	cfg.Cache = v.GetBool("cache")
	cfg.CacheDir = v.GetString("cache-dir")
	cfg.CacheTTL = v.GetInt("cache-ttl")
	cfg.CacheRefresh = v.GetBool("cache-refresh")
	cfg.CacheStore = v.GetString("cache-store")
	cfg.RedisAddr = v.GetString("redis-addr")
	cfg.RedisPassword = v.GetString("redis-password")
	cfg.RedisDB = v.GetInt("redis-db")

	cfg.MergeBackend = v.GetString("merge-backend")
	cfg.BunScript = v.GetString("bun-script")
	cfg.AssumeYes = v.GetBool("yes")
	cfg.FetchTimeout = v.GetDuration("fetch-timeout")
	cfg.MergeTimeout = v.GetDuration("merge-timeout")

	cfg.WorkingDir = v.GetString("dir")
	cfg.LogLevel = v.GetString("loglevel")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Command {
	case CommandFill:
		if c.Template == "" {
			return errors.New("--template is required")
		}
		if c.Data == "" {
			return errors.New("--data is required")
		}
		if c.Output == "" {
			return errors.New("--output is required")
		}
	case CommandInfo:
		if c.Template == "" {
			return errors.New("--template is required")
		}
	case CommandServe:
		if c.WorkingDir == "" {
			return errors.New("working directory cannot be empty")
		}
		info, err := os.Stat(c.WorkingDir)
		if err != nil {
			return fmt.Errorf("cannot access working directory %s: %w", c.WorkingDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("working directory %s is not a directory", c.WorkingDir)
		}
	case CommandCacheClear:
	default:
		return fmt.Errorf("unknown command: %s", c.Command)
	}

	if c.CacheTTL <= 0 {
		return errors.New("cache TTL must be positive")
	}
	if c.CacheStore != StoreDisk && c.CacheStore != StoreRedis {
		return fmt.Errorf("invalid cache store: %s (must be one of: disk, redis)", c.CacheStore)
	}
	if c.CacheStore == StoreDisk && c.CacheDir == "" {
		return errors.New("cache directory cannot be empty")
	}
	if c.CacheStore == StoreRedis && c.RedisAddr == "" {
		return errors.New("redis address cannot be empty")
	}

	switch c.MergeBackend {
	case merge.BackendPython, merge.BackendBun, merge.BackendPdfcpu:
	default:
		return fmt.Errorf("invalid merge backend: %s (must be one of: python, bun, pdfcpu)", c.MergeBackend)
	}

	switch model.TextOverflow(c.TextOverflow) {
	case model.OverflowVisible, model.OverflowCutoff:
	default:
		return fmt.Errorf("invalid text overflow: %s (must be one of: overflow, cutoff)", c.TextOverflow)
	}

	if c.FetchTimeout <= 0 || c.MergeTimeout <= 0 {
		return errors.New("timeouts must be positive")
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

	return nil
}

// CacheTTLDuration returns the cache lifetime as a duration
func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Flatten reports whether the output should lose its interactive fields
func (c *Config) Flatten() bool {
	return !c.KeepFields
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Command: %s, Template: %s, Output: %s, Cache: %t, CacheStore: %s, MergeBackend: %s, LogLevel: %s}",
		c.Command, c.Template, c.Output, c.Cache, c.CacheStore, c.MergeBackend, c.LogLevel)
}
