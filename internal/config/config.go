// Package config provides functionality for loading and validating the capture
// service configuration. TOML is the primary format; YAML and INI files are
// accepted as well and selected by file extension.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/isseis/go-safe-frame-store/internal/capture"
	"github.com/isseis/go-safe-frame-store/internal/naming"
	"github.com/isseis/go-safe-frame-store/internal/service"
)

// EnvOutputDir overrides the configured output directory when set.
const EnvOutputDir = "FRAMESTORE_OUTPUT_DIR"

// DefaultDirName is the folder created under the user's pictures directory
// when no output directory is configured.
const DefaultDirName = "framestore-dataset"

// Error definitions for the config package
var (
	ErrInvalidDigitWidth       = errors.New("digit_width must be at least 1")
	ErrInvalidExtension        = errors.New("extension must not be empty")
	ErrNegativeRetry           = errors.New("retry values must not be negative")
	ErrNegativeCollisionRetry  = errors.New("collision_retries must not be negative")
	ErrInvalidLogLevel         = errors.New("invalid log level")
	ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
)

// Config is the complete capture service configuration.
type Config struct {
	OutputDir        string       `toml:"output_dir" yaml:"output_dir"`
	DigitWidth       int          `toml:"digit_width" yaml:"digit_width"`
	Extension        string       `toml:"extension" yaml:"extension"`
	VerifyImage      bool         `toml:"verify_image" yaml:"verify_image"`
	CollisionRetries int          `toml:"collision_retries" yaml:"collision_retries"`
	Retry            RetryConfig  `toml:"retry" yaml:"retry"`
	Log              LogConfig    `toml:"log" yaml:"log"`
	Server           ServerConfig `toml:"server" yaml:"server"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `toml:"-" yaml:"-"`
}

// RetryConfig controls retries of transient I/O errors.
type RetryConfig struct {
	BaseMillis int `toml:"base_ms" yaml:"base_ms"`
	Count      int `toml:"count" yaml:"count"`
}

// LogConfig defines log verbosity and the optional per-run JSON log directory.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	Dir   string `toml:"dir" yaml:"dir"`
}

// ServerConfig configures the JSON-lines invoke server.
type ServerConfig struct {
	MaxInFlight int `toml:"max_in_flight" yaml:"max_in_flight"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		OutputDir:        DefaultOutputDir(),
		DigitWidth:       naming.DefaultWidth,
		Extension:        naming.DefaultExtension,
		VerifyImage:      true,
		CollisionRetries: 3,
		Retry: RetryConfig{
			BaseMillis: int(capture.DefaultBackoffConfig.Base / time.Millisecond),
			Count:      capture.DefaultBackoffConfig.RetryCount,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			MaxInFlight: service.DefaultMaxInFlight,
		},
		Source: "defaults",
	}
}

// DefaultOutputDir returns <home>/Pictures/framestore-dataset, or a relative
// directory when the home directory is unknown.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultDirName
	}
	return filepath.Join(home, "Pictures", DefaultDirName)
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.OutputDir = v
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch {
	case c.DigitWidth < 1:
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidDigitWidth, c.DigitWidth))
	case c.Extension == "":
		errs = append(errs, ErrInvalidExtension)
	default:
		if _, err := c.Pattern(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Retry.BaseMillis < 0 || c.Retry.Count < 0 {
		errs = append(errs, fmt.Errorf("%w: base_ms=%d count=%d", ErrNegativeRetry, c.Retry.BaseMillis, c.Retry.Count))
	}
	if c.CollisionRetries < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrNegativeCollisionRetry, c.CollisionRetries))
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Pattern builds the naming pattern from DigitWidth and Extension.
func (c *Config) Pattern() (naming.Pattern, error) {
	return naming.New(c.DigitWidth, c.Extension)
}

// Backoff converts the retry settings.
func (c *Config) Backoff() capture.BackoffConfig {
	return capture.BackoffConfig{
		Base:       time.Duration(c.Retry.BaseMillis) * time.Millisecond,
		RetryCount: c.Retry.Count,
	}
}

// ServiceOptions converts the configuration into service construction options.
func (c *Config) ServiceOptions() (service.Options, error) {
	pattern, err := c.Pattern()
	if err != nil {
		return service.Options{}, err
	}
	return service.Options{
		OutputDir:        c.OutputDir,
		Pattern:          pattern,
		VerifyImage:      c.VerifyImage,
		Backoff:          c.Backoff(),
		CollisionRetries: c.CollisionRetries,
	}, nil
}
