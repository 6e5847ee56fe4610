package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/isseis/go-safe-frame-store/internal/safefileio"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Format identifies a configuration file syntax.
type Format string

// Supported configuration formats
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatINI  Format = "ini"
)

// FormatOf returns the format implied by the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".ini":
		return FormatINI, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, path)
	}
}

// Load reads the configuration file at path over the defaults and validates
// the result. The environment is not consulted; see ApplyEnv.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	content, err := safefileio.SafeReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(content, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes content over Default(). Keys absent from content keep their
// default values.
func Parse(content []byte, format Format) (*Config, error) {
	cfg := Default()

	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return nil, err
		}
	case FormatYAML:
		if len(bytes.TrimSpace(content)) == 0 {
			return &cfg, nil
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, err
		}
	case FormatINI:
		if err := parseINI(content, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConfigFormat, format)
	}
	return &cfg, nil
}

// parseINI reads keys of the default section and the retry, log and server
// sections into cfg.
func parseINI(content []byte, cfg *Config) error {
	file, err := ini.Load(content)
	if err != nil {
		return err
	}

	root := file.Section("")
	cfg.OutputDir = root.Key("output_dir").MustString(cfg.OutputDir)
	cfg.DigitWidth = root.Key("digit_width").MustInt(cfg.DigitWidth)
	cfg.Extension = root.Key("extension").MustString(cfg.Extension)
	cfg.VerifyImage = root.Key("verify_image").MustBool(cfg.VerifyImage)
	cfg.CollisionRetries = root.Key("collision_retries").MustInt(cfg.CollisionRetries)

	retry := file.Section("retry")
	cfg.Retry.BaseMillis = retry.Key("base_ms").MustInt(cfg.Retry.BaseMillis)
	cfg.Retry.Count = retry.Key("count").MustInt(cfg.Retry.Count)

	log := file.Section("log")
	cfg.Log.Level = log.Key("level").MustString(cfg.Log.Level)
	cfg.Log.Dir = log.Key("dir").MustString(cfg.Log.Dir)

	server := file.Section("server")
	cfg.Server.MaxInFlight = server.Key("max_in_flight").MustInt(cfg.Server.MaxInFlight)
	return nil
}

// ParseLogLevel converts a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
	return level, nil
}
