package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/isseis/go-safe-frame-store/internal/safefileio"
)

// Common errors
var (
	ErrEmptyLogDirectory = errors.New("log directory cannot be empty")
)

// File permissions constants
const (
	logDirPerm  os.FileMode = 0o750
	logFilePerm os.FileMode = 0o600
)

// timestampLayout is the UTC timestamp embedded in log file names.
const timestampLayout = "20060102T150405Z"

// unknownHost names the log file when the hostname cannot be determined.
const unknownHost = "unknown-host"

// osHostname is replaced in tests.
var osHostname = os.Hostname

// Hostname returns the machine name used in log file names and records.
func Hostname() string {
	name, err := osHostname()
	if err != nil || name == "" {
		return unknownHost
	}
	return name
}

// GenerateRunID generates a new UUID v4 for run identification
func GenerateRunID() string {
	return uuid.New().String()
}

// LogFileName returns <host>_<timestamp>_<runID>.json.
func LogFileName(hostname string, at time.Time, runID string) string {
	return fmt.Sprintf("%s_%s_%s.json", hostname, at.UTC().Format(timestampLayout), runID)
}

// OpenRunLog creates the per-run log file in dir. The directory is created if
// needed and an existing file is never truncated or followed through a symlink.
func OpenRunLog(dir, hostname, runID string, at time.Time) (*os.File, error) {
	if dir == "" {
		return nil, ErrEmptyLogDirectory
	}
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, LogFileName(hostname, at, runID))
	f, err := safefileio.SafeOpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s safely: %w", path, err)
	}
	return f, nil
}
