package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/isseis/go-safe-frame-store/internal/terminal"
)

// schemaVersion is attached to every JSON log line.
const schemaVersion = 1

// Config holds all configuration for logger setup
type Config struct {
	Level   slog.Level
	LogDir  string    // Per-run JSON log directory; empty disables the file log
	RunID   string    // Generated when empty
	Console io.Writer // Defaults to os.Stderr

	ForceInteractive    bool
	ForceNonInteractive bool
}

// Logger is the configured process logger and the resources it holds.
type Logger struct {
	*slog.Logger
	RunID       string
	Interactive bool
	LogFile     string

	file *os.File
}

// Close flushes and closes the per-run log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	return l.file.Close()
}

// Setup builds the logger described by config and installs it as the slog
// default. It must be called once during start-up before any goroutine logs.
func Setup(config Config) (*Logger, error) {
	console := config.Console
	if console == nil {
		console = os.Stderr
	}
	if config.RunID == "" {
		config.RunID = GenerateRunID()
	}

	interactive := isInteractive(config, console)
	consoleOpts := &slog.HandlerOptions{Level: config.Level}
	if interactive {
		consoleOpts.ReplaceAttr = dropTime
	}
	handlers := []slog.Handler{slog.NewTextHandler(console, consoleOpts)}

	result := &Logger{RunID: config.RunID, Interactive: interactive}

	if config.LogDir != "" {
		hostname := Hostname()
		f, err := OpenRunLog(config.LogDir, hostname, config.RunID, time.Now())
		if err != nil {
			return nil, err
		}
		result.file = f
		result.LogFile = f.Name()

		jsonHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: config.Level}).
			WithAttrs([]slog.Attr{
				slog.String("hostname", hostname),
				slog.Int("pid", os.Getpid()),
				slog.Int("schema_version", schemaVersion),
				slog.String("run_id", config.RunID),
			})
		handlers = append(handlers, jsonHandler)
	}

	result.Logger = slog.New(NewMultiHandler(handlers...))
	slog.SetDefault(result.Logger)

	result.Debug("Logger initialized",
		"log-level", config.Level,
		"log-dir", config.LogDir,
		"run_id", config.RunID,
		"interactive_mode", interactive)

	return result, nil
}

func isInteractive(config Config, console io.Writer) bool {
	f, ok := console.(*os.File)
	if !ok {
		return config.ForceInteractive
	}
	return terminal.NewDetector(terminal.DetectorOptions{
		ForceInteractive:    config.ForceInteractive,
		ForceNonInteractive: config.ForceNonInteractive,
		File:                f,
	}).IsInteractive()
}

// dropTime removes the top-level time attribute for compact terminal output.
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
