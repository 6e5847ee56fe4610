// Package service is the capture service root. It owns the output directory
// manager and the sequential writer and exposes them as request/response
// operations named after the channels the UI collaborator invokes.
package service

import (
	"context"
	"log/slog"

	"github.com/isseis/go-safe-frame-store/internal/capture"
	"github.com/isseis/go-safe-frame-store/internal/naming"
	"github.com/isseis/go-safe-frame-store/internal/outputdir"
	"github.com/isseis/go-safe-frame-store/internal/payload"
)

// PathResult answers a path change request.
type PathResult struct {
	Success   bool              `json:"success"`
	Path      string            `json:"path,omitempty"`
	ErrorKind capture.ErrorKind `json:"errorKind,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// Service wires the directory manager and the writer together. Every
// operation reports failure through its result value.
type Service struct {
	dir    *outputdir.Manager
	writer *capture.Writer
	logger *slog.Logger
}

// New creates a Service. The writer must have been built on dir.
func New(dir *outputdir.Manager, writer *capture.Writer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dir: dir, writer: writer, logger: logger}
}

// Start makes sure the default output directory exists. A failure is logged
// and returned but does not prevent later requests, which retry the creation.
func (s *Service) Start() error {
	if err := s.dir.EnsureExists(); err != nil {
		s.logger.Error("Failed to prepare output directory", "path", s.dir.Path(), "error", err)
		return err
	}
	s.logger.Info("Capture service ready", "path", s.dir.Path(), "pattern", s.dir.Pattern().String())
	return nil
}

// SetSavePath switches the active output directory.
func (s *Service) SetSavePath(path string) PathResult {
	if err := s.dir.SetPath(path); err != nil {
		s.logger.Warn("Rejected output path", "path", path, "error", err)
		return PathResult{
			Success:   false,
			ErrorKind: capture.KindOf(err),
			Message:   err.Error(),
		}
	}
	return PathResult{Success: true, Path: s.dir.Path()}
}

// GetSavePath returns the active output directory.
func (s *Service) GetSavePath() string {
	return s.dir.Path()
}

// SaveImage persists one captured frame.
func (s *Service) SaveImage(ctx context.Context, imageData string) capture.SaveResult {
	return s.writer.SaveImage(ctx, imageData)
}

// GetNextImageNumber reports the next sequential number and the current count.
func (s *Service) GetNextImageNumber(ctx context.Context) capture.NextNumberResult {
	return s.writer.NextNumber(ctx)
}

// Options describes how to assemble a Service.
type Options struct {
	OutputDir        string
	Pattern          naming.Pattern
	VerifyImage      bool
	Backoff          capture.BackoffConfig
	CollisionRetries int
	Logger           *slog.Logger
}

// Build assembles a Service from opts with one writer per directory manager.
func Build(opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pattern := opts.Pattern
	if pattern.Width() == 0 {
		pattern = naming.Default()
	}

	dir, err := outputdir.NewManager(opts.OutputDir,
		outputdir.WithPattern(pattern),
		outputdir.WithLogger(logger.With("component", "outputdir")))
	if err != nil {
		return nil, err
	}

	writer := capture.NewWriter(dir,
		capture.WithDecoder(payload.NewDecoder(payload.WithImageVerification(opts.VerifyImage))),
		capture.WithBackoff(opts.Backoff),
		capture.WithMaxCollisionRetries(opts.CollisionRetries),
		capture.WithLogger(logger.With("component", "capture")))

	return New(dir, writer, logger), nil
}
