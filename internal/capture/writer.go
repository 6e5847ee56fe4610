package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/isseis/go-safe-frame-store/internal/outputdir"
	"github.com/isseis/go-safe-frame-store/internal/payload"
	"github.com/isseis/go-safe-frame-store/internal/safefileio"
)

// FilePerm is the permission of published frames.
const FilePerm = 0o640

// Writer assigns the next sequential name to a frame and persists it.
//
// Listing the directory, computing the index and publishing the file happen
// under one lock, so two saves through the same Writer never pick the same
// name. A file created by another process between listing and publishing is
// detected by the no-clobber publish and the index is recomputed.
type Writer struct {
	mu                  sync.Mutex
	dir                 *outputdir.Manager
	decoder             *payload.Decoder
	backoff             BackoffConfig
	maxCollisionRetries int
	logger              *slog.Logger

	// beforePublish runs after the temp file is written and before it is
	// published; tests use it to simulate concurrent external writers.
	beforePublish func(finalPath string)
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithDecoder replaces the payload decoder.
func WithDecoder(d *payload.Decoder) WriterOption {
	return func(w *Writer) {
		w.decoder = d
	}
}

// WithBackoff sets the retry policy for transient I/O errors.
func WithBackoff(cfg BackoffConfig) WriterOption {
	return func(w *Writer) {
		w.backoff = cfg
	}
}

// WithMaxCollisionRetries sets how many times a save recomputes its index
// after losing a race for a file name.
func WithMaxCollisionRetries(n int) WriterOption {
	return func(w *Writer) {
		w.maxCollisionRetries = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter creates a Writer for the given directory manager.
func NewWriter(dir *outputdir.Manager, opts ...WriterOption) *Writer {
	w := &Writer{
		dir:                 dir,
		decoder:             payload.NewDecoder(),
		backoff:             DefaultBackoffConfig,
		maxCollisionRetries: defaultMaxCollisionRetries,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.backoff.RetryCount < 0 {
		w.backoff.RetryCount = 0
	}
	if w.maxCollisionRetries < 0 {
		w.maxCollisionRetries = 0
	}
	return w
}

// SaveImage decodes data and writes it under the next sequential name.
// Failures are reported in the result; SaveImage never returns an error.
func (w *Writer) SaveImage(ctx context.Context, data string) SaveResult {
	img, err := w.decoder.Decode(data)
	if err != nil {
		w.logger.Warn("Rejected capture payload", "error", err)
		return failedSave(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for attempt := 0; ; attempt++ {
		res, err := w.saveLocked(ctx, img.Data)
		if err == nil {
			w.logger.Info("Saved capture",
				"file", res.FileName,
				"index", res.AssignedIndex,
				"bytes", len(img.Data),
				"format", img.Format)
			return res
		}

		if errors.Is(err, ErrFileNameCollision) && attempt < w.maxCollisionRetries {
			w.logger.Warn("File name taken by another writer, recomputing index", "attempt", attempt+1, "error", err)
			continue
		}

		w.logger.Error("Failed to save capture", "error", err, "kind", KindOf(err).String())
		return failedSave(err)
	}
}

// saveLocked performs one scan-compute-write cycle. w.mu must be held.
func (w *Writer) saveLocked(ctx context.Context, data []byte) (SaveResult, error) {
	dir, files, err := w.dir.Snapshot()
	if err != nil {
		return SaveResult{}, err
	}

	next := outputdir.MaxIndex(files) + 1
	fileName, err := w.dir.Pattern().Format(next)
	if err != nil {
		return SaveResult{}, newSaveError(dir, fmt.Errorf("%w: %v", ErrWriteFailure, err))
	}
	finalPath := filepath.Join(dir, fileName)

	tmpPath, err := w.writeTemp(ctx, dir, fileName, data)
	if err != nil {
		return SaveResult{}, newSaveError(finalPath, fmt.Errorf("%w: %w", ErrWriteFailure, err))
	}
	defer w.removeTemp(tmpPath)

	if w.beforePublish != nil {
		w.beforePublish(finalPath)
	}

	fsys := w.dir.FileSystem()
	err = retryTransient(ctx, w.backoff, w.logger, "publish", func() error {
		return safefileio.PublishNoClobber(fsys, tmpPath, finalPath)
	})
	switch {
	case err == nil:
	case errors.Is(err, safefileio.ErrFileExists):
		return SaveResult{}, newSaveError(finalPath, ErrFileNameCollision)
	default:
		return SaveResult{}, newSaveError(finalPath, fmt.Errorf("%w: %w", ErrWriteFailure, err))
	}

	return SaveResult{
		Success:       true,
		FileName:      fileName,
		FullPath:      finalPath,
		AssignedIndex: next,
	}, nil
}

// writeTemp writes data to a hidden temporary file in dir and flushes it to
// disk. The temp name never matches the naming pattern.
func (w *Writer) writeTemp(ctx context.Context, dir, fileName string, data []byte) (string, error) {
	fsys := w.dir.FileSystem()

	var tmpPath string
	err := retryTransient(ctx, w.backoff, w.logger, "write", func() error {
		f, err := fsys.CreateTemp(dir, "."+fileName+".*.tmp")
		if err != nil {
			return fmt.Errorf("failed to create temporary file: %w", err)
		}
		name := f.Name()

		writeErr := writeAndSync(f, data)
		if closeErr := f.Close(); closeErr != nil && writeErr == nil {
			writeErr = fmt.Errorf("failed to close temporary file: %w", closeErr)
		}
		if writeErr != nil {
			w.removeTemp(name)
			return writeErr
		}

		tmpPath = name
		return nil
	})
	if err != nil {
		return "", err
	}
	return tmpPath, nil
}

func writeAndSync(f *os.File, data []byte) error {
	if err := f.Chmod(FilePerm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	return nil
}

// removeTemp removes a temporary file - idempotent operation
func (w *Writer) removeTemp(path string) {
	if err := w.dir.FileSystem().Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("Failed to remove temporary file", "path", path, "error", err)
	}
}

// NextNumber reports the index the next save would receive and how many
// sequential files are present. It does not reserve the index.
func (w *Writer) NextNumber(_ context.Context) NextNumberResult {
	maxIndex, count, err := w.dir.Stats()
	if err != nil {
		w.logger.Warn("Failed to compute next image number", "error", err)
		return NextNumberResult{
			Success:    false,
			NextNumber: 1,
			Count:      0,
			ErrorKind:  KindOf(err),
			Message:    err.Error(),
		}
	}
	return NextNumberResult{
		Success:    true,
		NextNumber: maxIndex + 1,
		Count:      count,
	}
}
