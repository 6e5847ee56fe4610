package safefileio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/isseis/go-safe-frame-store/internal/common"
)

// openFile is replaced in tests to simulate open failures.
var openFile = os.OpenFile

// SafeOpenFile opens a file after validating the path and checking file properties.
// It uses O_NOFOLLOW so the final component is never a symlink, then verifies the
// directory components once the descriptor is held to prevent TOCTOU attacks.
func SafeOpenFile(filePath string, flag int, perm os.FileMode) (*os.File, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	// #nosec G304 - The path is validated after opening to prevent TOCTOU attacks
	file, err := openFile(absPath, flag|syscall.O_NOFOLLOW, perm)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrExist):
			return nil, ErrFileExists
		case isNoFollowError(err):
			return nil, ErrIsSymlink
		default:
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
	}

	if err := verifyPathComponents(absPath); err != nil {
		closeQuietly(file)
		return nil, err
	}

	if _, err := validateFile(file, absPath); err != nil {
		closeQuietly(file)
		return nil, err
	}

	return file, nil
}

// PublishNoClobber makes the fully written file at tempPath visible as finalPath
// without ever replacing an existing finalPath. On success tempPath no longer
// exists. If finalPath already exists, ErrFileExists is returned and tempPath is
// left in place for the caller to clean up.
//
// The primary mechanism is link(2), which fails atomically with EEXIST. On file
// systems without hard link support the name is first reserved with O_EXCL and
// the temp file is renamed over the reservation.
//
// Output directories may be reached through symlinked ancestors, so only the
// final component is guarded: a symlink at finalPath counts as an existing file.
func PublishNoClobber(fsys common.FileSystem, tempPath, finalPath string) error {
	err := fsys.Link(tempPath, finalPath)
	switch {
	case err == nil:
		if rmErr := fsys.Remove(tempPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("Failed to remove temporary file after publish", "path", tempPath, "error", rmErr)
		}
		return nil
	case errors.Is(err, os.ErrExist):
		return ErrFileExists
	case !isLinkUnsupported(err):
		return fmt.Errorf("failed to publish %s: %w", finalPath, err)
	}

	slog.Debug("Hard links unsupported, reserving target name instead", "path", finalPath, "error", err)

	reservation, err := fsys.OpenFile(finalPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL|syscall.O_NOFOLLOW, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) || isNoFollowError(err) {
			return ErrFileExists
		}
		return fmt.Errorf("failed to reserve %s: %w", finalPath, err)
	}
	closeQuietly(reservation)

	if err := fsys.Rename(tempPath, finalPath); err != nil {
		if rmErr := fsys.Remove(finalPath); rmErr != nil {
			slog.Warn("Failed to remove name reservation", "path", finalPath, "error", rmErr)
		}
		return fmt.Errorf("failed to publish %s: %w", finalPath, err)
	}
	return nil
}

// verifyPathComponents checks if any component of the path is a symlink.
// This is called after opening the file to prevent TOCTOU attacks.
func verifyPathComponents(absPath string) error {
	dir, err := filepath.Abs(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := dir
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break // Reached root directory
		}

		fi, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to stat %s: %w", current, err)
		}

		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrIsSymlink, current)
		}

		current = parent
	}

	return nil
}

// MaxFileSize is the maximum allowed file size for SafeReadFile (128 MB)
const MaxFileSize = 128 * 1024 * 1024

// SafeReadFile reads a file safely after validating the path and checking file properties.
// It enforces a maximum file size of MaxFileSize to prevent memory exhaustion attacks.
func SafeReadFile(filePath string) ([]byte, error) {
	file, err := SafeOpenFile(filePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(file)

	return readFileContent(file, filePath)
}

// readFileContent reads and validates the content of an already opened file
func readFileContent(file *os.File, filePath string) ([]byte, error) {
	fileInfo, err := validateFile(file, filePath)
	if err != nil {
		return nil, err
	}

	if fileInfo.Size() > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	content, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if int64(len(content)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	return content, nil
}

// validateFile checks if the file is a regular file and returns its FileInfo
// To prevent TOCTOU attacks, we use the file descriptor to get the file info
func validateFile(file *os.File, filePath string) (os.FileInfo, error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrInvalidFilePath, filePath)
	}

	return fileInfo, nil
}

func closeQuietly(file *os.File) {
	if err := file.Close(); err != nil {
		slog.Warn("Error closing file", "path", file.Name(), "error", err)
	}
}
