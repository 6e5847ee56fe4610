// Package safefileio provides secure file I/O operations with protection against
// common security vulnerabilities like symlink attacks and TOCTOU race conditions.
// It also publishes finished files under names that must not be reused.
package safefileio

import (
	"errors"
	"os"
	"syscall"
)

var (
	// ErrInvalidFilePath indicates that the path cannot be resolved or is not a regular file.
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrIsSymlink indicates that the path or one of its parents is a symbolic link.
	ErrIsSymlink = errors.New("path is a symbolic link")

	// ErrFileTooLarge indicates that the file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileExists indicates that the target name is already taken.
	ErrFileExists = errors.New("file exists")
)

// isNoFollowError reports whether open(2) with O_NOFOLLOW hit a symlink.
// Linux returns ELOOP; FreeBSD returns EMLINK.
func isNoFollowError(err error) bool {
	var e *os.PathError
	if !errors.As(err, &e) {
		return false
	}
	return errors.Is(e.Err, syscall.ELOOP) || errors.Is(e.Err, syscall.EMLINK)
}

// isLinkUnsupported reports whether a link failure means the file system cannot
// create hard links, as opposed to a genuine write failure.
func isLinkUnsupported(err error) bool {
	return errors.Is(err, syscall.EXDEV) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.ENOSYS) ||
		errors.Is(err, syscall.EPERM)
}
