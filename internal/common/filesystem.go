// Package common provides shared interfaces and utilities used across the capture packages.
//
//nolint:revive // var-naming: package name "common" is intentional for shared internal utilities
package common

import (
	"errors"
	"io/fs"
	"os"
)

// Error definitions for static error handling
var (
	ErrEmptyPath = errors.New("path cannot be empty")
)

// FileSystem defines the interface for file system operations
// This interface allows for easy fault injection in tests and provides a consistent API
// for file operations across all packages.
type FileSystem interface {
	// MkdirAll creates a directory and all necessary parents with the specified permissions
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file information, following symlinks
	Stat(path string) (fs.FileInfo, error)

	// OpenFile opens a file with the given flags and permissions
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)

	// ReadDir lists the entries of a directory
	ReadDir(path string) ([]fs.DirEntry, error)

	// CreateTemp creates a temporary file with the given prefix in the specified directory
	CreateTemp(dir string, pattern string) (*os.File, error)

	// Link creates newname as a hard link to oldname; it fails if newname exists
	Link(oldname, newname string) error

	// Rename renames (moves) oldpath to newpath
	Rename(oldpath, newpath string) error

	// Remove removes a single file or empty directory
	Remove(path string) error
}

// DefaultFileSystem implements FileSystem using standard os package functions
type DefaultFileSystem struct{}

// NewDefaultFileSystem creates a new DefaultFileSystem
func NewDefaultFileSystem() *DefaultFileSystem {
	return &DefaultFileSystem{}
}

// MkdirAll creates a directory and all necessary parents with the specified permissions
func (fs *DefaultFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Stat returns file information, following symlinks
func (fs *DefaultFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// OpenFile opens a file with the given flags and permissions
func (fs *DefaultFileSystem) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm) // #nosec G304 - callers pass paths inside the output directory
}

// ReadDir lists the entries of a directory
func (fs *DefaultFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// CreateTemp creates a temporary file with the given prefix in the specified directory
func (fs *DefaultFileSystem) CreateTemp(dir string, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

// Link creates newname as a hard link to oldname
func (fs *DefaultFileSystem) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}

// Rename renames (moves) oldpath to newpath
func (fs *DefaultFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Remove removes a single file or empty directory
func (fs *DefaultFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// IsDir reports whether path exists and is a directory.
func IsDir(fsys FileSystem, path string) (bool, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
