// Package testutil provides fault-injecting implementations of common interfaces for tests.
package testutil

import (
	"io/fs"
	"os"
	"sync"

	"github.com/isseis/go-safe-frame-store/internal/common"
)

// FaultFileSystem wraps a real FileSystem and lets tests replace individual
// operations. Unset hooks delegate to the wrapped implementation.
type FaultFileSystem struct {
	common.FileSystem

	MkdirAllFunc   func(path string, perm os.FileMode) error
	ReadDirFunc    func(path string) ([]fs.DirEntry, error)
	CreateTempFunc func(dir, pattern string) (*os.File, error)
	LinkFunc       func(oldname, newname string) error
	OpenFileFunc   func(name string, flag int, perm os.FileMode) (*os.File, error)

	mu        sync.Mutex
	linkCalls []string
}

// NewFaultFileSystem wraps the default file system.
func NewFaultFileSystem() *FaultFileSystem {
	return &FaultFileSystem{FileSystem: common.NewDefaultFileSystem()}
}

// MkdirAll implements common.FileSystem.
func (f *FaultFileSystem) MkdirAll(path string, perm os.FileMode) error {
	if f.MkdirAllFunc != nil {
		return f.MkdirAllFunc(path, perm)
	}
	return f.FileSystem.MkdirAll(path, perm)
}

// ReadDir implements common.FileSystem.
func (f *FaultFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	if f.ReadDirFunc != nil {
		return f.ReadDirFunc(path)
	}
	return f.FileSystem.ReadDir(path)
}

// CreateTemp implements common.FileSystem.
func (f *FaultFileSystem) CreateTemp(dir, pattern string) (*os.File, error) {
	if f.CreateTempFunc != nil {
		return f.CreateTempFunc(dir, pattern)
	}
	return f.FileSystem.CreateTemp(dir, pattern)
}

// OpenFile implements common.FileSystem.
func (f *FaultFileSystem) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	if f.OpenFileFunc != nil {
		return f.OpenFileFunc(name, flag, perm)
	}
	return f.FileSystem.OpenFile(name, flag, perm)
}

// Link implements common.FileSystem and records the destination of every call.
func (f *FaultFileSystem) Link(oldname, newname string) error {
	f.mu.Lock()
	f.linkCalls = append(f.linkCalls, newname)
	f.mu.Unlock()
	if f.LinkFunc != nil {
		return f.LinkFunc(oldname, newname)
	}
	return f.FileSystem.Link(oldname, newname)
}

// LinkCalls returns the destinations passed to Link so far.
func (f *FaultFileSystem) LinkCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.linkCalls))
	copy(out, f.linkCalls)
	return out
}
