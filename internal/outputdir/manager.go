// Package outputdir owns the directory that captured frames are written to.
// It keeps the single active path, guarantees that it exists, and enumerates
// the sequentially named files already present in it.
package outputdir

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/isseis/go-safe-frame-store/internal/common"
	"github.com/isseis/go-safe-frame-store/internal/naming"
)

// DirPerm is the permission used when creating output directories.
const DirPerm = 0o750

// Error definitions for the outputdir package
var (
	// ErrInvalidPath is returned when a candidate output path does not exist
	ErrInvalidPath = errors.New("output path does not exist")
	// ErrDirectoryCreation is returned when the output directory cannot be created
	ErrDirectoryCreation = errors.New("failed to create output directory")
)

// SequentialFile is a conforming file found in the output directory.
type SequentialFile struct {
	Name  string
	Index int
}

// Manager maintains the active output path.
type Manager struct {
	mu      sync.RWMutex
	path    string
	pattern naming.Pattern
	fs      common.FileSystem
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithFileSystem replaces the file system implementation.
func WithFileSystem(fs common.FileSystem) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// WithPattern sets the naming pattern used to recognise sequential files.
func WithPattern(p naming.Pattern) Option {
	return func(m *Manager) {
		m.pattern = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager whose active path is defaultPath. The default
// path is not touched until EnsureExists is called.
func NewManager(defaultPath string, opts ...Option) (*Manager, error) {
	if defaultPath == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPath, common.ErrEmptyPath)
	}
	abs, err := filepath.Abs(defaultPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	m := &Manager{
		path:    abs,
		pattern: naming.Default(),
		fs:      common.NewDefaultFileSystem(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m, nil
}

// Path returns the active output path.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Pattern returns the naming pattern.
func (m *Manager) Pattern() naming.Pattern {
	return m.pattern
}

// FileSystem returns the file system the manager operates on.
func (m *Manager) FileSystem() common.FileSystem {
	return m.fs
}

// SetPath makes newPath the active output path. The path must already exist
// as a directory; unlike the default path it is never created from scratch.
// On failure the previous path stays active.
func (m *Manager) SetPath(newPath string) error {
	if newPath == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPath, common.ErrEmptyPath)
	}
	abs, err := filepath.Abs(newPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	isDir, err := common.IsDir(m.fs, abs)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPath, abs, err)
	}
	if !isDir {
		return fmt.Errorf("%w: %s", ErrInvalidPath, abs)
	}

	m.mu.Lock()
	old := m.path
	m.path = abs
	m.mu.Unlock()

	m.logger.Info("Output directory changed", "old_path", old, "new_path", abs)

	return m.EnsureExists()
}

// EnsureExists creates the active path and any missing parents.
func (m *Manager) EnsureExists() error {
	_, err := m.ensure()
	return err
}

// ensure creates the active path and returns it, so callers that need a
// consistent path for a whole operation read it only once.
func (m *Manager) ensure() (string, error) {
	path := m.Path()

	if stat, err := m.fs.Stat(path); err == nil {
		if !stat.IsDir() {
			return "", fmt.Errorf("%w: %s exists but is not a directory", ErrDirectoryCreation, path)
		}
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: failed to stat %s: %v", ErrDirectoryCreation, path, err)
	}

	if err := m.fs.MkdirAll(path, DirPerm); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDirectoryCreation, path, err)
	}
	m.logger.Info("Created output directory", "path", path)
	return path, nil
}

// Snapshot ensures the active directory exists and lists its sequential files
// in one step. The returned path is the directory the listing was taken from.
func (m *Manager) Snapshot() (string, []SequentialFile, error) {
	path, err := m.ensure()
	if err != nil {
		return "", nil, err
	}
	files, err := m.listIn(path)
	if err != nil {
		return "", nil, err
	}
	return path, files, nil
}

// ListSequentialFiles returns the conforming files of the active directory
// sorted by index. Entries that do not match the naming pattern, including
// directories, are ignored.
func (m *Manager) ListSequentialFiles() ([]SequentialFile, error) {
	return m.listIn(m.Path())
}

func (m *Manager) listIn(path string) ([]SequentialFile, error) {
	entries, err := m.fs.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory %s: %w", path, err)
	}

	files := make([]SequentialFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idx, ok := m.pattern.Parse(entry.Name())
		if !ok {
			continue
		}
		files = append(files, SequentialFile{Name: entry.Name(), Index: idx})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })
	return files, nil
}

// MaxIndex returns the largest index in files, or 0 when there are none.
func MaxIndex(files []SequentialFile) int {
	maxIndex := 0
	for _, f := range files {
		if f.Index > maxIndex {
			maxIndex = f.Index
		}
	}
	return maxIndex
}

// Stats reports the largest conforming index and the number of conforming
// files in the active directory, creating the directory if needed.
func (m *Manager) Stats() (maxIndex, count int, err error) {
	_, files, err := m.Snapshot()
	if err != nil {
		return 0, 0, err
	}
	return MaxIndex(files), len(files), nil
}
