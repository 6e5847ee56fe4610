//nolint:revive // common is an appropriate name for shared utilities package
package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFileSystem_MkdirAllAndIsDir(t *testing.T) {
	fs := NewDefaultFileSystem()
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	isDir, err := IsDir(fs, dir)
	require.NoError(t, err, "IsDir should not fail for a missing path")
	assert.False(t, isDir)

	require.NoError(t, fs.MkdirAll(dir, 0o750))

	isDir, err = IsDir(fs, dir)
	require.NoError(t, err)
	assert.True(t, isDir, "Created path is not a directory")
}

func TestIsDir_RegularFile(t *testing.T) {
	fs := NewDefaultFileSystem()
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	isDir, err := IsDir(fs, file)
	require.NoError(t, err)
	assert.False(t, isDir)
}

func TestDefaultFileSystem_LinkDoesNotOverwrite(t *testing.T) {
	fs := NewDefaultFileSystem()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o600))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))

	err := fs.Link(src, dst)
	assert.ErrorIs(t, err, os.ErrExist)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "old", string(content), "existing file must not be replaced")
}

func TestDefaultFileSystem_ReadDirCreateTempRemove(t *testing.T) {
	fs := NewDefaultFileSystem()
	dir := t.TempDir()

	f, err := fs.CreateTemp(dir, ".tmp-*")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := fs.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(f.Name()), entries[0].Name())

	renamed := filepath.Join(dir, "renamed")
	require.NoError(t, fs.Rename(f.Name(), renamed))
	reopened, err := fs.OpenFile(renamed, os.O_RDONLY, 0)
	require.NoError(t, err)
	require.NoError(t, reopened.Close())

	_, err = fs.OpenFile(renamed, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	assert.ErrorIs(t, err, os.ErrExist)

	require.NoError(t, fs.Remove(renamed))
	entries, err = fs.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
