package safefileio

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/isseis/go-safe-frame-store/internal/common/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// safeTempDir returns a temp directory with symlinks resolved, so that a
// symlinked TMPDIR does not trip the path component check.
func safeTempDir(t *testing.T) string {
	t.Helper()
	realPath, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return realPath
}

// symlinkedDir returns <tmp>/link, a symlink to a real directory.
func symlinkedDir(t *testing.T) string {
	t.Helper()
	dir := safeTempDir(t)
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0o750))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))
	return link
}

func TestSafeReadFile(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		want    string
		wantErr error
		anyErr  bool
	}{
		{
			name: "regular file",
			path: func(t *testing.T) string {
				p := filepath.Join(safeTempDir(t), "framestore.toml")
				require.NoError(t, os.WriteFile(p, []byte("digit_width = 4"), 0o600))
				return p
			},
			want: "digit_width = 4",
		},
		{
			name:   "missing file",
			path:   func(t *testing.T) string { return filepath.Join(safeTempDir(t), "missing.toml") },
			anyErr: true,
		},
		{
			name:    "directory",
			path:    safeTempDir,
			wantErr: ErrInvalidFilePath,
		},
		{
			name: "symlink to file",
			path: func(t *testing.T) string {
				dir := safeTempDir(t)
				target := filepath.Join(dir, "target.toml")
				require.NoError(t, os.WriteFile(target, []byte("x"), 0o600))
				link := filepath.Join(dir, "link.toml")
				require.NoError(t, os.Symlink(target, link))
				return link
			},
			wantErr: ErrIsSymlink,
		},
		{
			name: "file in symlinked directory",
			path: func(t *testing.T) string {
				link := symlinkedDir(t)
				require.NoError(t, os.WriteFile(filepath.Join(link, "in.b64"), []byte("x"), 0o600))
				return filepath.Join(link, "in.b64")
			},
			wantErr: ErrIsSymlink,
		},
		{
			name: "file too large",
			path: func(t *testing.T) string {
				p := filepath.Join(safeTempDir(t), "huge.b64")
				f, err := os.Create(p)
				require.NoError(t, err)
				defer f.Close()
				require.NoError(t, f.Truncate(MaxFileSize+1))
				return p
			},
			wantErr: ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeReadFile(tt.path(t))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				return
			case tt.anyErr:
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestSafeOpenFile_OpenFailure(t *testing.T) {
	orig := openFile
	t.Cleanup(func() { openFile = orig })

	errDenied := &os.PathError{Op: "open", Path: "x", Err: syscall.EACCES}
	openFile = func(string, int, os.FileMode) (*os.File, error) { return nil, errDenied }

	_, err := SafeOpenFile(filepath.Join(safeTempDir(t), "x"), os.O_RDONLY, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.EACCES)
}

func writeTemp(t *testing.T, dir, content string) string {
	t.Helper()
	f, err := os.CreateTemp(dir, ".tmp-*")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestPublishNoClobber(t *testing.T) {
	t.Run("publishes to a free name and removes the temp file", func(t *testing.T) {
		dir := safeTempDir(t)
		tmp := writeTemp(t, dir, "frame")
		final := filepath.Join(dir, "001.jpg")

		require.NoError(t, PublishNoClobber(testutil.NewFaultFileSystem(), tmp, final))

		got, err := os.ReadFile(final)
		require.NoError(t, err)
		assert.Equal(t, "frame", string(got))
		_, err = os.Lstat(tmp)
		assert.True(t, os.IsNotExist(err), "temp file should be gone")
	})

	t.Run("existing target is never replaced", func(t *testing.T) {
		dir := safeTempDir(t)
		tmp := writeTemp(t, dir, "new")
		final := filepath.Join(dir, "001.jpg")
		require.NoError(t, os.WriteFile(final, []byte("old"), 0o600))

		err := PublishNoClobber(testutil.NewFaultFileSystem(), tmp, final)
		assert.ErrorIs(t, err, ErrFileExists)

		got, err := os.ReadFile(final)
		require.NoError(t, err)
		assert.Equal(t, "old", string(got))
		_, err = os.Lstat(tmp)
		assert.NoError(t, err, "temp file is left for the caller")
	})

	t.Run("falls back to reservation when links are unsupported", func(t *testing.T) {
		dir := safeTempDir(t)
		tmp := writeTemp(t, dir, "frame")
		final := filepath.Join(dir, "002.jpg")

		fsys := testutil.NewFaultFileSystem()
		fsys.LinkFunc = func(oldname, newname string) error {
			return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.ENOTSUP}
		}

		require.NoError(t, PublishNoClobber(fsys, tmp, final))
		got, err := os.ReadFile(final)
		require.NoError(t, err)
		assert.Equal(t, "frame", string(got))
	})

	t.Run("fallback still refuses an existing target", func(t *testing.T) {
		dir := safeTempDir(t)
		tmp := writeTemp(t, dir, "frame")
		final := filepath.Join(dir, "003.jpg")
		require.NoError(t, os.WriteFile(final, []byte("old"), 0o600))

		fsys := testutil.NewFaultFileSystem()
		fsys.LinkFunc = func(oldname, newname string) error {
			return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EXDEV}
		}

		err := PublishNoClobber(fsys, tmp, final)
		assert.ErrorIs(t, err, ErrFileExists)
	})

	t.Run("other link errors are reported", func(t *testing.T) {
		dir := safeTempDir(t)
		tmp := writeTemp(t, dir, "frame")
		final := filepath.Join(dir, "004.jpg")
		errNoSpace := &os.LinkError{Op: "link", Old: tmp, New: final, Err: syscall.ENOSPC}

		fsys := testutil.NewFaultFileSystem()
		fsys.LinkFunc = func(string, string) error { return errNoSpace }

		err := PublishNoClobber(fsys, tmp, final)
		require.Error(t, err)
		assert.True(t, errors.Is(err, syscall.ENOSPC))
		_, statErr := os.Lstat(final)
		assert.True(t, os.IsNotExist(statErr), "nothing may occupy the target name")
	})
	t.Run("fallback reserves through the file system", func(t *testing.T) {
		dir := safeTempDir(t)
		tmp := writeTemp(t, dir, "frame")
		final := filepath.Join(dir, "005.jpg")
		errReadOnly := &os.PathError{Op: "open", Path: final, Err: syscall.EROFS}

		fsys := testutil.NewFaultFileSystem()
		fsys.LinkFunc = func(oldname, newname string) error {
			return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EPERM}
		}
		var reserved []string
		fsys.OpenFileFunc = func(name string, _ int, _ os.FileMode) (*os.File, error) {
			reserved = append(reserved, name)
			return nil, errReadOnly
		}

		err := PublishNoClobber(fsys, tmp, final)
		assert.ErrorIs(t, err, syscall.EROFS)
		assert.Equal(t, []string{final}, reserved)
		_, statErr := os.Lstat(final)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("fallback treats a symlinked target as taken", func(t *testing.T) {
		dir := safeTempDir(t)
		tmp := writeTemp(t, dir, "frame")
		victim := filepath.Join(dir, "victim")
		require.NoError(t, os.WriteFile(victim, []byte("keep"), 0o600))
		final := filepath.Join(dir, "006.jpg")
		require.NoError(t, os.Symlink(victim, final))

		fsys := testutil.NewFaultFileSystem()
		fsys.LinkFunc = func(oldname, newname string) error {
			return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.ENOTSUP}
		}

		err := PublishNoClobber(fsys, tmp, final)
		assert.ErrorIs(t, err, ErrFileExists)
		got, err := os.ReadFile(victim)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(got))
	})

	t.Run("directory reached through a symlink", func(t *testing.T) {
		for _, unsupported := range []bool{false, true} {
			link := symlinkedDir(t)
			tmp := writeTemp(t, link, "frame")
			final := filepath.Join(link, "007.jpg")

			fsys := testutil.NewFaultFileSystem()
			if unsupported {
				fsys.LinkFunc = func(oldname, newname string) error {
					return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.ENOTSUP}
				}
			}

			require.NoError(t, PublishNoClobber(fsys, tmp, final), "links unsupported: %v", unsupported)
			got, err := os.ReadFile(final)
			require.NoError(t, err)
			assert.Equal(t, "frame", string(got))
		}
	})
}
