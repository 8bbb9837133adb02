package fileutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"fjacquet/budget-sync/internal/fileutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test"), 0600))

	assert.True(t, fileutils.FileExists(testFile))
	assert.False(t, fileutils.FileExists(filepath.Join(tmpDir, "nonexistent.txt")))
	// Directories are not files
	assert.False(t, fileutils.FileExists(tmpDir))
}

func TestDirectoryExists(t *testing.T) {
	tmpDir := t.TempDir()

	assert.True(t, fileutils.DirectoryExists(tmpDir))
	assert.False(t, fileutils.DirectoryExists(filepath.Join(tmpDir, "nonexistent")))

	testFile := filepath.Join(tmpDir, "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test"), 0600))
	assert.False(t, fileutils.DirectoryExists(testFile))
}

func TestEnsureDirectoryExists(t *testing.T) {
	tmpDir := t.TempDir()

	newDir := filepath.Join(tmpDir, "new", "nested", "dir")
	require.NoError(t, fileutils.EnsureDirectoryExists(newDir))
	assert.True(t, fileutils.DirectoryExists(newDir))

	// Existing directory is fine
	assert.NoError(t, fileutils.EnsureDirectoryExists(newDir))
}

func TestWriteFileAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "sub", "memory.yaml")

	require.NoError(t, fileutils.WriteFileAtomic(target, []byte("first"), 0600))
	require.NoError(t, fileutils.WriteFileAtomic(target, []byte("second"), 0600))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestRemoveIfExists(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "x")
	require.NoError(t, os.WriteFile(f, nil, 0600))

	assert.NoError(t, fileutils.RemoveIfExists(f))
	assert.False(t, fileutils.FileExists(f))
	assert.NoError(t, fileutils.RemoveIfExists(f))
}

func TestListFilesWithExtension(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"b.eml", "a.EML", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), nil, 0600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "nested"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "nested", "d.eml"), nil, 0600))

	files, err := fileutils.ListFilesWithExtension(tmpDir, ".eml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(tmpDir, "a.EML"),
		filepath.Join(tmpDir, "b.eml"),
		filepath.Join(tmpDir, "nested", "d.eml"),
	}, files)

	_, err = fileutils.ListFilesWithExtension(filepath.Join(tmpDir, "missing"), ".eml")
	assert.Error(t, err)
}
