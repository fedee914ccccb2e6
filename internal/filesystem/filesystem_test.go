package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdtxfer/internal/config"
)

func TestEnsureDirectoryExists(t *testing.T) {
	tmpDir := os.TempDir()
	testDir := filepath.Join(tmpDir, "rdtxfer_test_dir")
	defer os.RemoveAll(testDir)

	assert.NoError(t, EnsureDirectoryExists(testDir))

	info, err := os.Stat(testDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureDirectoryExists(testDir))
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("report.txt"))
	assert.Error(t, ValidateFilename(""))
	assert.Error(t, ValidateFilename("../report.txt"))
	assert.Error(t, ValidateFilename("dir/report.txt"))
	assert.Error(t, ValidateFilename("/etc/passwd"))
}

func TestTempPathIsUniqueAndUnderDir(t *testing.T) {
	a, err := TempPath("/srv/files", "report.txt")
	require.NoError(t, err)
	b, err := TempPath("/srv/files", "report.txt")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, filepath.Dir(a) == "/srv/files")
	assert.Contains(t, a, "report.txt.")
	assert.Contains(t, a, ".part")
}

func TestFinalizeUploadRenamesIntoPlace(t *testing.T) {
	dir := t.TempDir()
	tempPath := filepath.Join(dir, "report.txt.abc123.part")
	finalPath := filepath.Join(dir, "report.txt")

	require.NoError(t, os.WriteFile(tempPath, []byte("payload"), config.FilePerms))

	require.NoError(t, FinalizeUpload(tempPath, finalPath))

	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = os.Stat(tempPath)
	assert.True(t, os.IsNotExist(err))
}

func TestAbortUploadRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	tempPath := filepath.Join(dir, "report.txt.abc123.part")
	require.NoError(t, os.WriteFile(tempPath, []byte("partial"), config.FilePerms))

	require.NoError(t, AbortUpload(tempPath))

	_, err := os.Stat(tempPath)
	assert.True(t, os.IsNotExist(err))
}

func TestAbortUploadMissingFileIsNotError(t *testing.T) {
	assert.NoError(t, AbortUpload(filepath.Join(t.TempDir(), "missing.part")))
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 42), config.FilePerms))

	size, err := FileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)
}
