// Package filesystem provides path validation and the temp-file/rename
// helpers a disk-backed FileSink needs to make upload finalization atomic.
package filesystem

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"rdtxfer/internal/config"
	"rdtxfer/internal/errors"
)

// ValidateFilename rejects names that could escape the storage directory
// or that are otherwise not safe to use as a single path segment.
func ValidateFilename(name string) error {
	if name == "" {
		return errors.NewLocalIO("validate_filename", name, os.ErrInvalid)
	}
	if name != filepath.Base(name) {
		return errors.NewLocalIO("validate_filename", name, os.ErrInvalid)
	}
	if strings.Contains(name, "..") {
		return errors.NewLocalIO("validate_filename", name, os.ErrInvalid)
	}
	return nil
}

// EnsureDirectoryExists creates dir (and parents) if it doesn't exist.
func EnsureDirectoryExists(dir string) error {
	if err := os.MkdirAll(dir, config.DirPerms); err != nil {
		return errors.NewLocalIO("mkdir", dir, err)
	}
	return nil
}

// TempPath returns a randomized in-progress path for name inside dir, of
// the form "<dir>/<name>.<suffix>.part". The suffix comes from
// crypto/rand so concurrent uploads to the same name never collide.
func TempPath(dir, name string) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", errors.NewLocalIO("temp_path", name, err)
	}
	return filepath.Join(dir, name+"."+suffix+".part"), nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// FinalizeUpload atomically publishes tempPath as finalPath. On most
// filesystems os.Rename is atomic within the same directory, so a reader
// listing dir never observes a partially written file under the final name.
func FinalizeUpload(tempPath, finalPath string) error {
	if err := os.Rename(tempPath, finalPath); err != nil {
		return errors.NewLocalIO("rename", finalPath, err)
	}
	return nil
}

// AbortUpload removes a temp file left behind by a failed or peer-gone
// transfer. Missing files are not an error.
func AbortUpload(tempPath string) error {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return errors.NewLocalIO("remove", tempPath, err)
	}
	return nil
}

// FileSize returns the size in bytes of the file at path.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.NewLocalIO("stat", path, err)
	}
	return info.Size(), nil
}
