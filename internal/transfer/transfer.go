// Package transfer defines the FileSource/FileSink collaborator
// interfaces spec.md §6 names and their disk-backed implementations. A
// Session drives these; neither interface knows about sockets, ARQ, or
// the wire format.
package transfer

import (
	"io"
	"os"
	"path/filepath"

	"rdtxfer/internal/config"
	"rdtxfer/internal/errors"
	"rdtxfer/internal/filesystem"
)

// FileSource is read by an upload sender or a download sender.
type FileSource interface {
	// Size returns the total byte count, known up front for a plain file.
	Size() (int64, error)
	// ReadAt reads up to maxBytes starting at offset. Returns io.EOF once
	// offset has reached the end of the source.
	ReadAt(offset int64, maxBytes int) ([]byte, error)
	// Close releases any underlying handle.
	Close() error
}

// FileSink is written by an upload receiver or a download receiver.
// Appends are strictly sequential — callers never write out of order.
type FileSink interface {
	Append(chunk []byte) error
	Finalize() error
	Abort() error
}

// DiskSource reads a file in chunks for sending.
type DiskSource struct {
	file *os.File
	size int64
}

// OpenDiskSource opens path for reading as a FileSource.
func OpenDiskSource(path string) (*DiskSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewLocalIO("open_source", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.NewLocalIO("stat_source", path, err)
	}
	return &DiskSource{file: f, size: info.Size()}, nil
}

func (s *DiskSource) Size() (int64, error) { return s.size, nil }

func (s *DiskSource) ReadAt(offset int64, maxBytes int) ([]byte, error) {
	buf := make([]byte, maxBytes)
	n, err := s.file.ReadAt(buf, offset)
	if n > 0 {
		return buf[:n], nil
	}
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.NewLocalIO("read_source", s.file.Name(), err)
	}
	return nil, io.EOF
}

func (s *DiskSource) Close() error { return s.file.Close() }

// DiskSink writes an upload to a temp path inside dir and atomically
// renames it into place on Finalize, resolving concurrent same-name
// uploads without a cross-session lock.
type DiskSink struct {
	dir       string
	finalName string
	tempPath  string
	file      *os.File
}

// CreateDiskSink opens a fresh temp file for name inside dir.
func CreateDiskSink(dir, name string) (*DiskSink, error) {
	if err := filesystem.ValidateFilename(name); err != nil {
		return nil, err
	}
	tempPath, err := filesystem.TempPath(dir, name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, config.FilePerms)
	if err != nil {
		return nil, errors.NewLocalIO("create_sink", tempPath, err)
	}
	return &DiskSink{dir: dir, finalName: name, tempPath: tempPath, file: f}, nil
}

func (s *DiskSink) Append(chunk []byte) error {
	if _, err := s.file.Write(chunk); err != nil {
		return errors.NewLocalIO("append", s.tempPath, err)
	}
	return nil
}

func (s *DiskSink) Finalize() error {
	if err := s.file.Close(); err != nil {
		return errors.NewLocalIO("close_sink", s.tempPath, err)
	}
	finalPath := filepath.Join(s.dir, s.finalName)
	return filesystem.FinalizeUpload(s.tempPath, finalPath)
}

func (s *DiskSink) Abort() error {
	s.file.Close()
	return filesystem.AbortUpload(s.tempPath)
}
