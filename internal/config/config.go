// Package config defines one flag set per binary (start-server, upload,
// download) and validates the parsed result before the caller wires up
// networking.
package config

import (
	"flag"
	"fmt"
	"time"
)

// Defaults, descended from the original Python server_config.py.
const (
	DefaultAddr         = "127.0.0.1"
	DefaultPort         = 12000
	DefaultStorageDir   = "./server_files"
	DefaultDownloadDir  = "."
	DefaultWorkers      = 3
	DefaultLogDir       = "./logs"
	DefaultWindowSize   = 32
	DefaultRTO          = 80 * time.Millisecond
	DefaultMaxSynTries  = 10
	DefaultMaxIdle      = 30 * time.Second
	DirPerms            = 0755
	FilePerms           = 0644
)

// ARQ protocol names accepted by the -r flag on upload/download.
const (
	ProtoStopAndWait     = "stop_and_wait"
	ProtoSelectiveRepeat = "selective_repeat"
)

// ServerConfig configures the start-server binary.
type ServerConfig struct {
	Addr       string
	Port       int
	StorageDir string
	Workers    int
	Verbose    bool
	Quiet      bool
}

// Validate checks a ServerConfig for internal consistency.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("address must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", c.Port)
	}
	if c.StorageDir == "" {
		return fmt.Errorf("storage directory must not be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Verbose && c.Quiet {
		return fmt.Errorf("-v and -q are mutually exclusive")
	}
	return nil
}

// ParseServerFlags parses the start-server CLI: [-h] [-v|-q] [-H addr] [-p port] [-s dirpath].
func ParseServerFlags(args []string) (*ServerConfig, error) {
	fs := flag.NewFlagSet("start-server", flag.ContinueOnError)
	addr := fs.String("H", DefaultAddr, "address to listen on")
	port := fs.Int("p", DefaultPort, "port to listen on")
	dir := fs.String("s", DefaultStorageDir, "directory to store uploaded files")
	verbose := fs.Bool("v", false, "verbose (trace) logging")
	quiet := fs.Bool("q", false, "quiet (warnings and errors only)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Addr:       *addr,
		Port:       *port,
		StorageDir: *dir,
		Workers:    DefaultWorkers,
		Verbose:    *verbose,
		Quiet:      *quiet,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	return cfg, nil
}

// TransferConfig configures the upload and download binaries. Direction is
// implied by which cmd/ binary parsed it, not stored here.
type TransferConfig struct {
	Addr     string
	Port     int
	Path     string // srcpath for upload, dstpath for download
	Name     string // remote filename
	Protocol string
	Verbose  bool
	Quiet    bool
}

// Validate checks a TransferConfig for internal consistency.
func (c *TransferConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("address must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", c.Port)
	}
	if c.Name == "" {
		return fmt.Errorf("-n (remote filename) is required")
	}
	if c.Protocol != ProtoStopAndWait && c.Protocol != ProtoSelectiveRepeat {
		return fmt.Errorf("-r must be %q or %q, got %q", ProtoStopAndWait, ProtoSelectiveRepeat, c.Protocol)
	}
	if c.Verbose && c.Quiet {
		return fmt.Errorf("-v and -q are mutually exclusive")
	}
	return nil
}

// ParseUploadFlags parses the upload CLI:
// [-h] [-v|-q] [-H addr] [-p port] -s srcpath -n name -r {stop_and_wait|selective_repeat}.
func ParseUploadFlags(args []string) (*TransferConfig, error) {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	addr := fs.String("H", DefaultAddr, "server address")
	port := fs.Int("p", DefaultPort, "server port")
	src := fs.String("s", "", "local file to upload (required)")
	name := fs.String("n", "", "remote filename to store as (required)")
	proto := fs.String("r", ProtoStopAndWait, "ARQ protocol: stop_and_wait or selective_repeat")
	verbose := fs.Bool("v", false, "verbose (trace) logging")
	quiet := fs.Bool("q", false, "quiet (warnings and errors only)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *src == "" {
		return nil, fmt.Errorf("-s (source path) is required")
	}

	cfg := &TransferConfig{
		Addr:     *addr,
		Port:     *port,
		Path:     *src,
		Name:     *name,
		Protocol: *proto,
		Verbose:  *verbose,
		Quiet:    *quiet,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload configuration: %w", err)
	}
	return cfg, nil
}

// ParseDownloadFlags parses the download CLI:
// [-h] [-v|-q] [-H addr] [-p port] [-d dstpath] -n name -r {...}.
func ParseDownloadFlags(args []string) (*TransferConfig, error) {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	addr := fs.String("H", DefaultAddr, "server address")
	port := fs.Int("p", DefaultPort, "server port")
	dst := fs.String("d", DefaultDownloadDir, "directory to save the downloaded file into")
	name := fs.String("n", "", "remote filename to fetch (required)")
	proto := fs.String("r", ProtoStopAndWait, "ARQ protocol: stop_and_wait or selective_repeat")
	verbose := fs.Bool("v", false, "verbose (trace) logging")
	quiet := fs.Bool("q", false, "quiet (warnings and errors only)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &TransferConfig{
		Addr:     *addr,
		Port:     *port,
		Path:     *dst,
		Name:     *name,
		Protocol: *proto,
		Verbose:  *verbose,
		Quiet:    *quiet,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid download configuration: %w", err)
	}
	return cfg, nil
}
