// Command download fetches a file from a start-server instance.
package main

import (
	"fmt"
	"os"
	"strings"

	"rdtxfer/internal/client"
	"rdtxfer/internal/config"
	"rdtxfer/internal/errors"
	"rdtxfer/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.ParseDownloadFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	verbosity := logging.Normal
	switch {
	case cfg.Verbose:
		verbosity = logging.Verbose
	case cfg.Quiet:
		verbosity = logging.Quiet
	}
	log, err := logging.Setup(config.DefaultLogDir, verbosity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := client.Download(cfg, log); err != nil {
		log.WithError(err).Error("download failed")
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch e := err.(type) {
	case *errors.LocalIO:
		switch e.Op {
		case "create_sink", "append", "close_sink", "rename", "remove", "temp_path", "mkdir", "validate_filename":
			return 3
		}
		return 1
	case *errors.PeerError:
		if strings.Contains(e.Reason, "remote file not found") {
			return 5
		}
		return 4
	default:
		return 1
	}
}
