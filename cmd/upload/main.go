// Command upload sends a local file to a start-server instance.
package main

import (
	"fmt"
	"os"

	"rdtxfer/internal/client"
	"rdtxfer/internal/config"
	"rdtxfer/internal/errors"
	"rdtxfer/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.ParseUploadFlags(args)
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

	if err := client.Upload(cfg, log); err != nil {
		log.WithError(err).Error("upload failed")
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch e := err.(type) {
	case *errors.LocalIO:
		if e.Op == "open_source" || e.Op == "stat_source" || e.Op == "read_source" {
			return 3
		}
		return 1
	case *errors.PeerError:
		return 4
	default:
		return 1
	}
}
