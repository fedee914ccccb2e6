// Command start-server runs the RDT listener described by spec.md §4.6:
// a single well-known UDP socket demultiplexing SYNs across a bounded
// worker pool, each worker a Session on its own ephemeral port.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rdtxfer/internal/config"
	"rdtxfer/internal/logging"
	"rdtxfer/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.ParseServerFlags(args)
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

	srv := server.New(cfg, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		srv.Stop()
	}()

	if err := srv.Run(); err != nil {
		log.WithError(err).Error("server exited")
		return 1
	}
	return 0
}
