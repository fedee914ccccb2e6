// Package logging configures the process-wide structured logger. Console
// output goes through a prefixed formatter for readability; file output is
// newline-delimited and rotated by size.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"rdtxfer/internal/errors"
	"rdtxfer/internal/filesystem"
)

// Verbosity selects which levels reach the console. Trace is only ever
// enabled by -v; -q silences everything but warnings and errors.
type Verbosity int

const (
	Quiet Verbosity = iota
	Normal
	Verbose
)

// Setup builds a new logrus logger that writes each entry, in the same
// prefixed text format, both to stderr and to a rotating log file under
// logDir.
func Setup(logDir string, verbosity Verbosity) (*logrus.Logger, error) {
	if err := filesystem.EnsureDirectoryExists(logDir); err != nil {
		return nil, errors.NewLocalIO("setup_logging", logDir, err)
	}

	logger := logrus.New()
	logger.SetLevel(levelFor(verbosity))

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "rdtxfer.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	console := &prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		ForceFormatting: true,
	}
	logger.SetFormatter(console)
	logger.SetOutput(io.MultiWriter(os.Stderr, rotator))

	logger.WithField("session", time.Now().Format("20060102_150405")).Info("logging initialized")
	return logger, nil
}

func levelFor(v Verbosity) logrus.Level {
	switch v {
	case Quiet:
		return logrus.WarnLevel
	case Verbose:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// LogSessionEvent records a session lifecycle transition.
func LogSessionEvent(log *logrus.Logger, sessionID, addr, from, to string) {
	log.WithFields(logrus.Fields{
		"session": sessionID,
		"peer":    addr,
		"from":    from,
		"to":      to,
	}).Info("session state transition")
}

// LogTransferProgress reports bytes moved so far for a transfer.
func LogTransferProgress(log *logrus.Logger, sessionID, filename string, transferred, total int64) {
	percent := float64(0)
	if total > 0 {
		percent = float64(transferred) / float64(total) * 100
	}
	log.WithFields(logrus.Fields{
		"session":     sessionID,
		"file":        filename,
		"transferred": transferred,
		"total":       total,
		"percent":     percent,
	}).Debug("transfer progress")
}

// LogTransferComplete reports a finished transfer and its throughput.
func LogTransferComplete(log *logrus.Logger, sessionID, filename string, size int64, duration time.Duration) {
	rate := float64(0)
	if duration > 0 {
		rate = float64(size) / duration.Seconds() / 1024
	}
	log.WithFields(logrus.Fields{
		"session":      sessionID,
		"file":         filename,
		"bytes":        size,
		"duration_ms":  duration.Milliseconds(),
		"rate_kib_sec": rate,
	}).Info("transfer completed")
}

// LogDroppedDatagram records a datagram that failed to decode, at trace
// level. Per protocol,
// malformed datagrams are never surfaced to the peer, only logged.
func LogDroppedDatagram(log *logrus.Logger, addr string, err error) {
	log.WithFields(logrus.Fields{
		"peer":  addr,
		"error": err,
	}).Trace("dropped malformed datagram")
}

// LogError records a protocol-level error with the fields relevant to its kind.
func LogError(log *logrus.Logger, context string, err error) {
	entry := log.WithField("context", context)
	switch e := err.(type) {
	case *errors.CodecError:
		entry.WithField("op", e.Op).Trace(e.Error())
	case *errors.HandshakeFailed:
		entry.WithFields(logrus.Fields{"peer": e.Addr, "retries": e.Retries}).Error(e.Error())
	case *errors.PeerError:
		entry.WithFields(logrus.Fields{"peer": e.Addr, "code": e.Code}).Warn(e.Error())
	case *errors.PeerGone:
		entry.WithField("peer", e.Addr).Warn(e.Error())
	case *errors.LocalIO:
		entry.WithFields(logrus.Fields{"op": e.Op, "path": e.Path}).Error(e.Error())
	case *errors.ProtocolViolation:
		entry.WithFields(logrus.Fields{"state": e.State, "flags": e.Flags}).Error(e.Error())
	default:
		entry.Error(err.Error())
	}
}
