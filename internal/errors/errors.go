// Package errors defines the typed error kinds the protocol can raise.
// Each kind carries enough context to log and to pick a process exit code.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is against the concrete kinds below.
var (
	ErrCodec             = errors.New("codec error")
	ErrHandshakeFailed   = errors.New("handshake failed")
	ErrPeer              = errors.New("peer error")
	ErrPeerGone          = errors.New("peer gone")
	ErrLocalIO           = errors.New("local io error")
	ErrProtocolViolation = errors.New("protocol violation")
)

// Numeric codes per error kind, as returned by CodeOf, descended from the
// original Python server's "001:<message>" convention. ERR packets sent by
// the server carry only the reason text, without a code prefix.
const (
	CodeCodec             = 1
	CodeHandshakeFailed   = 2
	CodePeer              = 3
	CodePeerGone          = 4
	CodeLocalIO           = 5
	CodeProtocolViolation = 6
)

// CodecError wraps a malformed-datagram condition. Per spec this is never
// surfaced to the peer — the caller logs it at trace level and drops the
// datagram silently.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string { return fmt.Sprintf("codec error during %s: %v", e.Op, e.Err) }
func (e *CodecError) Unwrap() error { return e.Err }
func (e *CodecError) Is(target error) bool { return target == ErrCodec }

// HandshakeFailed means SYN retries were exhausted without a SYN|ACK.
type HandshakeFailed struct {
	Addr    string
	Retries int
}

func (e *HandshakeFailed) Error() string {
	return fmt.Sprintf("handshake with %s failed after %d retries", e.Addr, e.Retries)
}
func (e *HandshakeFailed) Is(target error) bool { return target == ErrHandshakeFailed }

// PeerError means the remote end sent an ERR packet; Reason is its payload.
type PeerError struct {
	Addr   string
	Code   int
	Reason string
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer %s reported error %d: %s", e.Addr, e.Code, e.Reason)
}
func (e *PeerError) Is(target error) bool { return target == ErrPeer }

// PeerGone means no packet arrived from the peer for MaxIdle.
type PeerGone struct {
	Addr string
	Idle string
}

func (e *PeerGone) Error() string {
	return fmt.Sprintf("peer %s idle for %s, presumed gone", e.Addr, e.Idle)
}
func (e *PeerGone) Is(target error) bool { return target == ErrPeerGone }

// LocalIO wraps a FileSource/FileSink failure. The session that hits one
// aborts its transfer; no ERR packet is sent to the peer.
type LocalIO struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIO) Error() string {
	return fmt.Sprintf("local io error during %s on %s: %v", e.Op, e.Path, e.Err)
}
func (e *LocalIO) Unwrap() error { return e.Err }
func (e *LocalIO) Is(target error) bool { return target == ErrLocalIO }

// ProtocolViolation means a packet's flags were impossible for the current
// session state. The session and server code never construct one: packets
// with unexpected flags are ignored, and no ERR is sent for them.
type ProtocolViolation struct {
	State   string
	Flags   string
	Message string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation in state %s (flags=%s): %s", e.State, e.Flags, e.Message)
}
func (e *ProtocolViolation) Is(target error) bool { return target == ErrProtocolViolation }

// Constructors, mirroring the teacher's New<Kind>Error helper style.

func NewCodecError(op string, err error) error { return &CodecError{Op: op, Err: err} }

func NewHandshakeFailed(addr string, retries int) error {
	return &HandshakeFailed{Addr: addr, Retries: retries}
}

func NewPeerError(addr string, code int, reason string) error {
	return &PeerError{Addr: addr, Code: code, Reason: reason}
}

func NewPeerGone(addr, idle string) error { return &PeerGone{Addr: addr, Idle: idle} }

func NewLocalIO(op, path string, err error) error { return &LocalIO{Op: op, Path: path, Err: err} }

func NewProtocolViolation(state, flags, message string) error {
	return &ProtocolViolation{State: state, Flags: flags, Message: message}
}

// CodeOf maps an error produced by this package to its wire code, for
// embedding in an ERR packet's payload. Errors not recognized here return 0.
func CodeOf(err error) int {
	switch {
	case errors.Is(err, ErrCodec):
		return CodeCodec
	case errors.Is(err, ErrHandshakeFailed):
		return CodeHandshakeFailed
	case errors.Is(err, ErrPeer):
		return CodePeer
	case errors.Is(err, ErrPeerGone):
		return CodePeerGone
	case errors.Is(err, ErrLocalIO):
		return CodeLocalIO
	case errors.Is(err, ErrProtocolViolation):
		return CodeProtocolViolation
	default:
		return 0
	}
}
