package wire

import (
	"encoding/binary"
	"fmt"
)

// Operation names what a transfer does to the server's file store.
type Operation uint8

const (
	Upload Operation = iota + 1
	Download
)

func (op Operation) String() string {
	switch op {
	case Upload:
		return "UPLOAD"
	case Download:
		return "DOWNLOAD"
	default:
		return "UNKNOWN"
	}
}

// ARQKind names the negotiated retransmission strategy.
type ARQKind uint8

const (
	StopAndWait ARQKind = iota + 1
	SelectiveRepeat
)

func (k ARQKind) String() string {
	switch k {
	case StopAndWait:
		return "stop_and_wait"
	case SelectiveRepeat:
		return "selective_repeat"
	default:
		return "unknown"
	}
}

// ParseARQKind maps a CLI -r flag value to an ARQKind.
func ParseARQKind(s string) (ARQKind, error) {
	switch s {
	case "stop_and_wait":
		return StopAndWait, nil
	case "selective_repeat":
		return SelectiveRepeat, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", s)
	}
}

// Negotiation is the payload carried by the client's initial SYN: the
// requested operation, the target filename, and the ARQ protocol the
// client wants to use for the data phase.
//
// The original Python source encodes this as a colon-delimited string
// ("UPLOAD:name.txt:stop_and_wait"); this implementation length-prefixes
// the filename instead, since filenames may legally contain ':'.
type Negotiation struct {
	Operation Operation
	Filename  string
	Protocol  ARQKind
}

// EncodeNegotiation serializes n as a SYN payload:
// [op 1][protocol 1][filename_len 2][filename_len bytes].
func EncodeNegotiation(n Negotiation) []byte {
	name := []byte(n.Filename)
	buf := make([]byte, 1+1+2+len(name))
	buf[0] = byte(n.Operation)
	buf[1] = byte(n.Protocol)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(name)))
	copy(buf[4:], name)
	return buf
}

// DecodeNegotiation parses a SYN payload produced by EncodeNegotiation.
func DecodeNegotiation(payload []byte) (Negotiation, error) {
	if len(payload) < 4 {
		return Negotiation{}, fmt.Errorf("wire: negotiation payload too short")
	}
	op := Operation(payload[0])
	proto := ARQKind(payload[1])
	nameLen := binary.BigEndian.Uint16(payload[2:4])
	if int(4+nameLen) != len(payload) {
		return Negotiation{}, fmt.Errorf("wire: negotiation filename length mismatch")
	}
	if op != Upload && op != Download {
		return Negotiation{}, fmt.Errorf("wire: unknown operation %d", op)
	}
	if proto != StopAndWait && proto != SelectiveRepeat {
		return Negotiation{}, fmt.Errorf("wire: unknown protocol %d", proto)
	}
	return Negotiation{
		Operation: op,
		Filename:  string(payload[4:]),
		Protocol:  proto,
	}, nil
}

// EncodeSynAck serializes the server's SYN|ACK payload: for a DOWNLOAD,
// the file size in bytes; for an UPLOAD, an empty payload is equally
// valid (fileSize is ignored by the receiver in that case).
func EncodeSynAck(fileSize int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(fileSize))
	return buf
}

// DecodeSynAck parses the server's SYN|ACK payload. An empty payload
// (upload acknowledgement only) decodes to size 0.
func DecodeSynAck(payload []byte) (int64, error) {
	if len(payload) == 0 {
		return 0, nil
	}
	if len(payload) != 8 {
		return 0, fmt.Errorf("wire: malformed SYN|ACK payload")
	}
	return int64(binary.BigEndian.Uint64(payload)), nil
}
