// Package arq implements the two interchangeable reliability strategies a
// Session can run over the wire codec: Stop-and-Wait and Selective Repeat.
// Neither engine touches a socket; a Session feeds them decoded packets and
// clock ticks, and sends whatever they hand back.
package arq

import "time"

// OutSegment is a single DATA segment a Session should (re)transmit.
type OutSegment struct {
	Seq     uint32
	Payload []byte
}

// SendAdmission is the result of OfferSend. When Admitted is false the
// engine's window is full; the caller must hold onto payload and retry
// the same call after an OnAck frees capacity.
type SendAdmission struct {
	Admitted bool
	Segment  OutSegment
}

// DataOutcome classifies what happened to an inbound DATA packet.
type DataOutcome int

const (
	// Delivered means one or more chunks are now ready, in order, for
	// the FileSink; Chunks holds them oldest-first.
	Delivered DataOutcome = iota
	// Buffered means the segment was stored (Selective Repeat only,
	// received ahead of the in-order cursor) but nothing is deliverable yet.
	Buffered
	// Duplicate means the segment was already delivered; its ACK is
	// re-sent to recover a peer that lost the original.
	Duplicate
	// OutOfWindow means the segment falls outside the receive window and
	// was dropped silently; per spec, no ACK is sent for it.
	OutOfWindow
)

// DataResult is the result of OnData.
type DataResult struct {
	Outcome   DataOutcome
	Chunks    [][]byte
	AckNumber uint32
	SendAck   bool
}

// Engine is the capability set spec.md §4.2 requires of both ARQ
// strategies. A Session drives a subset of these methods depending on
// whether it is acting as sender or receiver for this direction.
type Engine interface {
	// OfferSend admits payload into the send pipeline.
	OfferSend(payload []byte) SendAdmission
	// OnAck consumes an incoming ACK packet, advancing the send window.
	OnAck(ackNumber uint32)
	// OnData consumes an incoming DATA packet.
	OnData(seq uint32, payload []byte) DataResult
	// Tick fires any timers expired as of now, returning segments to
	// retransmit.
	Tick(now time.Time) []OutSegment
	// Drain signals no more local sends are coming.
	Drain()
	// Done reports whether Drain was called and every outstanding
	// segment has been acknowledged.
	Done() bool
	// Outstanding returns the number of unacknowledged in-flight segments.
	Outstanding() int
}

// clock wraps a fixed RTO so both engines arm timers the same way. Per
// spec.md §4.2, RTT estimation is optional; both engines use a fixed
// timeout rather than adding complexity the spec doesn't require.
type clock struct {
	rto time.Duration
}

func (c clock) deadline(from time.Time) time.Time { return from.Add(c.rto) }
