package arq

import "time"

// StopAndWait implements spec.md §4.2.1: a window of exactly one
// unacknowledged segment in each direction.
type StopAndWait struct {
	clock clock

	// sender side
	draining    bool
	hasOutbound bool
	out         OutSegment
	sentAt      time.Time

	// receiver side
	expected uint32
}

// NewStopAndWait constructs a Stop-and-Wait engine with the given fixed RTO.
func NewStopAndWait(rto time.Duration) *StopAndWait {
	return &StopAndWait{clock: clock{rto: rto}}
}

// OfferSend admits payload only while no segment is outstanding.
func (e *StopAndWait) OfferSend(payload []byte) SendAdmission {
	if e.hasOutbound {
		return SendAdmission{Admitted: false}
	}
	seq := e.out.Seq
	if e.sentAt.IsZero() {
		seq = 0
	} else {
		seq = e.out.Seq + 1
	}
	e.out = OutSegment{Seq: seq, Payload: payload}
	e.hasOutbound = true
	e.sentAt = time.Now()
	return SendAdmission{Admitted: true, Segment: e.out}
}

// OnAck clears the outstanding segment once its sequence is acknowledged.
// Per §4.2.1 ACKs are cumulative in the degenerate sense: ack_number names
// the next expected sequence, i.e. one past the segment being confirmed.
func (e *StopAndWait) OnAck(ackNumber uint32) {
	if e.hasOutbound && ackNumber == e.out.Seq+1 {
		e.hasOutbound = false
	}
}

// OnData implements the receiver half: deliver in-order, silently drop
// ahead-of-window duplicates-of-the-future, and re-ACK stale duplicates.
func (e *StopAndWait) OnData(seq uint32, payload []byte) DataResult {
	switch {
	case seq == e.expected:
		e.expected++
		return DataResult{Outcome: Delivered, Chunks: [][]byte{payload}, AckNumber: e.expected, SendAck: true}
	case seq < e.expected:
		return DataResult{Outcome: Duplicate, AckNumber: e.expected, SendAck: true}
	default:
		return DataResult{Outcome: OutOfWindow, SendAck: false}
	}
}

// Tick retransmits the single outstanding segment once its RTO has elapsed.
func (e *StopAndWait) Tick(now time.Time) []OutSegment {
	if !e.hasOutbound {
		return nil
	}
	if now.Before(e.clock.deadline(e.sentAt)) {
		return nil
	}
	e.sentAt = now
	return []OutSegment{e.out}
}

func (e *StopAndWait) Drain() { e.draining = true }

func (e *StopAndWait) Done() bool { return e.draining && !e.hasOutbound }

func (e *StopAndWait) Outstanding() int {
	if e.hasOutbound {
		return 1
	}
	return 0
}
