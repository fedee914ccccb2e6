package arq

import "time"

// DefaultWindow is the Selective Repeat window size spec.md §4.2.2 fixes
// as the implementation default. Must be <= sequence space / 2.
const DefaultWindow = 32

// pendingOut is an in-flight, unacknowledged outbound segment.
type pendingOut struct {
	segment OutSegment
	sentAt  time.Time
	acked   bool
}

// SelectiveRepeat implements spec.md §4.2.2: a fixed-size sliding window
// with a per-segment retransmission timer on the sender, and an
// out-of-order receive buffer bounded to the same window on the receiver.
type SelectiveRepeat struct {
	clock  clock
	window int

	// sender side
	draining bool
	base     uint32
	nextSeq  uint32
	inflight map[uint32]*pendingOut

	// receiver side
	expected uint32
	buffered map[uint32][]byte
}

// NewSelectiveRepeat constructs a Selective Repeat engine with the given
// fixed per-segment RTO and window size.
func NewSelectiveRepeat(rto time.Duration, window int) *SelectiveRepeat {
	if window <= 0 {
		window = DefaultWindow
	}
	return &SelectiveRepeat{
		clock:    clock{rto: rto},
		window:   window,
		inflight: make(map[uint32]*pendingOut),
		buffered: make(map[uint32][]byte),
	}
}

// OfferSend admits payload as long as nextSeq - base < window.
func (e *SelectiveRepeat) OfferSend(payload []byte) SendAdmission {
	if e.nextSeq-e.base >= uint32(e.window) {
		return SendAdmission{Admitted: false}
	}
	seq := e.nextSeq
	e.nextSeq++
	seg := OutSegment{Seq: seq, Payload: payload}
	e.inflight[seq] = &pendingOut{segment: seg, sentAt: time.Now()}
	return SendAdmission{Admitted: true, Segment: seg}
}

// OnAck marks segment ackNumber acknowledged and, if it is the base,
// slides the window forward past every contiguous acknowledged segment.
func (e *SelectiveRepeat) OnAck(ackNumber uint32) {
	p, ok := e.inflight[ackNumber]
	if !ok {
		return
	}
	p.acked = true

	if ackNumber != e.base {
		return
	}
	for {
		p, ok := e.inflight[e.base]
		if !ok || !p.acked {
			break
		}
		delete(e.inflight, e.base)
		e.base++
	}
}

// OnData implements the receiver half: buffer within-window segments,
// deliver the in-order prefix once the cursor's segment arrives, re-ACK
// anything below expected, and silently drop anything at or beyond
// expected+window.
func (e *SelectiveRepeat) OnData(seq uint32, payload []byte) DataResult {
	switch {
	case seq < e.expected:
		return DataResult{Outcome: Duplicate, AckNumber: seq, SendAck: true}
	case seq >= e.expected+uint32(e.window):
		return DataResult{Outcome: OutOfWindow, SendAck: false}
	case seq == e.expected:
		if _, dup := e.buffered[seq]; dup {
			return DataResult{Outcome: Duplicate, AckNumber: seq, SendAck: true}
		}
		chunks := [][]byte{payload}
		e.expected++
		for {
			next, ok := e.buffered[e.expected]
			if !ok {
				break
			}
			chunks = append(chunks, next)
			delete(e.buffered, e.expected)
			e.expected++
		}
		return DataResult{Outcome: Delivered, Chunks: chunks, AckNumber: seq, SendAck: true}
	default:
		if _, dup := e.buffered[seq]; dup {
			return DataResult{Outcome: Duplicate, AckNumber: seq, SendAck: true}
		}
		e.buffered[seq] = payload
		return DataResult{Outcome: Buffered, AckNumber: seq, SendAck: true}
	}
}

// Tick retransmits every in-flight segment whose individual timer has
// expired, restarting each one's timer independently.
func (e *SelectiveRepeat) Tick(now time.Time) []OutSegment {
	var retx []OutSegment
	for seq, p := range e.inflight {
		if p.acked {
			continue
		}
		if now.Before(e.clock.deadline(p.sentAt)) {
			continue
		}
		p.sentAt = now
		retx = append(retx, e.inflight[seq].segment)
	}
	return retx
}

func (e *SelectiveRepeat) Drain() { e.draining = true }

func (e *SelectiveRepeat) Done() bool { return e.draining && len(e.inflight) == 0 }

func (e *SelectiveRepeat) Outstanding() int {
	n := 0
	for _, p := range e.inflight {
		if !p.acked {
			n++
		}
	}
	return n
}
