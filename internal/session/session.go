// Package session implements the Session Endpoint state machine of
// spec.md §4.3: one per active transfer, owning a dedicated UDP socket,
// an ARQ engine, and — for the duration of the data phase — a FileSource
// or FileSink. Connection establishment lives in internal/client and
// internal/server, which construct a Session once the handshake settles
// and hand it the data phase.
package session

import (
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"rdtxfer/internal/arq"
	"rdtxfer/internal/config"
	"rdtxfer/internal/errors"
	"rdtxfer/internal/logging"
	"rdtxfer/internal/network"
	"rdtxfer/internal/transfer"
	"rdtxfer/internal/wire"
)

// Session is one endpoint of one transfer.
type Session struct {
	ID     string
	Conn   *net.UDPConn
	Remote *net.UDPAddr
	Engine arq.Engine
	Role   Role

	State State

	Log          *logrus.Logger
	MaxIdle      time.Duration
	PollInterval time.Duration

	// OnProgress, if set, is called with the number of newly
	// transferred bytes each time the data phase makes forward
	// progress. It is an external collaborator per spec.md §6 and is
	// never required for correctness.
	OnProgress func(delta int64)

	// rtoCalc tracks the measured RTT to this peer; the ARQ engines
	// themselves arm their timers with a fixed RTO per spec.md §4.2, but
	// the Session uses the live estimate to pace its own polling and
	// teardown waits instead of guessing a single constant for every path.
	rtoCalc    *network.RTOCalculator
	lastSendAt time.Time

	lastActivity time.Time
}

// New constructs a Session bound to conn, addressed at remote, in the
// ESTABLISHED state (callers run the handshake themselves before
// constructing one — Session only drives the data and teardown phases).
func New(id string, conn *net.UDPConn, remote *net.UDPAddr, engine arq.Engine, role Role, log *logrus.Logger) *Session {
	return &Session{
		ID:           id,
		Conn:         conn,
		Remote:       remote,
		Engine:       engine,
		Role:         role,
		State:        Established,
		Log:          log,
		MaxIdle:      config.DefaultMaxIdle,
		PollInterval: config.DefaultRTO / 4,
		rtoCalc:      network.NewRTOCalculator(),
		lastActivity: time.Now(),
	}
}

func (s *Session) transition(to State) {
	if s.Log != nil {
		logging.LogSessionEvent(s.Log, s.ID, s.Remote.String(), s.State.String(), to.String())
	}
	s.State = to
}

func (s *Session) send(pkt wire.Packet) error {
	buf := wire.Encode(pkt.Header, pkt.Payload)
	_, err := s.Conn.WriteToUDP(buf, s.Remote)
	if err != nil {
		return errors.NewLocalIO("write_udp", s.Remote.String(), err)
	}
	return nil
}

// recv reads one datagram, bounded by deadline, decoding it into a
// Packet. A nil packet with a nil error means nothing deliverable
// arrived: the read deadline expired, the datagram came from another
// address, or it failed to decode (logged at trace level and dropped,
// never reaching the caller as a protocol event).
func (s *Session) recv(deadline time.Time) (*wire.Packet, error) {
	if err := s.Conn.SetReadDeadline(deadline); err != nil {
		return nil, errors.NewLocalIO("set_read_deadline", s.Remote.String(), err)
	}
	buf := make([]byte, wire.MaxPacket)
	n, addr, err := s.Conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, errors.NewLocalIO("read_udp", s.Remote.String(), err)
	}
	if !addr.IP.Equal(s.Remote.IP) || addr.Port != s.Remote.Port {
		return nil, nil // traffic from someone else; ignore per-session
	}

	pkt, decodeErr := wire.Decode(buf[:n])
	if decodeErr != nil {
		if s.Log != nil {
			logging.LogDroppedDatagram(s.Log, addr.String(), decodeErr)
		}
		return nil, nil
	}
	s.lastActivity = time.Now()
	return &pkt, nil
}

// SendFinalAck sends the closing ACK of the three-way handshake once; it
// is never retransmitted. The server also accepts the first DATA packet
// in its place, which covers a lost ACK when this side is the sender; a
// receiver sends no DATA, so a lost final ACK on a download is not
// recovered.
func (s *Session) SendFinalAck() error {
	if err := s.send(wire.NewAck(0)); err != nil {
		return err
	}
	s.lastActivity = time.Now()
	return nil
}

func (s *Session) idleExpired() bool {
	return time.Since(s.lastActivity) > s.MaxIdle
}

// Abort forces the session to CLOSED, closing its socket. It does not
// touch the FileSource/FileSink — callers are responsible for Abort()ing
// theirs first, per spec.md §5's cancellation contract.
func (s *Session) Abort() {
	s.transition(Closed)
	s.Conn.Close()
}

// RunSender drives the data and teardown phases for a Session whose
// local side is offering bytes (upload client, download server).
func (s *Session) RunSender(source transfer.FileSource) error {
	var offset int64
	var eof bool
	var pending []byte
	const chunkSize = wire.MaxPayload

	for {
		for !eof {
			if pending == nil {
				chunk, err := source.ReadAt(offset, chunkSize)
				if err != nil {
					if err == io.EOF {
						eof = true
						s.Engine.Drain()
						break
					}
					return errors.NewLocalIO("read_source", s.ID, err)
				}
				pending = chunk
			}
			admission := s.Engine.OfferSend(pending)
			if !admission.Admitted {
				break
			}
			offset += int64(len(pending))
			sent := len(pending)
			pending = nil
			if err := s.send(wire.NewData(admission.Segment.Seq, admission.Segment.Payload)); err != nil {
				return err
			}
			if s.lastSendAt.IsZero() {
				s.lastSendAt = time.Now()
			}
			if s.OnProgress != nil {
				s.OnProgress(int64(sent))
			}
		}

		if s.Engine.Done() {
			return s.closeSender()
		}

		if s.idleExpired() {
			return errors.NewPeerGone(s.Remote.String(), s.MaxIdle.String())
		}

		pkt, err := s.recv(time.Now().Add(s.PollInterval))
		if err != nil {
			return err
		}
		if pkt != nil && pkt.Header.Flags.Has(wire.ACK) {
			s.Engine.OnAck(pkt.Header.AckNumber)
			if !s.lastSendAt.IsZero() {
				s.rtoCalc.Sample(time.Since(s.lastSendAt))
				s.lastSendAt = time.Time{}
				s.PollInterval = network.Jitter(s.rtoCalc.RTO() / 4)
			}
		}
		if pkt != nil && pkt.Header.Flags.Has(wire.ERR) {
			return errors.NewPeerError(s.Remote.String(), 0, string(pkt.Payload))
		}

		for _, retx := range s.Engine.Tick(time.Now()) {
			if err := s.send(wire.NewData(retx.Seq, retx.Payload)); err != nil {
				return err
			}
		}
	}
}

func (s *Session) closeSender() error {
	s.transition(FinSent)
	finSeq := uint32(0)
	fin := wire.NewFin(finSeq)
	attempts := 0
	for {
		if err := s.send(fin); err != nil {
			return err
		}
		pkt, err := s.recv(time.Now().Add(network.Jitter(s.rtoCalc.RTO())))
		if err != nil {
			return err
		}
		if pkt != nil && pkt.Header.Flags.Has(wire.FIN) && pkt.Header.Flags.Has(wire.ACK) {
			s.transition(Closed)
			return nil
		}
		attempts++
		if attempts >= config.DefaultMaxSynTries {
			return errors.NewHandshakeFailed(s.Remote.String(), attempts)
		}
	}
}

// RunReceiver drives the data and teardown phases for a Session whose
// local side is accepting bytes (upload server, download client).
func (s *Session) RunReceiver(sink transfer.FileSink) error {
	for {
		if s.idleExpired() {
			sink.Abort()
			return errors.NewPeerGone(s.Remote.String(), s.MaxIdle.String())
		}

		pkt, err := s.recv(time.Now().Add(s.PollInterval))
		if err != nil {
			sink.Abort()
			return err
		}
		if pkt == nil {
			continue
		}

		if pkt.Header.Flags.Has(wire.ERR) {
			sink.Abort()
			return errors.NewPeerError(s.Remote.String(), 0, string(pkt.Payload))
		}

		if pkt.Header.Flags.Has(wire.FIN) {
			if err := sink.Finalize(); err != nil {
				return err
			}
			s.transition(FinRcvd)
			if err := s.send(wire.NewFinAck(pkt.Header.SequenceNumber)); err != nil {
				return err
			}
			s.transition(Closed)
			return nil
		}

		if pkt.Header.Flags.Has(wire.DATA) {
			result := s.Engine.OnData(pkt.Header.SequenceNumber, pkt.Payload)
			for _, chunk := range result.Chunks {
				if err := sink.Append(chunk); err != nil {
					sink.Abort()
					return err
				}
				if s.OnProgress != nil {
					s.OnProgress(int64(len(chunk)))
				}
			}
			if result.SendAck {
				if err := s.send(wire.NewAck(result.AckNumber)); err != nil {
					return err
				}
			}
		}
	}
}
