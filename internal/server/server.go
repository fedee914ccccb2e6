// Package server implements the listener/demultiplexer/worker-pool design
// of spec.md §4.6: one listening UDP socket accepts SYNs, hands each off
// to a per-client Session running on its own ephemeral-port socket.
package server

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rdtxfer/internal/arq"
	"rdtxfer/internal/config"
	"rdtxfer/internal/errors"
	"rdtxfer/internal/filesystem"
	"rdtxfer/internal/logging"
	"rdtxfer/internal/network"
	"rdtxfer/internal/session"
	"rdtxfer/internal/transfer"
	"rdtxfer/internal/wire"
)

// worker is the demultiplexer's record for one in-progress client. Entries
// are weak: nothing but the listener goroutine ever mutates the table,
// and a worker only ever talks back to it over termCh.
type worker struct {
	conn     *net.UDPConn
	synAck   []byte
	lastSeen time.Time
}

// Server is the demultiplexer: the listening socket, the bounded worker
// table, and the single-producer termination channel workers report on.
type Server struct {
	cfg *config.ServerConfig
	log *logrus.Logger

	listener *net.UDPConn

	mu       sync.Mutex
	workers  map[string]*worker
	stopping bool

	termCh chan string
}

// New constructs a Server; Run opens the listening socket and blocks.
func New(cfg *config.ServerConfig, log *logrus.Logger) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		workers: make(map[string]*worker),
		termCh:  make(chan string, cfg.Workers),
	}
}

// Run opens the listening socket, ensures the storage directory exists,
// and serves SYNs until the listener socket is closed from outside.
func (s *Server) Run() error {
	if err := filesystem.EnsureDirectoryExists(s.cfg.StorageDir); err != nil {
		return err
	}

	listener, err := network.Listen(s.cfg.Addr, s.cfg.Port)
	if err != nil {
		return err
	}
	s.listener = listener
	defer listener.Close()

	s.log.WithFields(logrus.Fields{"addr": s.cfg.Addr, "port": s.cfg.Port, "storage": s.cfg.StorageDir}).
		Info("server listening")

	buf := make([]byte, wire.MaxPacket)
	for {
		s.drainTerminated()

		if err := s.listener.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return errors.NewLocalIO("set_read_deadline", "listener", err)
		}
		n, addr, err := s.listener.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping {
				return nil
			}
			return errors.NewLocalIO("read_udp", "listener", err)
		}

		pkt, decodeErr := wire.Decode(buf[:n])
		if decodeErr != nil {
			logging.LogDroppedDatagram(s.log, addr.String(), decodeErr)
			continue
		}
		if !pkt.Header.Flags.Has(wire.SYN) {
			continue // only SYNs (new or retransmitted) arrive on the listener
		}
		s.handleSyn(addr, pkt)
	}
}

// Stop requests a clean shutdown: the listening socket closes, Run's
// blocked read unblocks with an error that Run recognizes as
// shutdown-requested rather than a failure, and Run returns nil.
// In-flight worker sessions are not waited on.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
}

// drainTerminated is the listener's side of the single-producer
// termination channel: it is the only goroutine that mutates s.workers.
func (s *Server) drainTerminated() {
	for {
		select {
		case addr := <-s.termCh:
			s.mu.Lock()
			if w, ok := s.workers[addr]; ok {
				w.conn.Close()
				delete(s.workers, addr)
			}
			s.mu.Unlock()
		default:
			return
		}
	}
}

func (s *Server) handleSyn(addr *net.UDPAddr, pkt wire.Packet) {
	key := addr.String()

	s.mu.Lock()
	w, exists := s.workers[key]
	s.mu.Unlock()

	if exists {
		// Lost SYN|ACK: the client retransmitted its SYN. Resend the
		// cached SYN|ACK from the session's own ephemeral socket.
		w.conn.WriteToUDP(w.synAck, addr)
		return
	}

	s.mu.Lock()
	saturated := len(s.workers) >= s.cfg.Workers
	s.mu.Unlock()
	if saturated {
		s.sendErr(addr, "server busy")
		return
	}

	neg, err := wire.DecodeNegotiation(pkt.Payload)
	if err != nil {
		s.sendErr(addr, "malformed negotiation payload")
		return
	}

	if err := s.validate(neg); err != nil {
		s.sendErr(addr, err.Error())
		return
	}

	s.spawn(addr, neg)
}

func (s *Server) validate(neg wire.Negotiation) error {
	if err := filesystem.ValidateFilename(neg.Filename); err != nil {
		return err
	}
	path := filepath.Join(s.cfg.StorageDir, neg.Filename)
	if neg.Operation == wire.Download {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("remote file not found: %s", neg.Filename)
		}
	}
	return nil
}

func (s *Server) spawn(addr *net.UDPAddr, neg wire.Negotiation) {
	conn, err := network.ListenEphemeral(s.cfg.Addr)
	if err != nil {
		s.sendErr(addr, "could not allocate session socket")
		return
	}

	var fileSize int64
	if neg.Operation == wire.Download {
		path := filepath.Join(s.cfg.StorageDir, neg.Filename)
		fileSize, _ = filesystem.FileSize(path)
	}
	synAckPkt := wire.NewSynAck(0, wire.EncodeSynAck(fileSize))
	synAck := wire.Encode(synAckPkt.Header, synAckPkt.Payload)

	engine := newEngine(neg.Protocol)
	role := session.RoleReceiver
	if neg.Operation == wire.Download {
		role = session.RoleSender
	}
	sess := session.New(addr.String(), conn, addr, engine, role, s.log)

	w := &worker{conn: conn, synAck: synAck, lastSeen: time.Now()}
	s.mu.Lock()
	s.workers[addr.String()] = w
	s.mu.Unlock()

	conn.WriteToUDP(synAck, addr)

	go s.serve(addr, conn, sess, neg)
}

// serve waits for the client's final ACK to settle ESTABLISHED, then
// hands off to the Session's data-phase loop, reporting completion on
// termCh so the listener can prune the worker table.
func (s *Server) serve(addr *net.UDPAddr, conn *net.UDPConn, sess *session.Session, neg wire.Negotiation) {
	key := addr.String()
	defer func() { s.termCh <- key }()

	if !awaitFinalAck(conn, addr) {
		logging.LogError(s.log, "handshake", errors.NewHandshakeFailed(key, config.DefaultMaxSynTries))
		return
	}

	path := filepath.Join(s.cfg.StorageDir, neg.Filename)
	var err error
	switch neg.Operation {
	case wire.Upload:
		sink, sinkErr := transfer.CreateDiskSink(s.cfg.StorageDir, neg.Filename)
		if sinkErr != nil {
			logging.LogError(s.log, "create_sink", sinkErr)
			return
		}
		err = sess.RunReceiver(sink)
	case wire.Download:
		source, srcErr := transfer.OpenDiskSource(path)
		if srcErr != nil {
			logging.LogError(s.log, "open_source", srcErr)
			return
		}
		err = sess.RunSender(source)
		source.Close()
	}
	if err != nil {
		logging.LogError(s.log, "transfer", err)
	}
}

// awaitFinalAck blocks briefly on conn for the client's closing ACK of
// the handshake, or a first DATA packet, which settles it as well. It
// retransmits nothing itself; the cached SYN|ACK is re-sent only when a
// duplicate SYN reaches the listener, so a final ACK lost after the
// client has seen the SYN|ACK is recovered only by the client's DATA
// (an upload). Otherwise it gives up after DefaultMaxSynTries RTOs.
func awaitFinalAck(conn *net.UDPConn, addr *net.UDPAddr) bool {
	deadline := time.Now().Add(time.Duration(config.DefaultMaxSynTries) * config.DefaultRTO)
	buf := make([]byte, wire.MaxPacket)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(config.DefaultRTO))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		if !from.IP.Equal(addr.IP) || from.Port != addr.Port {
			continue
		}
		pkt, decodeErr := wire.Decode(buf[:n])
		if decodeErr != nil {
			continue
		}
		if pkt.Header.Flags.Has(wire.ACK) || pkt.Header.Flags.Has(wire.DATA) {
			return true
		}
	}
	return false
}

func (s *Server) sendErr(addr *net.UDPAddr, reason string) {
	pkt := wire.NewErr(reason)
	buf := wire.Encode(pkt.Header, pkt.Payload)
	s.listener.WriteToUDP(buf, addr)
}

func newEngine(protocol wire.ARQKind) arq.Engine {
	if protocol == wire.SelectiveRepeat {
		return arq.NewSelectiveRepeat(config.DefaultRTO, config.DefaultWindowSize)
	}
	return arq.NewStopAndWait(config.DefaultRTO)
}
