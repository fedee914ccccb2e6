// Package client drives the two CLI-facing operations, upload and
// download, through the handshake of spec.md §4.4 and into a Session's
// data phase.
package client

import (
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"rdtxfer/internal/arq"
	"rdtxfer/internal/config"
	"rdtxfer/internal/errors"
	"rdtxfer/internal/logging"
	"rdtxfer/internal/session"
	"rdtxfer/internal/transfer"
	"rdtxfer/internal/wire"
)

// Upload sends localPath to the server as remoteName over the given ARQ protocol.
func Upload(cfg *config.TransferConfig, log *logrus.Logger) error {
	protocol, err := wire.ParseARQKind(cfg.Protocol)
	if err != nil {
		return err
	}

	source, err := transfer.OpenDiskSource(cfg.Path)
	if err != nil {
		return err
	}
	defer source.Close()

	conn, serverAddr, _, err := handshake(cfg.Addr, cfg.Port, wire.Negotiation{
		Operation: wire.Upload,
		Filename:  cfg.Name,
		Protocol:  protocol,
	}, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	engine := newEngine(protocol)
	sess := session.New(cfg.Name, conn, serverAddr, engine, session.RoleSender, log)

	if err := completeHandshake(sess); err != nil {
		return err
	}

	return sess.RunSender(source)
}

// Download fetches remoteName from the server into dstDir over the given ARQ protocol.
func Download(cfg *config.TransferConfig, log *logrus.Logger) error {
	protocol, err := wire.ParseARQKind(cfg.Protocol)
	if err != nil {
		return err
	}

	conn, serverAddr, synAck, err := handshake(cfg.Addr, cfg.Port, wire.Negotiation{
		Operation: wire.Download,
		Filename:  cfg.Name,
		Protocol:  protocol,
	}, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	fileSize, err := wire.DecodeSynAck(synAck)
	if err != nil {
		return errors.NewCodecError("decode_synack", err)
	}

	sink, err := transfer.CreateDiskSink(cfg.Path, cfg.Name)
	if err != nil {
		return err
	}

	engine := newEngine(protocol)
	sess := session.New(cfg.Name, conn, serverAddr, engine, session.RoleReceiver, log)
	if log != nil {
		log.WithFields(logrus.Fields{"file": cfg.Name, "size": fileSize}).Info("download starting")
	}

	if err := completeHandshake(sess); err != nil {
		sink.Abort()
		return err
	}

	return sess.RunReceiver(sink)
}

// handshake resolves the well-known listener, sends the negotiation SYN
// retrying on RTO up to MaxSynRetries, and on the first matching SYN|ACK
// migrates the client's remote peer to the server's new ephemeral port.
// It returns the connection (still bound to its original local port —
// only the remote address changes), the new remote address, and the
// SYN|ACK payload.
func handshake(addr string, port int, neg wire.Negotiation, log *logrus.Logger) (*net.UDPConn, *net.UDPAddr, []byte, error) {
	listenerAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return nil, nil, nil, errors.NewLocalIO("resolve_udp_addr", addr, err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("0.0.0.0")})
	if err != nil {
		return nil, nil, nil, errors.NewLocalIO("listen_udp", "0.0.0.0:0", err)
	}

	synPkt := wire.NewSyn(wire.EncodeNegotiation(neg))
	synBuf := wire.Encode(synPkt.Header, synPkt.Payload)

	buf := make([]byte, wire.MaxPacket)
	for attempt := 0; attempt < config.DefaultMaxSynTries; attempt++ {
		if _, err := conn.WriteToUDP(synBuf, listenerAddr); err != nil {
			conn.Close()
			return nil, nil, nil, errors.NewLocalIO("write_udp", listenerAddr.String(), err)
		}

		conn.SetReadDeadline(time.Now().Add(config.DefaultRTO))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		pkt, decodeErr := wire.Decode(buf[:n])
		if decodeErr != nil {
			if log != nil {
				logging.LogDroppedDatagram(log, from.String(), decodeErr)
			}
			continue
		}

		if pkt.Header.Flags.Has(wire.ERR) {
			conn.Close()
			return nil, nil, nil, errors.NewPeerError(from.String(), 0, string(pkt.Payload))
		}
		if pkt.Header.Flags.Has(wire.SYN) && pkt.Header.Flags.Has(wire.ACK) {
			return conn, from, pkt.Payload, nil
		}
	}

	conn.Close()
	return nil, nil, nil, errors.NewHandshakeFailed(listenerAddr.String(), config.DefaultMaxSynTries)
}

// completeHandshake sends the final ACK closing the three-way handshake.
// This ACK is not retransmitted, and the data loops do not answer a
// repeated SYN|ACK. The server also accepts the client's first DATA
// packet as the end of the handshake, so a lost final ACK is made up for
// on an upload; on a download it is not recovered.
func completeHandshake(sess *session.Session) error {
	return sess.SendFinalAck()
}

func newEngine(protocol wire.ARQKind) arq.Engine {
	if protocol == wire.SelectiveRepeat {
		return arq.NewSelectiveRepeat(config.DefaultRTO, config.DefaultWindowSize)
	}
	return arq.NewStopAndWait(config.DefaultRTO)
}
