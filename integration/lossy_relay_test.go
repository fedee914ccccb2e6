package integration

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rdtxfer/internal/wire"
)

type relayDirection int

const (
	clientToServer relayDirection = iota
	serverToClient
)

// faultFunc inspects one datagram in flight through a lossyRelay and
// returns the raw datagrams that should actually be delivered: nil to
// drop it, a single unmodified or mutated copy to pass or corrupt it,
// or more than one entry to duplicate it. decodeErr is set when raw
// did not parse as a wire.Packet, in which case pkt is the zero value.
type faultFunc func(dir relayDirection, pkt wire.Packet, decodeErr error, raw []byte) [][]byte

// lossyRelay forwards UDP datagrams between a client and a real server
// through a fault, standing in for a flaky network path. The client
// dials the relay's front address instead of the server's; the relay
// tracks the server's address across its handshake migration to a
// per-session ephemeral socket the same way a real NAT would.
type lossyRelay struct {
	front *net.UDPConn
	back  *net.UDPConn
	fault faultFunc

	mu         sync.Mutex
	serverAddr *net.UDPAddr
	clientAddr *net.UDPAddr

	closed atomic.Bool
}

func newLossyRelay(t *testing.T, serverAddr *net.UDPAddr, fault faultFunc) *lossyRelay {
	front, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	back, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	r := &lossyRelay{front: front, back: back, fault: fault, serverAddr: serverAddr}
	go r.pump(front, back, clientToServer, &r.clientAddr, &r.serverAddr)
	go r.pump(back, front, serverToClient, &r.serverAddr, &r.clientAddr)
	return r
}

func (r *lossyRelay) port() int { return r.front.LocalAddr().(*net.UDPAddr).Port }

func (r *lossyRelay) close() {
	r.closed.Store(true)
	r.front.Close()
	r.back.Close()
}

// pump reads datagrams off in, learns the sender's address into *learn,
// applies the fault, and writes whatever survives to out addressed at
// whatever *target currently holds.
func (r *lossyRelay) pump(in, out *net.UDPConn, dir relayDirection, learn, target **net.UDPAddr) {
	buf := make([]byte, wire.MaxPacket)
	for {
		in.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, from, err := in.ReadFromUDP(buf)
		if err != nil {
			if r.closed.Load() {
				return
			}
			continue
		}

		r.mu.Lock()
		*learn = from
		dst := *target
		r.mu.Unlock()
		if dst == nil {
			continue
		}

		raw := append([]byte(nil), buf[:n]...)
		pkt, decodeErr := wire.Decode(raw)
		for _, datagram := range r.fault(dir, pkt, decodeErr, raw) {
			out.WriteToUDP(datagram, dst)
		}
	}
}

func passUnlessMatched(match func(dir relayDirection, pkt wire.Packet) bool, apply func(raw []byte) [][]byte) faultFunc {
	return func(dir relayDirection, pkt wire.Packet, decodeErr error, raw []byte) [][]byte {
		if decodeErr == nil && match(dir, pkt) {
			return apply(raw)
		}
		return [][]byte{raw}
	}
}

// dropOnce drops the first datagram matching want, then passes every
// later datagram through untouched — modeling a single lost segment or
// ACK rather than a permanently broken link.
func dropOnce(want func(dir relayDirection, pkt wire.Packet) bool) faultFunc {
	var fired atomic.Bool
	return passUnlessMatched(func(dir relayDirection, pkt wire.Packet) bool {
		if !want(dir, pkt) {
			return false
		}
		return !fired.Swap(true)
	}, func(raw []byte) [][]byte { return nil })
}

// corruptEveryNth inverts the first payload byte of every n-th datagram matching
// want, leaving the (now-stale) checksum in place so wire.Decode on the
// receiving end rejects it as BadChecksum and drops it silently.
func corruptEveryNth(n int, want func(dir relayDirection, pkt wire.Packet) bool) faultFunc {
	var count atomic.Int64
	return passUnlessMatched(want, func(raw []byte) [][]byte {
		hit := count.Add(1)
		if hit%int64(n) != 0 || len(raw) <= wire.HeaderSize {
			return [][]byte{raw}
		}
		corrupted := append([]byte(nil), raw...)
		corrupted[wire.HeaderSize] ^= 0xFF
		return [][]byte{corrupted}
	})
}

func isData(seq uint32) func(dir relayDirection, pkt wire.Packet) bool {
	return func(dir relayDirection, pkt wire.Packet) bool {
		return dir == clientToServer && pkt.Header.Flags.Has(wire.DATA) && pkt.Header.SequenceNumber == seq
	}
}

func isAck(ack uint32) func(dir relayDirection, pkt wire.Packet) bool {
	return func(dir relayDirection, pkt wire.Packet) bool {
		return dir == serverToClient && pkt.Header.Flags.Has(wire.ACK) && !pkt.Header.Flags.Has(wire.FIN) && pkt.Header.AckNumber == ack
	}
}

