// Package network wires up the UDP sockets the protocol runs over and
// computes the retransmission timeout a Session paces its own polling
// and teardown waits against, adapting to the measured RTT of its peer.
package network

import (
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"rdtxfer/internal/config"
	"rdtxfer/internal/errors"
)

// SocketBufferSize is the OS-level read/write buffer requested on every
// UDP socket the protocol opens, generous enough to absorb a full
// Selective Repeat window of max-size packets without kernel drops.
const SocketBufferSize = 256 * 1024

// Listen opens a UDP socket bound to addr:port, tuned for the protocol's
// datagram sizes.
func Listen(addr string, port int) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addrPort(addr, port))
	if err != nil {
		return nil, errors.NewLocalIO("resolve_udp_addr", addrPort(addr, port), err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.NewLocalIO("listen_udp", addrPort(addr, port), err)
	}
	tune(conn)
	return conn, nil
}

// ListenEphemeral opens a UDP socket on addr with an OS-assigned port,
// used by the server to migrate an established session off the
// well-known listening port per the connection-establishment handshake.
func ListenEphemeral(addr string) (*net.UDPConn, error) {
	return Listen(addr, 0)
}

// Dial opens a UDP "connection" to addr:port — UDP has no handshake at
// the socket layer, this just fixes the default destination so Write can
// be used instead of WriteTo.
func Dial(addr string, port int) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addrPort(addr, port))
	if err != nil {
		return nil, errors.NewLocalIO("resolve_udp_addr", addrPort(addr, port), err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, errors.NewLocalIO("dial_udp", addrPort(addr, port), err)
	}
	tune(conn)
	return conn, nil
}

func tune(conn *net.UDPConn) {
	if err := conn.SetReadBuffer(SocketBufferSize); err != nil {
		logrus.WithError(err).Debug("failed to set udp read buffer")
	}
	if err := conn.SetWriteBuffer(SocketBufferSize); err != nil {
		logrus.WithError(err).Debug("failed to set udp write buffer")
	}
}

func addrPort(addr string, port int) string {
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

// RTOCalculator tracks a smoothed round-trip-time estimate per session and
// derives the timeout a Session paces its polling and teardown waits with,
// following the classic SRTT/RTTVAR discipline. The ARQ engines do not use
// it; they arm their timers with a fixed RTO.
type RTOCalculator struct {
	srtt    time.Duration
	rttvar  time.Duration
	base    time.Duration
	primed  bool
}

// NewRTOCalculator seeds a calculator with the configured base RTO.
func NewRTOCalculator() *RTOCalculator {
	return &RTOCalculator{base: config.DefaultRTO}
}

// Sample folds a newly measured RTT into the running estimate.
func (c *RTOCalculator) Sample(rtt time.Duration) {
	if !c.primed {
		c.srtt = rtt
		c.rttvar = rtt / 2
		c.primed = true
		return
	}
	delta := rtt - c.srtt
	if delta < 0 {
		delta = -delta
	}
	c.rttvar = (3*c.rttvar + delta) / 4
	c.srtt = (7*c.srtt + rtt) / 8
}

// RTO returns the current retransmission timeout: SRTT + 4*RTTVAR, with a
// configured floor so jitter never drives it below a sane minimum.
func (c *RTOCalculator) RTO() time.Duration {
	if !c.primed {
		return c.base
	}
	rto := c.srtt + 4*c.rttvar
	if rto < c.base {
		return c.base
	}
	return rto
}

// Jitter adds up to +/-10% random skew to d, so that many sessions whose
// timers were armed at the same instant do not all retransmit in lockstep.
func Jitter(d time.Duration) time.Duration {
	factor := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(d) * factor)
}
