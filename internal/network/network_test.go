package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenAndDialRoundTrip(t *testing.T) {
	server, err := Listen("127.0.0.1", 0)
	require.NoError(t, err)
	defer server.Close()

	serverAddr := server.LocalAddr().(*net.UDPAddr)

	client, err := Dial("127.0.0.1", serverAddr.Port)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	server.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := server.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestRTOCalculatorStartsAtBase(t *testing.T) {
	c := NewRTOCalculator()
	assert.Equal(t, c.base, c.RTO())
}

func TestRTOCalculatorTracksSamples(t *testing.T) {
	c := NewRTOCalculator()
	c.Sample(50 * time.Millisecond)
	c.Sample(60 * time.Millisecond)
	c.Sample(55 * time.Millisecond)

	rto := c.RTO()
	assert.True(t, rto >= 50*time.Millisecond)
}

func TestRTOCalculatorNeverBelowBase(t *testing.T) {
	c := NewRTOCalculator()
	c.Sample(time.Microsecond)
	assert.True(t, c.RTO() >= c.base)
}

func TestJitterStaysWithinBounds(t *testing.T) {
	base := 80 * time.Millisecond
	for i := 0; i < 50; i++ {
		j := Jitter(base)
		assert.True(t, j >= 72*time.Millisecond && j <= 88*time.Millisecond)
	}
}
