package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiationRoundTrip(t *testing.T) {
	n := Negotiation{Operation: Upload, Filename: "report:final.csv", Protocol: SelectiveRepeat}
	got, err := DecodeNegotiation(EncodeNegotiation(n))
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestDecodeNegotiationRejectsTooShort(t *testing.T) {
	_, err := DecodeNegotiation([]byte{1, 2})
	require.Error(t, err)
}

func TestDecodeNegotiationRejectsLengthMismatch(t *testing.T) {
	buf := EncodeNegotiation(Negotiation{Operation: Download, Filename: "a.bin", Protocol: StopAndWait})
	buf = buf[:len(buf)-1]
	_, err := DecodeNegotiation(buf)
	require.Error(t, err)
}

func TestDecodeNegotiationRejectsUnknownOperation(t *testing.T) {
	buf := EncodeNegotiation(Negotiation{Operation: Upload, Filename: "a.bin", Protocol: StopAndWait})
	buf[0] = 99
	_, err := DecodeNegotiation(buf)
	require.Error(t, err)
}

func TestParseARQKind(t *testing.T) {
	k, err := ParseARQKind("selective_repeat")
	require.NoError(t, err)
	assert.Equal(t, SelectiveRepeat, k)

	_, err = ParseARQKind("bogus")
	require.Error(t, err)
}

func TestSynAckRoundTrip(t *testing.T) {
	size, err := DecodeSynAck(EncodeSynAck(123456))
	require.NoError(t, err)
	assert.Equal(t, int64(123456), size)
}

func TestDecodeSynAckEmptyPayloadIsZero(t *testing.T) {
	size, err := DecodeSynAck(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestDecodeSynAckRejectsMalformed(t *testing.T) {
	_, err := DecodeSynAck([]byte{1, 2, 3})
	require.Error(t, err)
}
