package wire

// Convenience constructors for the packet shapes the protocol actually
// sends. Mirrors the teacher's style of small, named helpers over raw
// struct literals scattered through call sites.

// NewData builds a DATA packet carrying seq and payload.
func NewData(seq uint32, payload []byte) Packet {
	return Packet{Header: Header{SequenceNumber: seq, Flags: DATA}, Payload: payload}
}

// NewAck builds a cumulative or selective ACK for ackNum.
func NewAck(ackNum uint32) Packet {
	return Packet{Header: Header{AckNumber: ackNum, Flags: ACK}}
}

// NewSyn builds a SYN carrying a handshake negotiation payload.
func NewSyn(payload []byte) Packet {
	return Packet{Header: Header{Flags: SYN}, Payload: payload}
}

// NewSynAck builds a SYN|ACK carrying the server's negotiation reply.
func NewSynAck(ackNum uint32, payload []byte) Packet {
	return Packet{Header: Header{AckNumber: ackNum, Flags: SYN | ACK}, Payload: payload}
}

// NewFin builds a FIN for the given sequence.
func NewFin(seq uint32) Packet {
	return Packet{Header: Header{SequenceNumber: seq, Flags: FIN}}
}

// NewFinAck builds a FIN|ACK acknowledging seq.
func NewFinAck(seq uint32) Packet {
	return Packet{Header: Header{AckNumber: seq, Flags: FIN | ACK}}
}

// NewErr builds an ERR packet carrying a UTF-8 reason.
func NewErr(reason string) Packet {
	return Packet{Header: Header{Flags: ERR}, Payload: []byte(reason)}
}
